package protocol

import (
	"encoding/binary"
	"io"
)

// MaxFrameSize bounds a single wire frame. Clipboard images are the largest
// legitimate payloads; anything above this means the stream framing was
// lost and the lane cannot be trusted anymore.
const MaxFrameSize = 16 << 20

// WriteFrame writes one length-prefixed frame: a big-endian uint32 length
// followed by exactly that many bytes.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > MaxFrameSize {
		return decodeErrorf("frame of %d bytes exceeds maximum %d", len(frame), MaxFrameSize)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(frame)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one length-prefixed frame. An implausible length yields a
// *DecodeError; I/O errors pass through unchanged.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return nil, decodeErrorf("frame length %d exceeds maximum %d", n, MaxFrameSize)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}
