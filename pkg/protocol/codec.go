package protocol

import (
	"encoding/binary"
	"fmt"
)

// Wire tags identify event variants. The tag space is append-only: existing
// tags must never be reordered, reused or removed, otherwise a peer running
// a different protocol revision silently misinterprets payloads. New
// variants get the next free value.
const (
	tagMouseMotion byte = 0
	tagMouseWheel  byte = 1
	tagMouseButton byte = 2
	tagKeyboard    byte = 3
	tagTextClip    byte = 4
	tagHtmlClip    byte = 5
	tagImageClip   byte = 6
)

// decoders maps each wire tag to its payload decoder. Entries are appended,
// never replaced.
var decoders = map[byte]func(*reader) (Event, error){
	tagMouseMotion: decodeMouseMotion,
	tagMouseWheel:  decodeMouseWheel,
	tagMouseButton: decodeMouseButton,
	tagKeyboard:    decodeKeyboard,
	tagTextClip:    decodeTextClip,
	tagHtmlClip:    decodeHtmlClip,
	tagImageClip:   decodeImageClip,
}

// DecodeError reports a malformed packet: truncated input, trailing bytes
// or an unrecognized variant tag.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "protocol: " + e.Reason
}

func decodeErrorf(format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// Encode serializes the packet into a self-contained binary form:
// 8 bytes of packet ID, one variant tag and the variant payload, all
// integers big-endian.
func Encode(p Packet) []byte {
	buf := make([]byte, 8, 8+16)
	binary.BigEndian.PutUint64(buf, p.ID)
	buf = append(buf, p.Event.tag())

	switch ev := p.Event.(type) {
	case MouseMotion:
		buf = appendInt32(buf, ev.DX)
		buf = appendInt32(buf, ev.DY)
	case MouseWheel:
		buf = appendInt32(buf, ev.DX)
		buf = appendInt32(buf, ev.DY)
	case MouseButton:
		buf = append(buf, byte(ev.Button), boolByte(ev.Pressed))
	case Keyboard:
		buf = binary.BigEndian.AppendUint16(buf, ev.Key)
		buf = append(buf, boolByte(ev.Pressed))
	case TextClipboard:
		buf = appendBytes(buf, []byte(ev.Content))
	case HtmlClipboard:
		buf = appendBytes(buf, []byte(ev.HTML))
		buf = appendBytes(buf, []byte(ev.Plain))
	case ImageClipboard:
		buf = appendBytes(buf, ev.PNG)
	}
	return buf
}

// Decode parses one encoded packet. It fails with a *DecodeError when the
// input is truncated, carries trailing bytes or names an unknown tag.
func Decode(data []byte) (Packet, error) {
	r := &reader{buf: data}
	id, err := r.uint64()
	if err != nil {
		return Packet{}, err
	}
	tag, err := r.byte()
	if err != nil {
		return Packet{}, err
	}
	decode, ok := decoders[tag]
	if !ok {
		return Packet{}, decodeErrorf("unknown event tag %d", tag)
	}
	ev, err := decode(r)
	if err != nil {
		return Packet{}, err
	}
	if r.remaining() != 0 {
		return Packet{}, decodeErrorf("%d trailing bytes after event", r.remaining())
	}
	return Packet{ID: id, Event: ev}, nil
}

func (MouseMotion) tag() byte    { return tagMouseMotion }
func (MouseWheel) tag() byte     { return tagMouseWheel }
func (MouseButton) tag() byte    { return tagMouseButton }
func (Keyboard) tag() byte       { return tagKeyboard }
func (TextClipboard) tag() byte  { return tagTextClip }
func (HtmlClipboard) tag() byte  { return tagHtmlClip }
func (ImageClipboard) tag() byte { return tagImageClip }

func decodeMouseMotion(r *reader) (Event, error) {
	dx, err := r.int32()
	if err != nil {
		return nil, err
	}
	dy, err := r.int32()
	if err != nil {
		return nil, err
	}
	return MouseMotion{DX: dx, DY: dy}, nil
}

func decodeMouseWheel(r *reader) (Event, error) {
	dx, err := r.int32()
	if err != nil {
		return nil, err
	}
	dy, err := r.int32()
	if err != nil {
		return nil, err
	}
	return MouseWheel{DX: dx, DY: dy}, nil
}

func decodeMouseButton(r *reader) (Event, error) {
	button, err := r.byte()
	if err != nil {
		return nil, err
	}
	if Button(button) > ButtonRight {
		return nil, decodeErrorf("unknown mouse button %d", button)
	}
	pressed, err := r.boolByte()
	if err != nil {
		return nil, err
	}
	return MouseButton{Button: Button(button), Pressed: pressed}, nil
}

func decodeKeyboard(r *reader) (Event, error) {
	key, err := r.uint16()
	if err != nil {
		return nil, err
	}
	pressed, err := r.boolByte()
	if err != nil {
		return nil, err
	}
	return Keyboard{Key: key, Pressed: pressed}, nil
}

func decodeTextClip(r *reader) (Event, error) {
	content, err := r.bytes()
	if err != nil {
		return nil, err
	}
	return TextClipboard{Content: string(content)}, nil
}

func decodeHtmlClip(r *reader) (Event, error) {
	html, err := r.bytes()
	if err != nil {
		return nil, err
	}
	plain, err := r.bytes()
	if err != nil {
		return nil, err
	}
	return HtmlClipboard{HTML: string(html), Plain: string(plain)}, nil
}

func decodeImageClip(r *reader) (Event, error) {
	png, err := r.bytes()
	if err != nil {
		return nil, err
	}
	// Copy so the packet does not alias the caller's frame buffer.
	return ImageClipboard{PNG: append([]byte(nil), png...)}, nil
}

func appendInt32(buf []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, decodeErrorf("truncated event: need %d bytes, have %d", n, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) boolByte() (bool, error) {
	b, err := r.byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.remaining() {
		return nil, decodeErrorf("truncated byte string: declared %d bytes, have %d", n, r.remaining())
	}
	return r.take(int(n))
}
