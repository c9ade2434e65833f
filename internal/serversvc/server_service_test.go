package serversvc

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kvmlink/kvmlink/internal/dispatchsvc"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicForLane(t *testing.T) {
	assert.Equal(t, dispatchsvc.TopicMouse, topicForLane(protocol.LaneMouse))
	assert.Equal(t, dispatchsvc.TopicKeyboard, topicForLane(protocol.LaneKeyboard))
	assert.Equal(t, dispatchsvc.TopicMisc, topicForLane(protocol.LaneMisc))
}

func TestPumpFramesWritesLengthPrefixed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan []byte, 2)
	frames <- protocol.Encode(protocol.Packet{ID: 7, Event: protocol.MouseMotion{DX: 1, DY: 2}})
	frames <- protocol.Encode(protocol.Packet{ID: 8, Event: protocol.Keyboard{Key: 0x04, Pressed: true}})

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- pumpFrames(ctx, frames, &buf)
	}()
	for len(frames) > 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	r := bytes.NewReader(buf.Bytes())
	pkt, err := readPacket(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), pkt.ID)
	pkt, err = readPacket(r)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), pkt.ID)
}

func readPacket(r *bytes.Reader) (protocol.Packet, error) {
	frame, err := protocol.ReadFrame(r)
	if err != nil {
		return protocol.Packet{}, err
	}
	return protocol.Decode(frame)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("stream reset")
}

func TestPumpFramesStopsOnWriteError(t *testing.T) {
	ctx := context.Background()
	frames := make(chan []byte, 1)
	frames <- protocol.Encode(protocol.Packet{ID: 1, Event: protocol.MouseMotion{DX: 1}})
	err := pumpFrames(ctx, frames, failingWriter{})
	assert.Error(t, err)
}
