package clientsvc

import (
	"bytes"
	"context"
	"testing"

	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	packets []protocol.Packet
}

func (r *recordingSink) Handle(_ context.Context, pkt protocol.Packet) {
	r.packets = append(r.packets, pkt)
}

func newTestService(sink Sink) *Service {
	return New(zap.NewNop(), sink, Config{})
}

func TestReadFramesDeliversInOrder(t *testing.T) {
	var buf bytes.Buffer
	for i := uint64(1); i <= 3; i++ {
		frame := protocol.Encode(protocol.Packet{ID: i, Event: protocol.MouseMotion{DX: int32(i)}})
		require.NoError(t, protocol.WriteFrame(&buf, frame))
	}

	sink := &recordingSink{}
	svc := newTestService(sink)
	err := svc.readFrames(context.Background(), &buf)
	require.NoError(t, err)
	require.Len(t, sink.packets, 3)
	for i, pkt := range sink.packets {
		assert.Equal(t, uint64(i+1), pkt.ID)
	}
}

func TestReadFramesStopsOnCorruptFrame(t *testing.T) {
	var buf bytes.Buffer
	good := protocol.Encode(protocol.Packet{ID: 1, Event: protocol.Keyboard{Key: 0x04, Pressed: true}})
	require.NoError(t, protocol.WriteFrame(&buf, good))
	// A frame whose payload is too short to hold a packet.
	require.NoError(t, protocol.WriteFrame(&buf, []byte{0x01, 0x02}))
	require.NoError(t, protocol.WriteFrame(&buf, good))

	sink := &recordingSink{}
	svc := newTestService(sink)
	err := svc.readFrames(context.Background(), &buf)

	var decodeErr *protocol.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	// Only the frame before the corruption was delivered.
	assert.Len(t, sink.packets, 1)
}

func TestReadFramesRejectsImplausibleLength(t *testing.T) {
	// Length prefix far beyond the frame size cap.
	buf := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	svc := newTestService(&recordingSink{})
	err := svc.readFrames(context.Background(), buf)

	var decodeErr *protocol.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}
