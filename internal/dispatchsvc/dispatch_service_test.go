package dispatchsvc

import (
	"context"
	"testing"
	"time"

	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startDispatcher(t *testing.T) (*Service, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	svc := New(zap.NewNop())
	go func() {
		_ = svc.Start(ctx)
	}()
	<-svc.Ready()
	return svc, ctx
}

func receiveFrame(t *testing.T, ch <-chan []byte) protocol.Packet {
	t.Helper()
	select {
	case frame := <-ch:
		pkt, err := protocol.Decode(frame)
		require.NoError(t, err)
		return pkt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return protocol.Packet{}
	}
}

func TestClassRouting(t *testing.T) {
	svc, ctx := startDispatcher(t)

	mouse := svc.Subscribe(ctx, TopicMouse)
	keyboard := svc.Subscribe(ctx, TopicKeyboard)
	misc := svc.Subscribe(ctx, TopicMisc)

	svc.Enqueue(ctx, protocol.Packet{ID: 1, Event: protocol.MouseMotion{DX: 3, DY: -1}})
	svc.Enqueue(ctx, protocol.Packet{ID: 2, Event: protocol.Keyboard{Key: 0x04, Pressed: true}})
	svc.Enqueue(ctx, protocol.Packet{ID: 0, Event: protocol.TextClipboard{Content: "hi"}})

	pkt := receiveFrame(t, mouse)
	assert.Equal(t, uint64(1), pkt.ID)
	assert.Equal(t, protocol.ClassMouse, pkt.Event.Class())

	pkt = receiveFrame(t, keyboard)
	assert.Equal(t, uint64(2), pkt.ID)

	pkt = receiveFrame(t, misc)
	assert.Equal(t, protocol.TextClipboard{Content: "hi"}, pkt.Event)
}

func TestFirehoseSeesEverything(t *testing.T) {
	svc, ctx := startDispatcher(t)
	all := svc.Subscribe(ctx, TopicAll)

	svc.Enqueue(ctx, protocol.Packet{ID: 1, Event: protocol.MouseMotion{DX: 1}})
	svc.Enqueue(ctx, protocol.Packet{ID: 2, Event: protocol.Keyboard{Key: 0x05, Pressed: true}})
	svc.Enqueue(ctx, protocol.Packet{ID: 3, Event: protocol.MouseButton{Button: protocol.ButtonLeft, Pressed: true}})

	for want := uint64(1); want <= 3; want++ {
		pkt := receiveFrame(t, all)
		assert.Equal(t, want, pkt.ID)
	}
}

func TestStalledMiscSubscriberDoesNotDelayMouse(t *testing.T) {
	svc, ctx := startDispatcher(t)

	// Subscribed but never read. Its buffer fills and overflows while
	// the mouse lane keeps flowing.
	_ = svc.Subscribe(ctx, TopicMisc)
	mouse := svc.Subscribe(ctx, TopicMouse)

	const n = 100
	for i := 0; i < n; i++ {
		svc.Enqueue(ctx, protocol.Packet{ID: uint64(i), Event: protocol.MouseMotion{DX: 1}})
		svc.Enqueue(ctx, protocol.Packet{ID: 0, Event: protocol.TextClipboard{Content: "stall"}})
	}

	for i := 0; i < n; i++ {
		pkt := receiveFrame(t, mouse)
		assert.Equal(t, uint64(i), pkt.ID)
	}
	assert.NotZero(t, svc.Dropped())
}
