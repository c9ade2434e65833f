package capturesvc

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/kvmlink/kvmlink/pkg/keymap"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSource plays back a fixed event sequence and then idles until the
// context ends.
type scriptedSource struct {
	events []SourceEvent
	ready  chan struct{}
	played chan struct{}
}

func newScriptedSource(events ...SourceEvent) *scriptedSource {
	return &scriptedSource{
		events: events,
		ready:  make(chan struct{}),
		played: make(chan struct{}),
	}
}

func (s *scriptedSource) Ready() <-chan struct{} { return s.ready }

func (s *scriptedSource) Start(ctx context.Context, publish SourcePublisher) error {
	close(s.ready)
	for _, ev := range s.events {
		publish(ctx, ev)
	}
	close(s.played)
	<-ctx.Done()
	return nil
}

func keyEvent(code uint16, pressed bool) SourceEvent {
	return SourceEvent{Key: &KeyEvent{Code: code, Pressed: pressed}}
}

func toggleTap() []SourceEvent {
	return []SourceEvent{keyEvent(KeyRightCtrl, true), keyEvent(KeyRightCtrl, false)}
}

type capturedPackets struct {
	ch chan protocol.Packet
}

func newCapturedPackets() *capturedPackets {
	return &capturedPackets{ch: make(chan protocol.Packet, 256)}
}

func (c *capturedPackets) publish(ctx context.Context, pkt protocol.Packet) {
	select {
	case <-ctx.Done():
	case c.ch <- pkt:
	}
}

// drain collects packets until none arrive for a short settle window.
func (c *capturedPackets) drain(t *testing.T, want int) []protocol.Packet {
	t.Helper()
	var pkts []protocol.Packet
	timeout := time.After(5 * time.Second)
	for len(pkts) < want {
		select {
		case pkt := <-c.ch:
			pkts = append(pkts, pkt)
		case <-timeout:
			t.Fatalf("got %d packets, want %d", len(pkts), want)
		}
	}
	select {
	case pkt := <-c.ch:
		t.Fatalf("unexpected extra packet: %+v", pkt)
	case <-time.After(50 * time.Millisecond):
	}
	return pkts
}

func runCapture(t *testing.T, source Source, sink *capturedPackets, opts ...Option) (*Service, context.CancelFunc) {
	t.Helper()
	registry := NewRegistry(zap.NewNop(), nil, time.Now)
	grabber := NewGrabber(zap.NewNop(), registry)
	svc := New(zap.NewNop(), source, registry, grabber, keymap.Linux(), sink.publish, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return svc, cancel
}

func TestSuppressedUntilGrabbed(t *testing.T) {
	const keyA = 30
	events := []SourceEvent{
		keyEvent(keyA, true), // before grab: dropped
		keyEvent(keyA, false),
	}
	events = append(events, toggleTap()...)
	events = append(events, keyEvent(keyA, true), keyEvent(keyA, false))

	sink := newCapturedPackets()
	source := newScriptedSource(events...)
	runCapture(t, source, sink)

	pkts := sink.drain(t, 2)
	assert.Equal(t, protocol.Keyboard{Key: 0x04, Pressed: true}, pkts[0].Event)
	assert.Equal(t, protocol.Keyboard{Key: 0x04, Pressed: false}, pkts[1].Event)
}

func TestSequenceIDsIncrease(t *testing.T) {
	events := toggleTap()
	for i := 0; i < 5; i++ {
		events = append(events, keyEvent(30, i%2 == 0))
	}

	sink := newCapturedPackets()
	runCapture(t, newScriptedSource(events...), sink)

	pkts := sink.drain(t, 5)
	for i, pkt := range pkts {
		// ID 0 is reserved for clipboard packets, hardware events start at 1.
		assert.Equal(t, uint64(i+1), pkt.ID)
	}
}

func TestSequenceWrapSkipsClipboardID(t *testing.T) {
	sink := newCapturedPackets()
	svc := New(zap.NewNop(), newScriptedSource(), nil, nil, keymap.Linux(), sink.publish)
	svc.seq = math.MaxUint64

	ctx := context.Background()
	svc.forward(ctx, protocol.Keyboard{Key: 0x04, Pressed: true})

	pkt := <-sink.ch
	// Wrapping lands on the reserved clipboard id, which is skipped.
	assert.Equal(t, uint64(1), pkt.ID)
}

func TestToggleKeyNeverForwarded(t *testing.T) {
	events := toggleTap() // grab on
	// Extra toggle-key presses while grabbed must not be forwarded either.
	events = append(events, keyEvent(KeyRightCtrl, true))
	events = append(events, keyEvent(30, true))

	sink := newCapturedPackets()
	source := newScriptedSource(events...)
	svc, _ := runCapture(t, source, sink)

	pkts := sink.drain(t, 1)
	assert.Equal(t, protocol.Keyboard{Key: 0x04, Pressed: true}, pkts[0].Event)
	assert.True(t, svc.Grabbed())
}

func TestToggleOnReleaseEdgeOnly(t *testing.T) {
	// A press without release must not toggle.
	events := []SourceEvent{keyEvent(KeyRightCtrl, true)}

	sink := newCapturedPackets()
	source := newScriptedSource(events...)
	svc, _ := runCapture(t, source, sink)

	select {
	case <-source.played:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not finish")
	}
	assert.False(t, svc.Grabbed())
}

func TestUnknownKeyDropped(t *testing.T) {
	events := toggleTap()
	events = append(events,
		keyEvent(0x2f0, true), // no keymap entry
		keyEvent(30, true),
	)

	sink := newCapturedPackets()
	runCapture(t, newScriptedSource(events...), sink)

	pkts := sink.drain(t, 1)
	assert.Equal(t, protocol.Keyboard{Key: 0x04, Pressed: true}, pkts[0].Event)
}

func TestMotionAndWheelForwarding(t *testing.T) {
	events := toggleTap()
	events = append(events,
		SourceEvent{Motion: &MotionEvent{DX: 0.6, DY: 0}},
		SourceEvent{Motion: &MotionEvent{DX: 0.6, DY: 0}}, // 1.2 accumulated
		SourceEvent{Wheel: &WheelEvent{DY: 120}},
		SourceEvent{Button: &ButtonEvent{Code: keymap.BtnLeft, Pressed: true}},
		SourceEvent{Button: &ButtonEvent{Code: 0x113, Pressed: true}}, // BTN_SIDE, unmapped
	)

	sink := newCapturedPackets()
	runCapture(t, newScriptedSource(events...), sink)

	pkts := sink.drain(t, 3)
	assert.Equal(t, protocol.MouseMotion{DX: 1, DY: 0}, pkts[0].Event)
	assert.Equal(t, protocol.MouseWheel{DX: 0, DY: 1}, pkts[1].Event)
	assert.Equal(t, protocol.MouseButton{Button: protocol.ButtonLeft, Pressed: true}, pkts[2].Event)
}

func TestGrabHookFiredOnGrabOnEdge(t *testing.T) {
	hookFired := make(chan struct{}, 2)

	events := toggleTap() // on: hook fires
	events = append(events, toggleTap()...)

	sink := newCapturedPackets()
	source := newScriptedSource(events...)
	runCapture(t, source, sink, WithGrabHook(func(context.Context) {
		hookFired <- struct{}{}
	}))

	select {
	case <-hookFired:
	case <-time.After(5 * time.Second):
		t.Fatal("grab hook not fired")
	}
	// Off edge: no second firing.
	select {
	case <-source.played:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not finish")
	}
	select {
	case <-hookFired:
		t.Fatal("grab hook fired on the off edge")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeviceAddRemoveUpdatesRegistry(t *testing.T) {
	dev := &fakeDevice{path: "/dev/input/event9"}
	events := []SourceEvent{
		{DeviceAdded: &DeviceAddedEvent{Handle: dev, Name: "test kb"}},
		{DeviceRemoved: &DeviceRemovedEvent{Path: "/dev/input/event9"}},
	}

	sink := newCapturedPackets()
	source := newScriptedSource(events...)
	svc, _ := runCapture(t, source, sink)

	select {
	case <-source.played:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not finish")
	}
	require.Eventually(t, func() bool {
		return svc.registry.Len() == 0
	}, time.Second, 10*time.Millisecond)
}
