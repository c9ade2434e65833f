// Package capturesvc reads the host input stream, coalesces high-frequency
// events, coordinates the exclusive device grab and emits sequenced packets
// toward the dispatcher.
package capturesvc

import (
	"context"

	"github.com/kvmlink/kvmlink/pkg/keymap"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PacketPublisher hands a sequenced packet to the dispatcher ingress.
type PacketPublisher func(ctx context.Context, pkt protocol.Packet)

// KeyRightCtrl is the default grab toggle key (evdev KEY_RIGHTCTRL).
const KeyRightCtrl uint16 = 97

var defaultOptions = serviceOptions{
	toggleKey: KeyRightCtrl,
}

type serviceOptions struct {
	toggleKey uint16
	grabHook  func(ctx context.Context)
}

type Option func(*serviceOptions)

// WithToggleKey overrides the evdev code of the control-plane key whose
// release edge toggles the grab state.
func WithToggleKey(code uint16) Option {
	return func(o *serviceOptions) {
		o.toggleKey = code
	}
}

// WithGrabHook registers a callback fired asynchronously on every grab-on
// edge. Used for the best-effort clipboard capture.
func WithGrabHook(fn func(ctx context.Context)) Option {
	return func(o *serviceOptions) {
		o.grabHook = fn
	}
}

// Service is the capture engine. It owns the sequence counter, the
// coalescers and the grabbed flag; all event processing happens on the
// single run loop goroutine.
type Service struct {
	log      *zap.Logger
	source   Source
	registry *Registry
	grabber  *Grabber
	keys     *keymap.Table
	publish  PacketPublisher
	options  serviceOptions

	grabbed *atomic.Bool
	events  chan SourceEvent
	ready   chan struct{}

	seq    uint64
	motion motionCoalescer
	wheel  wheelCoalescer
}

func New(log *zap.Logger, source Source, registry *Registry, grabber *Grabber, keys *keymap.Table, publish PacketPublisher, opts ...Option) *Service {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Service{
		log:      log,
		source:   source,
		registry: registry,
		grabber:  grabber,
		keys:     keys,
		publish:  publish,
		options:  options,
		grabbed:  atomic.NewBool(false),
		events:   make(chan SourceEvent, 128),
		ready:    make(chan struct{}),
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Grabbed reports whether input is currently being forwarded.
func (s *Service) Grabbed() bool {
	return s.grabbed.Load()
}

func (s *Service) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.source.Start(ctx, s.enqueue)
	})
	group.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-s.source.Ready():
		}
		close(s.ready)
		s.log.Info("Capture service started")
		s.run(ctx)
		return nil
	})
	err := group.Wait()
	if s.grabbed.Load() {
		// Do not leave devices exclusively claimed on shutdown.
		_ = s.grabber.Set(false)
	}
	return err
}

func (s *Service) enqueue(ctx context.Context, ev SourceEvent) {
	select {
	case <-ctx.Done():
	case s.events <- ev:
	}
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Service) handle(ctx context.Context, ev SourceEvent) {
	switch {
	case ev.DeviceAdded != nil:
		s.handleDeviceAdded(ev.DeviceAdded)
	case ev.DeviceRemoved != nil:
		s.log.Info("Device removed", zap.String("path", ev.DeviceRemoved.Path))
		s.registry.Remove(ev.DeviceRemoved.Path)
	case ev.Key != nil:
		s.handleKey(ctx, ev.Key)
	case ev.Button != nil:
		s.handleButton(ctx, ev.Button)
	case ev.Motion != nil:
		s.handleMotion(ctx, ev.Motion)
	case ev.Wheel != nil:
		s.handleWheel(ctx, ev.Wheel)
	}
}

func (s *Service) handleDeviceAdded(ev *DeviceAddedEvent) {
	s.log.Info("Device added", zap.String("path", ev.Handle.Path()), zap.String("name", ev.Name))
	s.registry.Add(ev.Handle)
	if s.grabbed.Load() {
		// A device plugged in mid-session joins the active grab, otherwise
		// its events would leak into the local desktop.
		if err := ev.Handle.Grab(true); err != nil {
			s.log.Error("Failed to grab hot-added device", zap.String("path", ev.Handle.Path()), zap.Error(err))
		}
	}
}

func (s *Service) handleKey(ctx context.Context, ev *KeyEvent) {
	if ev.Code == s.options.toggleKey {
		// Control-plane key: only the release edge toggles, and the key
		// itself is never forwarded.
		if !ev.Pressed {
			s.toggleGrab(ctx)
		}
		return
	}

	usage, ok := s.keys.ToUsage(ev.Code)
	if !ok {
		s.log.Warn("Unknown key code, dropping event", zap.Uint16("code", ev.Code))
		return
	}
	if !s.grabbed.Load() {
		return
	}
	s.forward(ctx, protocol.Keyboard{Key: usage, Pressed: ev.Pressed})
}

func (s *Service) handleButton(ctx context.Context, ev *ButtonEvent) {
	if !s.grabbed.Load() {
		return
	}
	button, ok := keymap.ButtonFromEvdev(ev.Code)
	if !ok {
		return
	}
	s.forward(ctx, protocol.MouseButton{Button: button, Pressed: ev.Pressed})
}

func (s *Service) handleMotion(ctx context.Context, ev *MotionEvent) {
	if !s.grabbed.Load() {
		return
	}
	if dx, dy, emit := s.motion.Add(ev.DX, ev.DY); emit {
		s.forward(ctx, protocol.MouseMotion{DX: dx, DY: dy})
	}
}

func (s *Service) handleWheel(ctx context.Context, ev *WheelEvent) {
	if !s.grabbed.Load() {
		return
	}
	if dx, dy, emit := s.wheel.Add(ev.DX, ev.DY); emit {
		s.forward(ctx, protocol.MouseWheel{DX: dx, DY: dy})
	}
}

func (s *Service) toggleGrab(ctx context.Context) {
	if s.grabbed.Load() {
		s.grabbed.Store(false)
		if err := s.grabber.Set(false); err != nil {
			s.log.Warn("Some devices failed to release", zap.Error(err))
		}
		s.log.Info("Ungrabbed all devices")
		return
	}

	s.grabbed.Store(true)
	if err := s.grabber.Set(true); err != nil {
		s.log.Warn("Some devices failed to grab", zap.Error(err))
	}
	s.log.Info("Grabbed all devices")

	if s.options.grabHook != nil {
		go s.options.grabHook(ctx)
	}
}

func (s *Service) forward(ctx context.Context, ev protocol.Event) {
	s.seq++
	if s.seq == protocol.ClipboardID {
		// The sequence wrapped onto the reserved clipboard id.
		s.seq++
	}
	s.publish(ctx, protocol.Packet{ID: s.seq, Event: ev})
}
