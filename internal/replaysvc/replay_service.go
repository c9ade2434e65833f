// Package replaysvc turns received packets back into local input: keyboard
// and pointer events go to a virtual input device, clipboard payloads go to
// the system clipboard.
package replaysvc

import (
	"context"
	"errors"

	"github.com/kvmlink/kvmlink/pkg/protocol"
	"go.uber.org/zap"
)

// ErrUnmappableKey marks a key usage the injector's virtual device cannot
// represent. Such events are dropped with a warning, never fatal.
var ErrUnmappableKey = errors.New("key usage not mappable to the virtual device")

// Injector replays input events on the local machine. Key takes a USB HID
// keyboard-page usage ID, Wheel takes whole notches.
type Injector interface {
	Key(usage uint16, pressed bool) error
	Button(button protocol.Button, pressed bool) error
	Move(dx, dy int32) error
	Wheel(dx, dy int32) error
	Close() error
}

// ClipboardWriter places received clipboard payloads on the local clipboard.
type ClipboardWriter interface {
	WriteText(ctx context.Context, text string) error
	WriteHTML(ctx context.Context, html, plain string) error
	WriteImage(ctx context.Context, png []byte) error
}

type Service struct {
	log       *zap.Logger
	injector  Injector
	clipboard ClipboardWriter
	ready     chan struct{}
}

func New(log *zap.Logger, injector Injector, clipboard ClipboardWriter) *Service {
	return &Service{
		log:       log,
		injector:  injector,
		clipboard: clipboard,
		ready:     make(chan struct{}),
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) Start(ctx context.Context) error {
	close(s.ready)
	<-ctx.Done()
	return s.injector.Close()
}

// Handle replays one packet. Failures are contained to the event: an
// injection or clipboard error is logged and the stream keeps flowing.
func (s *Service) Handle(ctx context.Context, pkt protocol.Packet) {
	switch ev := pkt.Event.(type) {
	case protocol.MouseMotion:
		s.inject(s.injector.Move(ev.DX, ev.DY))
	case protocol.MouseWheel:
		s.inject(s.injector.Wheel(ev.DX, ev.DY))
	case protocol.MouseButton:
		s.inject(s.injector.Button(ev.Button, ev.Pressed))
	case protocol.Keyboard:
		err := s.injector.Key(ev.Key, ev.Pressed)
		if errors.Is(err, ErrUnmappableKey) {
			s.log.Warn("Dropping unmappable key", zap.Uint16("usage", ev.Key))
			return
		}
		s.inject(err)
	case protocol.TextClipboard:
		if s.clipboard == nil {
			return
		}
		s.writeClipboard(s.clipboard.WriteText(ctx, ev.Content))
	case protocol.HtmlClipboard:
		if s.clipboard == nil {
			return
		}
		s.writeClipboard(s.clipboard.WriteHTML(ctx, ev.HTML, ev.Plain))
	case protocol.ImageClipboard:
		if s.clipboard == nil {
			return
		}
		s.writeClipboard(s.clipboard.WriteImage(ctx, ev.PNG))
	default:
		s.log.Warn("Ignoring packet with unknown event", zap.Uint64("id", pkt.ID))
	}
}

func (s *Service) inject(err error) {
	if err != nil {
		s.log.Error("Failed to inject event", zap.Error(err))
	}
}

func (s *Service) writeClipboard(err error) {
	if err != nil {
		s.log.Warn("Failed to write clipboard", zap.Error(err))
	}
}
