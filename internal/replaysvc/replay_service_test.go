package replaysvc

import (
	"context"
	"errors"
	"testing"

	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeInjector struct {
	keys    []uint16
	buttons []protocol.Button
	moves   int
	wheels  int
	keyErr  error
}

func (f *fakeInjector) Key(usage uint16, pressed bool) error {
	if f.keyErr != nil {
		return f.keyErr
	}
	f.keys = append(f.keys, usage)
	return nil
}

func (f *fakeInjector) Button(button protocol.Button, pressed bool) error {
	f.buttons = append(f.buttons, button)
	return nil
}

func (f *fakeInjector) Move(dx, dy int32) error {
	f.moves++
	return nil
}

func (f *fakeInjector) Wheel(dx, dy int32) error {
	f.wheels++
	return nil
}

func (f *fakeInjector) Close() error {
	return nil
}

type fakeClipboard struct {
	texts  []string
	htmls  []string
	images int
	err    error
}

func (f *fakeClipboard) WriteText(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeClipboard) WriteHTML(_ context.Context, html, _ string) error {
	f.htmls = append(f.htmls, html)
	return nil
}

func (f *fakeClipboard) WriteImage(_ context.Context, _ []byte) error {
	f.images++
	return nil
}

func TestHandleRoutesEvents(t *testing.T) {
	inj := &fakeInjector{}
	clip := &fakeClipboard{}
	svc := New(zap.NewNop(), inj, clip)
	ctx := context.Background()

	svc.Handle(ctx, protocol.Packet{ID: 1, Event: protocol.MouseMotion{DX: 1, DY: 2}})
	svc.Handle(ctx, protocol.Packet{ID: 2, Event: protocol.MouseWheel{DY: 120}})
	svc.Handle(ctx, protocol.Packet{ID: 3, Event: protocol.MouseButton{Button: protocol.ButtonLeft, Pressed: true}})
	svc.Handle(ctx, protocol.Packet{ID: 4, Event: protocol.Keyboard{Key: 0x04, Pressed: true}})
	svc.Handle(ctx, protocol.Packet{ID: 0, Event: protocol.TextClipboard{Content: "copy"}})
	svc.Handle(ctx, protocol.Packet{ID: 0, Event: protocol.HtmlClipboard{HTML: "<b>x</b>", Plain: "x"}})
	svc.Handle(ctx, protocol.Packet{ID: 0, Event: protocol.ImageClipboard{PNG: []byte{1, 2}}})

	assert.Equal(t, 1, inj.moves)
	assert.Equal(t, 1, inj.wheels)
	assert.Equal(t, []protocol.Button{protocol.ButtonLeft}, inj.buttons)
	assert.Equal(t, []uint16{0x04}, inj.keys)
	assert.Equal(t, []string{"copy"}, clip.texts)
	assert.Equal(t, []string{"<b>x</b>"}, clip.htmls)
	assert.Equal(t, 1, clip.images)
}

func TestHandleDropsUnmappableKey(t *testing.T) {
	inj := &fakeInjector{keyErr: ErrUnmappableKey}
	svc := New(zap.NewNop(), inj, &fakeClipboard{})

	svc.Handle(context.Background(), protocol.Packet{ID: 1, Event: protocol.Keyboard{Key: 0x0200, Pressed: true}})
	assert.Empty(t, inj.keys)
}

func TestHandleClipboardFailureIsNotFatal(t *testing.T) {
	clip := &fakeClipboard{err: errors.New("no display")}
	inj := &fakeInjector{}
	svc := New(zap.NewNop(), inj, clip)

	svc.Handle(context.Background(), protocol.Packet{ID: 0, Event: protocol.TextClipboard{Content: "x"}})
	svc.Handle(context.Background(), protocol.Packet{ID: 5, Event: protocol.Keyboard{Key: 0x05, Pressed: true}})
	// The keyboard event after the failed clipboard write still lands.
	assert.Empty(t, clip.texts)
	assert.Equal(t, []uint16{0x05}, inj.keys)
}
