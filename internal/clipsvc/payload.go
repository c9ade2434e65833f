package clipsvc

import (
	"context"

	"github.com/cespare/xxhash"
	"github.com/kvmlink/kvmlink/pkg/protocol"
)

type TextPayload struct {
	Content string
}

type HTMLPayload struct {
	HTML  string
	Plain string
}

type ImagePayload struct {
	PNG []byte
}

// Payload is the fetched clipboard content, exactly one field set.
type Payload struct {
	Text  *TextPayload
	HTML  *HTMLPayload
	Image *ImagePayload
}

func (p Payload) Empty() bool {
	return p.Text == nil && p.HTML == nil && p.Image == nil
}

// Event converts the payload into its wire event.
func (p Payload) Event() protocol.Event {
	switch {
	case p.Text != nil:
		return protocol.TextClipboard{Content: p.Text.Content}
	case p.HTML != nil:
		return protocol.HtmlClipboard{HTML: p.HTML.HTML, Plain: p.HTML.Plain}
	case p.Image != nil:
		return protocol.ImageClipboard{PNG: p.Image.PNG}
	}
	return nil
}

// Fingerprint hashes the payload content for change detection.
func (p Payload) Fingerprint() uint64 {
	h := xxhash.New()
	switch {
	case p.Text != nil:
		h.Write([]byte("text"))
		h.Write([]byte(p.Text.Content))
	case p.HTML != nil:
		h.Write([]byte("html"))
		h.Write([]byte(p.HTML.HTML))
		h.Write([]byte(p.HTML.Plain))
	case p.Image != nil:
		h.Write([]byte("image"))
		h.Write(p.Image.PNG)
	}
	return h.Sum64()
}

// Source reads the local clipboard. Token is a cheap change indicator
// where the platform offers one; ok=false means callers must fetch and
// compare fingerprints instead.
type Source interface {
	Token(ctx context.Context) (uint64, bool)
	Fetch(ctx context.Context) (Payload, error)
}

// Writer places content on the local clipboard.
type Writer interface {
	WriteText(ctx context.Context, text string) error
	WriteHTML(ctx context.Context, html, plain string) error
	WriteImage(ctx context.Context, png []byte) error
}
