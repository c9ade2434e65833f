package clipsvc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// waylandClipboard drives the clipboard through wl-paste and wl-copy.
// Wayland exposes no change timestamp, so Token is unsupported and change
// detection falls back to content fingerprints.
type waylandClipboard struct{}

func newWaylandClipboard() *waylandClipboard {
	return &waylandClipboard{}
}

func (c *waylandClipboard) Token(ctx context.Context) (uint64, bool) {
	return 0, false
}

func (c *waylandClipboard) Fetch(ctx context.Context) (Payload, error) {
	out, err := c.run(ctx, nil, "wl-paste", "--list-types")
	if err != nil {
		// An empty clipboard makes wl-paste exit non-zero.
		return Payload{}, nil
	}
	available := map[string]bool{}
	for _, t := range strings.Fields(string(out)) {
		available[t] = true
	}

	switch {
	case available["image/png"]:
		png, err := c.run(ctx, nil, "wl-paste", "--type", "image/png")
		if err != nil {
			return Payload{}, err
		}
		return Payload{Image: &ImagePayload{PNG: png}}, nil
	case available["text/html"]:
		html, err := c.run(ctx, nil, "wl-paste", "--no-newline", "--type", "text/html")
		if err != nil {
			return Payload{}, err
		}
		plain, err := c.run(ctx, nil, "wl-paste", "--no-newline", "--type", "text/plain;charset=utf-8")
		if err != nil {
			plain = nil
		}
		return Payload{HTML: &HTMLPayload{HTML: string(html), Plain: string(plain)}}, nil
	case available["text/plain;charset=utf-8"] || available["text/plain"]:
		text, err := c.run(ctx, nil, "wl-paste", "--no-newline", "--type", "text/plain;charset=utf-8")
		if err != nil {
			return Payload{}, err
		}
		return Payload{Text: &TextPayload{Content: string(text)}}, nil
	}
	return Payload{}, nil
}

func (c *waylandClipboard) WriteText(ctx context.Context, text string) error {
	_, err := c.run(ctx, []byte(text), "wl-copy")
	return err
}

func (c *waylandClipboard) WriteHTML(ctx context.Context, html, _ string) error {
	_, err := c.run(ctx, []byte(html), "wl-copy", "--type", "text/html")
	return err
}

func (c *waylandClipboard) WriteImage(ctx context.Context, png []byte) error {
	_, err := c.run(ctx, png, "wl-copy", "--type", "image/png")
	return err
}

func (c *waylandClipboard) run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out.Bytes(), nil
}
