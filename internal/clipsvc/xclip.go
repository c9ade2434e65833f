package clipsvc

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// xclipClipboard drives the X11 clipboard through the xclip tool, the
// TIMESTAMP target doubling as a cheap change token.
type xclipClipboard struct{}

func newXclipClipboard() *xclipClipboard {
	return &xclipClipboard{}
}

func (c *xclipClipboard) Token(ctx context.Context) (uint64, bool) {
	out, err := c.paste(ctx, "TIMESTAMP")
	if err != nil {
		return 0, false
	}
	token, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, false
	}
	return token, true
}

func (c *xclipClipboard) Fetch(ctx context.Context) (Payload, error) {
	targets, err := c.paste(ctx, "TARGETS")
	if err != nil {
		return Payload{}, fmt.Errorf("failed to list clipboard targets: %w", err)
	}
	available := map[string]bool{}
	for _, target := range strings.Fields(string(targets)) {
		available[target] = true
	}

	switch {
	case available["image/png"]:
		png, err := c.paste(ctx, "image/png")
		if err != nil {
			return Payload{}, err
		}
		return Payload{Image: &ImagePayload{PNG: png}}, nil
	case available["text/html"]:
		html, err := c.paste(ctx, "text/html")
		if err != nil {
			return Payload{}, err
		}
		plain, err := c.paste(ctx, "UTF8_STRING")
		if err != nil {
			plain = nil
		}
		return Payload{HTML: &HTMLPayload{HTML: string(html), Plain: string(plain)}}, nil
	case available["UTF8_STRING"]:
		text, err := c.paste(ctx, "UTF8_STRING")
		if err != nil {
			return Payload{}, err
		}
		return Payload{Text: &TextPayload{Content: string(text)}}, nil
	}
	return Payload{}, nil
}

func (c *xclipClipboard) WriteText(ctx context.Context, text string) error {
	return c.copy(ctx, "UTF8_STRING", []byte(text))
}

func (c *xclipClipboard) WriteHTML(ctx context.Context, html, _ string) error {
	return c.copy(ctx, "text/html", []byte(html))
}

func (c *xclipClipboard) WriteImage(ctx context.Context, png []byte) error {
	return c.copy(ctx, "image/png", png)
}

func (c *xclipClipboard) paste(ctx context.Context, target string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "xclip", "-selection", "clipboard", "-o", "-t", target)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("xclip -o -t %s: %w", target, err)
	}
	return out.Bytes(), nil
}

func (c *xclipClipboard) copy(ctx context.Context, target string, data []byte) error {
	cmd := exec.CommandContext(ctx, "xclip", "-selection", "clipboard", "-i", "-t", target)
	cmd.Stdin = bytes.NewReader(data)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("xclip -i -t %s: %w", target, err)
	}
	return nil
}
