package clientsvc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"go.uber.org/zap"
)

// connectLegacy runs one ordered single-stream TLS/TCP session. Frames
// arrive in dispatch order on the lone stream, no lanes.
func (s *Service) connectLegacy(ctx context.Context, b *backoff) error {
	dialer := &net.Dialer{}
	raw, err := dialer.DialContext(ctx, "tcp", s.config.ServerAddr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.config.ServerAddr, err)
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			s.log.Warn("Failed to disable Nagle", zap.Error(err))
		}
	}
	stream := tls.Client(raw, s.config.TLS)
	if err := stream.HandshakeContext(ctx); err != nil {
		raw.Close()
		return fmt.Errorf("tls handshake failed: %w", err)
	}
	defer stream.Close()
	s.log.Info("Connected", zap.String("addr", s.config.ServerAddr))
	b.Reset()

	go func() {
		<-ctx.Done()
		stream.Close()
	}()
	return s.readFrames(ctx, stream)
}
