// Package clientsvc maintains the connection to the server, reading event
// frames from its lanes and handing decoded packets to the replay sink.
// It reconnects forever with exponential backoff.
package clientsvc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/quic-go/quic-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ALPN must match the server's negotiated application protocol.
const ALPN = "kvmlink"

// Sink consumes decoded packets, usually the replay service.
type Sink interface {
	Handle(ctx context.Context, pkt protocol.Packet)
}

type Config struct {
	// ServerAddr is the QUIC (or legacy TLS/TCP) address of the server.
	ServerAddr string
	// Legacy selects the ordered single-stream TLS/TCP protocol.
	Legacy bool
	TLS    *tls.Config
}

type Service struct {
	log    *zap.Logger
	sink   Sink
	config Config
	ready  chan struct{}
}

func New(log *zap.Logger, sink Sink, config Config) *Service {
	return &Service{
		log:    log,
		sink:   sink,
		config: config,
		ready:  make(chan struct{}),
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Start runs the reconnect loop until the context ends.
func (s *Service) Start(ctx context.Context) error {
	close(s.ready)
	b := newBackoff()
	for {
		err := s.connect(ctx, b)
		if ctx.Err() != nil {
			return nil
		}
		delay := b.Next()
		s.log.Warn("Connection lost, reconnecting",
			zap.Error(err), zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *Service) connect(ctx context.Context, b *backoff) error {
	if s.config.Legacy {
		return s.connectLegacy(ctx, b)
	}

	tlsConf := s.config.TLS.Clone()
	tlsConf.NextProtos = []string{ALPN}
	conn, err := quic.DialAddr(ctx, s.config.ServerAddr, tlsConf, &quic.Config{})
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.config.ServerAddr, err)
	}
	s.log.Info("Connected", zap.String("addr", s.config.ServerAddr))
	b.Reset()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-conn.Context().Done():
		}
		return conn.CloseWithError(0, "")
	})
	g.Go(func() error {
		for {
			stream, err := conn.AcceptUniStream(ctx)
			if err != nil {
				return fmt.Errorf("failed to accept lane: %w", err)
			}
			go s.handleLane(ctx, stream)
		}
	})
	return g.Wait()
}

func (s *Service) handleLane(ctx context.Context, stream quic.ReceiveStream) {
	var tag [1]byte
	if _, err := io.ReadFull(stream, tag[:]); err != nil {
		s.log.Warn("Failed to read lane tag", zap.Error(err))
		stream.CancelRead(1)
		return
	}
	lane := protocol.Lane(tag[0])
	if _, ok := protocol.ClassForLane(lane); !ok {
		s.log.Warn("Unknown lane tag, ignoring stream", zap.Uint8("tag", tag[0]))
		stream.CancelRead(1)
		return
	}
	log := s.log.With(zap.String("lane", lane.String()))
	log.Debug("Lane open")
	if err := s.readFrames(ctx, stream); err != nil {
		// Corruption or a reset kills this lane only.
		log.Warn("Lane failed", zap.Error(err))
		stream.CancelRead(1)
	}
}

// readFrames pulls length-prefixed frames off one stream and hands decoded
// packets to the sink until the stream ends or a frame fails to decode.
func (s *Service) readFrames(ctx context.Context, r io.Reader) error {
	for {
		frame, err := protocol.ReadFrame(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		pkt, err := protocol.Decode(frame)
		if err != nil {
			return err
		}
		s.sink.Handle(ctx, pkt)
		if ctx.Err() != nil {
			return nil
		}
	}
}
