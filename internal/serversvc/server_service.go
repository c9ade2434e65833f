// Package serversvc accepts inbound connections and forwards dispatched
// frames to them. The canonical transport is QUIC with one unidirectional
// stream per event class; a legacy single-stream TLS listener can run
// alongside it for older clients.
package serversvc

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/kvmlink/kvmlink/internal/dispatchsvc"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/quic-go/quic-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ALPN is the application protocol negotiated during the TLS handshake.
const ALPN = "kvmlink"

type Config struct {
	// ListenAddr is the UDP address of the QUIC listener.
	ListenAddr string
	// LegacyListenAddr, when non-empty, adds a plain TLS/TCP listener
	// serving the ordered single-stream protocol.
	LegacyListenAddr string
	TLS              *tls.Config
}

type Service struct {
	log    *zap.Logger
	disp   *dispatchsvc.Service
	config Config
	ready  chan struct{}
}

func New(log *zap.Logger, disp *dispatchsvc.Service, config Config) *Service {
	return &Service{
		log:    log,
		disp:   disp,
		config: config,
		ready:  make(chan struct{}),
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) Start(ctx context.Context) error {
	tlsConf := s.config.TLS.Clone()
	tlsConf.NextProtos = []string{ALPN}

	listener, err := quic.ListenAddr(s.config.ListenAddr, tlsConf, &quic.Config{})
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}
	s.log.Info("Listening", zap.String("addr", s.config.ListenAddr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return listener.Close()
	})
	if s.config.LegacyListenAddr != "" {
		legacy := newLegacyListener(s.log.Named("legacy"), s.disp, s.config.LegacyListenAddr, s.config.TLS)
		g.Go(func() error {
			return legacy.run(ctx)
		})
	}
	g.Go(func() error {
		close(s.ready)
		for {
			conn, err := listener.Accept(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to accept connection: %w", err)
			}
			go s.handleConnection(ctx, conn)
		}
	})
	return g.Wait()
}

func (s *Service) handleConnection(ctx context.Context, conn quic.Connection) {
	log := s.log.With(zap.String("remote", conn.RemoteAddr().String()))
	log.Info("Client connected")

	// The connection context ends when either side closes, taking every
	// lane forwarder down with it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-conn.Context().Done()
		cancel()
	}()

	for _, lane := range protocol.Lanes() {
		stream, err := conn.OpenUniStreamSync(ctx)
		if err != nil {
			log.Error("Failed to open lane, dropping client",
				zap.String("lane", lane.String()), zap.Error(err))
			_ = conn.CloseWithError(1, "lane setup failed")
			return
		}
		if _, err := stream.Write([]byte{byte(lane)}); err != nil {
			log.Error("Failed to tag lane, dropping client",
				zap.String("lane", lane.String()), zap.Error(err))
			_ = conn.CloseWithError(1, "lane setup failed")
			return
		}
		go s.forwardLane(ctx, log, lane, stream)
	}

	<-ctx.Done()
	log.Info("Client disconnected")
	_ = conn.CloseWithError(0, "")
}

func topicForLane(lane protocol.Lane) dispatchsvc.Topic {
	class, _ := protocol.ClassForLane(lane)
	return dispatchsvc.TopicForClass(class)
}

// forwardLane copies frames from the lane's topic onto one stream. A write
// failure ends this lane only; the sibling lanes keep flowing.
func (s *Service) forwardLane(ctx context.Context, log *zap.Logger, lane protocol.Lane, stream quic.SendStream) {
	frames := s.disp.Subscribe(ctx, topicForLane(lane))
	if err := pumpFrames(ctx, frames, stream); err != nil {
		log.Warn("Lane failed", zap.String("lane", lane.String()), zap.Error(err))
		stream.CancelWrite(1)
		return
	}
	_ = stream.Close()
}

func pumpFrames(ctx context.Context, frames <-chan []byte, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-frames:
			if err := protocol.WriteFrame(w, frame); err != nil {
				return err
			}
		}
	}
}
