package serversvc

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/kvmlink/kvmlink/internal/dispatchsvc"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"go.uber.org/zap"
)

// legacyListener serves the ordered single-stream protocol over plain
// TLS/TCP. Every client receives the firehose topic, no lanes.
type legacyListener struct {
	log  *zap.Logger
	disp *dispatchsvc.Service
	addr string
	tls  *tls.Config
}

func newLegacyListener(log *zap.Logger, disp *dispatchsvc.Service, addr string, tlsConf *tls.Config) *legacyListener {
	return &legacyListener{
		log:  log,
		disp: disp,
		addr: addr,
		tls:  tlsConf,
	}
}

func (l *legacyListener) run(ctx context.Context) error {
	listener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}
	l.log.Info("Listening", zap.String("addr", l.addr))

	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		go l.handleConnection(ctx, conn)
	}
}

func (l *legacyListener) handleConnection(ctx context.Context, conn net.Conn) {
	log := l.log.With(zap.String("remote", conn.RemoteAddr().String()))
	log.Info("Client connected")
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			log.Warn("Failed to disable Nagle", zap.Error(err))
		}
	}
	stream := tls.Server(conn, l.tls)
	if err := stream.HandshakeContext(ctx); err != nil {
		log.Warn("TLS handshake failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Reads are not part of the protocol; a read returning is how we
	// learn the peer went away.
	go func() {
		defer cancel()
		_, _ = stream.Read(make([]byte, 1))
	}()

	frames := l.disp.Subscribe(ctx, dispatchsvc.TopicAll)
	w := bufio.NewWriter(stream)
	for {
		select {
		case <-ctx.Done():
			log.Info("Client disconnected")
			return
		case frame := <-frames:
			if err := protocol.WriteFrame(w, frame); err != nil {
				log.Warn("Write failed", zap.Error(err))
				return
			}
			if err := w.Flush(); err != nil {
				log.Warn("Flush failed", zap.Error(err))
				return
			}
		}
	}
}
