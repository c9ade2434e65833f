// Package clipsvc bridges the system clipboard and the event stream.
// On the server it snapshots the clipboard when control switches to a
// client; on the client it writes received payloads back out.
package clipsvc

import (
	"context"
	"encoding/binary"
	"os"

	"github.com/dgraph-io/badger"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var fingerprintKey = []byte("clipboard/fingerprint")

// PacketPublisher hands clipboard packets to the dispatcher.
type PacketPublisher func(ctx context.Context, pkt protocol.Packet)

// Clipboard modes selectable in the configuration.
const (
	ModeAuto    = "auto"
	ModeX11     = "x11"
	ModeWayland = "wayland"
	ModeOff     = "off"
)

func backendForMode(log *zap.Logger, mode string) interface {
	Source
	Writer
} {
	switch mode {
	case ModeOff:
		return nil
	case ModeX11:
		return newXclipClipboard()
	case ModeWayland:
		return newWaylandClipboard()
	case ModeAuto, "":
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			log.Debug("Using wayland clipboard")
			return newWaylandClipboard()
		}
		if os.Getenv("DISPLAY") != "" {
			log.Debug("Using X11 clipboard")
			return newXclipClipboard()
		}
		log.Warn("No display session, clipboard disabled")
		return nil
	}
	log.Warn("Unknown clipboard mode, clipboard disabled", zap.String("mode", mode))
	return nil
}

// NewSource picks the clipboard backend for the configured mode, nil when
// the mode is off or no display session is reachable.
func NewSource(log *zap.Logger, mode string) Source {
	backend := backendForMode(log, mode)
	if backend == nil {
		return nil
	}
	return backend
}

// NewWriter picks the clipboard writer the same way.
func NewWriter(log *zap.Logger, mode string) Writer {
	backend := backendForMode(log, mode)
	if backend == nil {
		return nil
	}
	return backend
}

// Service captures the clipboard on demand and publishes it as a packet
// with the reserved clipboard sequence id. Unchanged content is suppressed
// via the platform token when available, content fingerprints otherwise.
type Service struct {
	log     *zap.Logger
	source  Source
	db      *badger.DB
	publish PacketPublisher

	lastToken       *atomic.Uint64
	lastFingerprint *atomic.Uint64
}

// New loads the persisted fingerprint so a restart does not resend the
// same clipboard. db may be nil in tests.
func New(log *zap.Logger, source Source, db *badger.DB, publish PacketPublisher) *Service {
	s := &Service{
		log:             log,
		source:          source,
		db:              db,
		publish:         publish,
		lastToken:       atomic.NewUint64(0),
		lastFingerprint: atomic.NewUint64(0),
	}
	if db != nil {
		if fp, ok := loadFingerprint(db); ok {
			s.lastFingerprint.Store(fp)
		}
	}
	return s
}

// CaptureAndSend snapshots the clipboard and publishes it unless the
// content is unchanged since the last send. Errors are logged, never fatal.
func (s *Service) CaptureAndSend(ctx context.Context) {
	if s.source == nil {
		return
	}
	if token, ok := s.source.Token(ctx); ok {
		if token == s.lastToken.Load() {
			return
		}
		s.lastToken.Store(token)
	}

	payload, err := s.source.Fetch(ctx)
	if err != nil {
		s.log.Warn("Failed to read clipboard", zap.Error(err))
		return
	}
	if payload.Empty() {
		return
	}
	fp := payload.Fingerprint()
	if fp == s.lastFingerprint.Load() {
		return
	}
	s.lastFingerprint.Store(fp)
	s.storeFingerprint(fp)

	s.log.Info("Sending clipboard")
	s.publish(ctx, protocol.Packet{ID: protocol.ClipboardID, Event: payload.Event()})
}

func (s *Service) storeFingerprint(fp uint64) {
	if s.db == nil {
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], fp)
		return txn.Set(fingerprintKey, buf[:])
	})
	if err != nil {
		s.log.Warn("Failed to persist clipboard fingerprint", zap.Error(err))
	}
}

func loadFingerprint(db *badger.DB) (uint64, bool) {
	var fp uint64
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fingerprintKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 8 {
				fp = binary.BigEndian.Uint64(val)
			}
			return nil
		})
	})
	return fp, err == nil
}
