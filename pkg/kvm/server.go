package kvm

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/kvmlink/kvmlink/internal/capturesvc"
	"github.com/kvmlink/kvmlink/internal/capturesvc/evdev"
	"github.com/kvmlink/kvmlink/internal/clipsvc"
	"github.com/kvmlink/kvmlink/internal/configsvc"
	"github.com/kvmlink/kvmlink/internal/dispatchsvc"
	"github.com/kvmlink/kvmlink/internal/serversvc"
	"github.com/kvmlink/kvmlink/pkg/keymap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Server is the capturing side: it grabs the local input devices, coalesces
// and sequences their events and broadcasts them to connected clients.
type Server struct {
	config Config

	log       *zap.Logger
	db        *badger.DB
	configSvc *configsvc.Service
}

func NewServer(config Config) (*Server, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	db, err := openDB(config.DataDir, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		config:    config,
		log:       logger,
		db:        db,
		configSvc: configsvc.New(logger.Named("config")),
	}, nil
}

// Run starts the server and blocks until the context is cancelled. The
// configuration file is validated at startup; later edits are logged and
// take effect on restart.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.configSvc.Start(groupCtx)
	})
	select {
	case <-groupCtx.Done():
		return group.Wait()
	case <-s.configSvc.Ready():
	}

	cfg, err := configsvc.Register(s.configSvc, s.config.ServerConfig, defaultServerConfig(),
		func(newConfig ServerConfig, err error) {
			if err != nil {
				s.log.Error("Config reload failed", zap.Error(err))
				return
			}
			s.log.Info("Config changed, restart to apply")
		})
	if err != nil {
		return fmt.Errorf("failed to load server config: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.Certificate, cfg.Key)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}

	dispatchSvc := dispatchsvc.New(s.log.Named("dispatch"))
	clipSource := clipsvc.NewSource(s.log.Named("clipboard"), cfg.Clipboard)
	clipSvc := clipsvc.New(s.log.Named("clipboard"), clipSource, s.db, dispatchSvc.Enqueue)

	source := evdev.New(s.log.Named("evdev"))
	registry := capturesvc.NewRegistry(s.log.Named("devices"), s.db, time.Now)
	grabber := capturesvc.NewGrabber(s.log.Named("grab"), registry)
	captureOpts := []capturesvc.Option{
		capturesvc.WithGrabHook(clipSvc.CaptureAndSend),
	}
	if cfg.ToggleKey != 0 {
		captureOpts = append(captureOpts, capturesvc.WithToggleKey(cfg.ToggleKey))
	}
	captureSvc := capturesvc.New(s.log.Named("capture"), source, registry, grabber, keymap.Linux(), dispatchSvc.Enqueue, captureOpts...)

	serverSvc := serversvc.New(s.log.Named("server"), dispatchSvc, serversvc.Config{
		ListenAddr:       cfg.ListenAddr,
		LegacyListenAddr: cfg.LegacyListenAddr,
		TLS:              &tls.Config{Certificates: []tls.Certificate{cert}},
	})

	group.Go(func() error {
		return dispatchSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return captureSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return serverSvc.Start(groupCtx)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Close() error {
	return s.db.Close()
}
