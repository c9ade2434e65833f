package kvm

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/kvmlink/kvmlink/internal/clientsvc"
	"github.com/kvmlink/kvmlink/internal/clipsvc"
	"github.com/kvmlink/kvmlink/internal/configsvc"
	"github.com/kvmlink/kvmlink/internal/replaysvc"
	replaylinux "github.com/kvmlink/kvmlink/internal/replaysvc/linux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Client is the replaying side: it connects to a server and turns received
// packets into virtual input and clipboard content.
type Client struct {
	config Config

	log       *zap.Logger
	configSvc *configsvc.Service
}

func NewClient(config Config) (*Client, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	return &Client{
		config:    config,
		log:       logger,
		configSvc: configsvc.New(logger.Named("config")),
	}, nil
}

// Run starts the client and blocks until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.configSvc.Start(groupCtx)
	})
	select {
	case <-groupCtx.Done():
		return group.Wait()
	case <-c.configSvc.Ready():
	}

	cfg, err := configsvc.Register(c.configSvc, c.config.ClientConfig, defaultClientConfig(),
		func(newConfig ClientConfig, err error) {
			if err != nil {
				c.log.Error("Config reload failed", zap.Error(err))
				return
			}
			c.log.Info("Config changed, restart to apply")
		})
	if err != nil {
		return fmt.Errorf("failed to load client config: %w", err)
	}
	tlsConf, err := clientTLSConfig(cfg)
	if err != nil {
		return err
	}

	injector, err := replaylinux.NewInjector(c.log.Named("inject"))
	if err != nil {
		return fmt.Errorf("failed to create input injector: %w", err)
	}
	clipWriter := clipsvc.NewWriter(c.log.Named("clipboard"), cfg.Clipboard)
	replaySvc := replaysvc.New(c.log.Named("replay"), injector, clipWriter)
	clientSvc := clientsvc.New(c.log.Named("client"), replaySvc, clientsvc.Config{
		ServerAddr: cfg.ServerAddr,
		Legacy:     cfg.Legacy,
		TLS:        tlsConf,
	})

	group.Go(func() error {
		return replaySvc.Start(groupCtx)
	})
	group.Go(func() error {
		return clientSvc.Start(groupCtx)
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("client failed: %w", err)
	}
	return nil
}

func clientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	tlsConf := &tls.Config{
		ServerName: cfg.ServerName,
	}
	if cfg.CA != "" {
		pem, err := os.ReadFile(cfg.CA)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CA)
		}
		tlsConf.RootCAs = pool
	}
	return tlsConf, nil
}
