// Package configsvc watches YAML configuration files and notifies
// registered readers when they change on disk.
package configsvc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"
	"go.uber.org/zap"
)

type subscriber func(event fsnotify.Event)

type Service struct {
	log *zap.Logger

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	subscribers []subscriber
	ready       chan struct{}
}

func New(log *zap.Logger) *Service {
	return &Service{
		log:   log,
		ready: make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	s.watcher = watcher
	defer s.watcher.Close()
	close(s.ready)
	s.log.Info("Config service started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.mu.Lock()
			for _, sub := range s.subscribers {
				sub(event)
			}
			s.mu.Unlock()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("Watcher error", zap.Error(err))
		}
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Register reads the configuration file at path and watches it for changes,
// calling fn with every re-read result. It returns the initial
// configuration. The service is a parameter instead of the method receiver
// to allow a generic type.
func Register[T any](s *Service, path string, def T, fn func(config T, err error)) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}
	config, err := readConfig(absPath, def)
	if err != nil {
		return def, fmt.Errorf("failed to read config: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save.
	if err := s.watcher.Add(filepath.Dir(absPath)); err != nil {
		return def, fmt.Errorf("failed to add path to watcher %s: %w", path, err)
	}

	s.mu.Lock()
	s.subscribers = append(s.subscribers, func(event fsnotify.Event) {
		if event.Name == absPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
			newConfig, err := readConfig(absPath, def)
			fn(newConfig, err)
		}
	})
	s.mu.Unlock()

	return config, nil
}

func readConfig[T any](path string, def T) (T, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return def, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return def, nil
}
