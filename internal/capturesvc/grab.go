package capturesvc

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// grabWorkers bounds how many grab ioctls run in parallel, keeping toggle
// latency independent of the device count without spawning one goroutine
// per device.
const grabWorkers = 4

// Grabber toggles the exclusive OS-level claim on every registered device.
type Grabber struct {
	log      *zap.Logger
	registry *Registry
}

func NewGrabber(log *zap.Logger, registry *Registry) *Grabber {
	return &Grabber{log: log, registry: registry}
}

// Set grabs (or releases) all devices currently in the registry. Per-device
// requests run in parallel across the worker pool and the call returns once
// every request has completed. A failure on one device is logged and
// reported in the combined error but never aborts the other devices.
func (g *Grabber) Set(enable bool) error {
	verb := "release"
	if enable {
		verb = "grab"
	}

	var (
		mu   sync.Mutex
		errs error
	)
	var group errgroup.Group
	group.SetLimit(grabWorkers)
	for _, handle := range g.registry.Snapshot() {
		handle := handle
		group.Go(func() error {
			if err := handle.Grab(enable); err != nil {
				g.log.Error("Device grab toggle failed",
					zap.String("op", verb),
					zap.String("path", handle.Path()),
					zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", verb, handle.Path(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()
	return errs
}
