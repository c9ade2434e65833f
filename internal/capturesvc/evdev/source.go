// Package evdev reads raw Linux input events from /dev/input and feeds
// them to the capture service. Devices are discovered through udev, re-scanned
// periodically to pick up hotplug.
package evdev

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jochenvg/go-udev"
	"github.com/kvmlink/kvmlink/internal/capturesvc"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

var defaultOptions = sourceOptions{
	pollInterval: 1 * time.Second,
}

type sourceOptions struct {
	pollInterval time.Duration
}

type Option func(*sourceOptions)

func WithPollInterval(d time.Duration) Option {
	return func(o *sourceOptions) {
		o.pollInterval = d
	}
}

type Source struct {
	log     *zap.Logger
	options sourceOptions
	ready   chan struct{}
	devices *xsync.MapOf[string, *Device]
}

func New(log *zap.Logger, opts ...Option) *Source {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Source{
		log:     log,
		options: options,
		ready:   make(chan struct{}),
		devices: xsync.NewMapOf[string, *Device](),
	}
}

func (s *Source) Ready() <-chan struct{} {
	return s.ready
}

func (s *Source) Start(ctx context.Context, publish capturesvc.SourcePublisher) error {
	if err := s.refreshDevices(ctx, publish); err != nil {
		return fmt.Errorf("failed to enumerate input devices: %w", err)
	}

	close(s.ready)
	s.log.Info("Evdev source started", zap.Int("devices", s.devices.Size()))

	pollTicker := time.NewTicker(s.options.pollInterval)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return nil
		case <-pollTicker.C:
			if err := s.refreshDevices(ctx, publish); err != nil {
				s.log.Error("Failed to refresh input devices", zap.Error(err))
			}
		}
	}
}

// refreshDevices re-enumerates the input subsystem, opening new keyboards
// and mice and dropping the ones that disappeared. Unplug is usually
// noticed first by the device reader's failing read; the enumeration diff
// catches whatever that misses.
func (s *Source) refreshDevices(ctx context.Context, publish capturesvc.SourcePublisher) error {
	u := &udev.Udev{}
	enum := u.NewEnumerate()
	enum.AddMatchSubsystem("input")
	devices, err := enum.Devices()
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(devices))
	for _, dev := range devices {
		devnode := dev.Devnode()
		if devnode == "" || !strings.HasPrefix(filepath.Base(devnode), "event") {
			continue
		}
		if dev.PropertyValue("ID_INPUT_KEYBOARD") != "1" && dev.PropertyValue("ID_INPUT_MOUSE") != "1" {
			continue
		}
		present[devnode] = true
		s.tryOpen(ctx, devnode, dev.PropertyValue("NAME"), publish)
	}

	s.devices.Range(func(path string, _ *Device) bool {
		if !present[path] {
			s.drop(ctx, path, publish)
		}
		return true
	})
	return nil
}

// tryOpen opens an event node unless it is already claimed. Open failures
// (usually permissions) are logged and skipped; one unreachable device
// never fails the source.
func (s *Source) tryOpen(ctx context.Context, devnode, name string, publish capturesvc.SourcePublisher) {
	if _, exists := s.devices.Load(devnode); exists {
		return
	}

	device, err := openDevice(devnode)
	if err != nil {
		s.log.Warn("Failed to open input device", zap.String("path", devnode), zap.Error(err))
		return
	}
	s.devices.Store(devnode, device)
	publish(ctx, capturesvc.SourceEvent{DeviceAdded: &capturesvc.DeviceAddedEvent{
		Handle: device,
		Name:   name,
	}})
	go s.readDevice(ctx, device, publish)
}

func (s *Source) drop(ctx context.Context, path string, publish capturesvc.SourcePublisher) {
	device, ok := s.devices.LoadAndDelete(path)
	if !ok {
		return
	}
	_ = device.Close()
	publish(ctx, capturesvc.SourceEvent{DeviceRemoved: &capturesvc.DeviceRemovedEvent{Path: path}})
}

func (s *Source) closeAll() {
	s.devices.Range(func(path string, device *Device) bool {
		_ = device.Close()
		s.devices.Delete(path)
		return true
	})
}

func (s *Source) readDevice(ctx context.Context, device *Device, publish capturesvc.SourcePublisher) {
	buf := make([]byte, inputEventSize*64)
	for {
		n, err := device.file.Read(buf)
		if err != nil {
			// Read failure means the device went away (or we are shutting
			// down and closed it).
			if ctx.Err() == nil {
				s.log.Info("Input device read ended", zap.String("path", device.path), zap.Error(err))
				s.drop(ctx, device.path, publish)
			}
			return
		}
		for off := 0; off+inputEventSize <= n; off += inputEventSize {
			s.decode(ctx, device, buf[off:off+inputEventSize], publish)
		}
	}
}

// decode translates one raw input_event record. Fields are in host byte
// order; all supported targets are little-endian.
func (s *Source) decode(ctx context.Context, device *Device, raw []byte, publish capturesvc.SourcePublisher) {
	typ := binary.LittleEndian.Uint16(raw[16:])
	code := binary.LittleEndian.Uint16(raw[18:])
	value := int32(binary.LittleEndian.Uint32(raw[20:]))

	switch typ {
	case evKey:
		if value == 2 {
			// Kernel autorepeat; the receiving side synthesizes its own.
			return
		}
		pressed := value == 1
		switch {
		case code >= btnMouseFirst && code <= btnMouseLast:
			publish(ctx, capturesvc.SourceEvent{Button: &capturesvc.ButtonEvent{Code: code, Pressed: pressed}})
		case code < keyCodeMax:
			publish(ctx, capturesvc.SourceEvent{Key: &capturesvc.KeyEvent{Code: code, Pressed: pressed}})
		}
	case evRel:
		switch code {
		case relX:
			publish(ctx, capturesvc.SourceEvent{Motion: &capturesvc.MotionEvent{DX: float64(value)}})
		case relY:
			publish(ctx, capturesvc.SourceEvent{Motion: &capturesvc.MotionEvent{DY: float64(value)}})
		case relWheelHiRes:
			device.wheelHiRes = true
			publish(ctx, capturesvc.SourceEvent{Wheel: &capturesvc.WheelEvent{DY: value}})
		case relHWheelHiRes:
			device.hwheelHiRes = true
			publish(ctx, capturesvc.SourceEvent{Wheel: &capturesvc.WheelEvent{DX: value}})
		case relWheel:
			if !device.wheelHiRes {
				publish(ctx, capturesvc.SourceEvent{Wheel: &capturesvc.WheelEvent{DY: value * 120}})
			}
		case relHWheel:
			if !device.hwheelHiRes {
				publish(ctx, capturesvc.SourceEvent{Wheel: &capturesvc.WheelEvent{DX: value * 120}})
			}
		}
	}
}
