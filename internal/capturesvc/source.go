package capturesvc

import "context"

// DeviceHandle is an open input device tracked by the registry. Grab takes
// or releases the OS-level exclusive claim on the device.
type DeviceHandle interface {
	Path() string
	Grab(enable bool) error
	Close() error
}

// SourceEvent is one event read from the hardware input stream. Exactly one
// field is set.
type SourceEvent struct {
	DeviceAdded   *DeviceAddedEvent
	DeviceRemoved *DeviceRemovedEvent
	Key           *KeyEvent
	Button        *ButtonEvent
	Motion        *MotionEvent
	Wheel         *WheelEvent
}

type DeviceAddedEvent struct {
	Handle DeviceHandle
	Name   string
}

type DeviceRemovedEvent struct {
	Path string
}

// KeyEvent is a keyboard key edge in native evdev codes.
type KeyEvent struct {
	Code    uint16
	Pressed bool
}

// ButtonEvent is a pointer button edge in native evdev codes.
type ButtonEvent struct {
	Code    uint16
	Pressed bool
}

// MotionEvent is an unaccelerated relative pointer delta. Backends may
// report fractional units.
type MotionEvent struct {
	DX float64
	DY float64
}

// WheelEvent is a scroll delta in 1/120 notch sub-units.
type WheelEvent struct {
	DX int32
	DY int32
}

// SourcePublisher hands a source event to the capture service. It blocks
// while the capture loop is busy, keeping capture paced with the hardware.
type SourcePublisher func(ctx context.Context, ev SourceEvent)

// Source is a hardware input backend. Start blocks until ctx is cancelled
// or the backend fails.
type Source interface {
	Start(ctx context.Context, publish SourcePublisher) error
	Ready() <-chan struct{}
}
