package evdev

import (
	"os"

	"golang.org/x/sys/unix"
)

// Event type and code constants from linux/input-event-codes.h.
const (
	evKey = 0x01
	evRel = 0x02

	relX           = 0x00
	relY           = 0x01
	relHWheel      = 0x06
	relWheel       = 0x08
	relWheelHiRes  = 0x0b
	relHWheelHiRes = 0x0c

	btnMouseFirst = 0x110 // BTN_LEFT
	btnMouseLast  = 0x117 // BTN_TASK
	keyCodeMax    = 0x100 // keyboard keys live below the BTN_MISC range
)

// EVIOCGRAB: _IOW('E', 0x90, int).
const eviocgrab = 0x40044590

// inputEventSize is sizeof(struct input_event) on 64-bit targets: a 16-byte
// timeval followed by type, code and value.
const inputEventSize = 24

// Device is one open /dev/input/eventN node. It implements
// capturesvc.DeviceHandle.
type Device struct {
	path string
	file *os.File

	// Once hi-res wheel events are seen on an axis, the legacy wheel
	// events for that axis are duplicates and must be ignored.
	wheelHiRes  bool
	hwheelHiRes bool
}

func openDevice(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &Device{path: path, file: file}, nil
}

func (d *Device) Path() string {
	return d.path
}

// Grab issues EVIOCGRAB, taking or releasing the kernel-exclusive claim so
// the local desktop stops receiving this device's events.
func (d *Device) Grab(enable bool) error {
	var arg int
	if enable {
		arg = 1
	}
	raw, err := d.file.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	if err := raw.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), eviocgrab, arg)
	}); err != nil {
		return err
	}
	return ioctlErr
}

func (d *Device) Close() error {
	return d.file.Close()
}
