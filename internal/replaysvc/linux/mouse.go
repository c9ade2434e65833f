package linux

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/psanford/uhid"
)

// Relative mouse: three buttons, 16-bit X/Y deltas, a vertical wheel and
// an AC Pan horizontal wheel. Report layout:
// [buttons, dxL, dxH, dyL, dyH, wheel, pan]
var mouseDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x02, // Usage (Mouse)
	0xa1, 0x01, // Collection (Application)
	0x09, 0x01, //   Usage (Pointer)
	0xa1, 0x00, //   Collection (Physical)
	0x05, 0x09, //     Usage Page (Button)
	0x19, 0x01, //     Usage Minimum (1)
	0x29, 0x03, //     Usage Maximum (3)
	0x15, 0x00, //     Logical Minimum (0)
	0x25, 0x01, //     Logical Maximum (1)
	0x95, 0x03, //     Report Count (3)
	0x75, 0x01, //     Report Size (1)
	0x81, 0x02, //     Input (Data, Variable, Absolute)
	0x95, 0x01, //     Report Count (1)
	0x75, 0x05, //     Report Size (5)
	0x81, 0x01, //     Input (Constant)
	0x05, 0x01, //     Usage Page (Generic Desktop)
	0x09, 0x30, //     Usage (X)
	0x09, 0x31, //     Usage (Y)
	0x16, 0x01, 0x80, // Logical Minimum (-32767)
	0x26, 0xff, 0x7f, // Logical Maximum (32767)
	0x75, 0x10, //     Report Size (16)
	0x95, 0x02, //     Report Count (2)
	0x81, 0x06, //     Input (Data, Variable, Relative)
	0x09, 0x38, //     Usage (Wheel)
	0x15, 0x81, //     Logical Minimum (-127)
	0x25, 0x7f, //     Logical Maximum (127)
	0x75, 0x08, //     Report Size (8)
	0x95, 0x01, //     Report Count (1)
	0x81, 0x06, //     Input (Data, Variable, Relative)
	0x05, 0x0c, //     Usage Page (Consumer)
	0x0a, 0x38, 0x02, // Usage (AC Pan)
	0x15, 0x81, //     Logical Minimum (-127)
	0x25, 0x7f, //     Logical Maximum (127)
	0x75, 0x08, //     Report Size (8)
	0x95, 0x01, //     Report Count (1)
	0x81, 0x06, //     Input (Data, Variable, Relative)
	0xc0, // End Collection
	0xc0, // End Collection
}

type mouseDevice struct {
	dev *uhid.Device

	mu      sync.Mutex
	buttons byte
}

func newMouseDevice(ctx context.Context) (*mouseDevice, error) {
	dev, err := openDevice(ctx, "kvmlink-mouse", mouseDescriptor)
	if err != nil {
		return nil, err
	}
	return &mouseDevice{dev: dev}, nil
}

func (m *mouseDevice) Button(button protocol.Button, pressed bool) error {
	var bit byte
	switch button {
	case protocol.ButtonLeft:
		bit = 1 << 0
	case protocol.ButtonRight:
		bit = 1 << 1
	case protocol.ButtonMiddle:
		bit = 1 << 2
	}
	m.mu.Lock()
	if pressed {
		m.buttons |= bit
	} else {
		m.buttons &^= bit
	}
	report := m.report(0, 0, 0, 0)
	m.mu.Unlock()
	return m.dev.InjectEvent(report)
}

func (m *mouseDevice) Move(dx, dy int32) error {
	for dx != 0 || dy != 0 {
		sx := clamp16(dx)
		sy := clamp16(dy)
		dx -= int32(sx)
		dy -= int32(sy)
		m.mu.Lock()
		report := m.report(sx, sy, 0, 0)
		m.mu.Unlock()
		if err := m.dev.InjectEvent(report); err != nil {
			return err
		}
	}
	return nil
}

func (m *mouseDevice) Wheel(dx, dy int32) error {
	for dx != 0 || dy != 0 {
		sx := clamp8(dx)
		sy := clamp8(dy)
		dx -= int32(sx)
		dy -= int32(sy)
		m.mu.Lock()
		report := m.report(0, 0, sy, sx)
		m.mu.Unlock()
		if err := m.dev.InjectEvent(report); err != nil {
			return err
		}
	}
	return nil
}

func (m *mouseDevice) report(dx, dy int16, wheel, pan int8) []byte {
	report := make([]byte, 7)
	report[0] = m.buttons
	binary.LittleEndian.PutUint16(report[1:], uint16(dx))
	binary.LittleEndian.PutUint16(report[3:], uint16(dy))
	report[5] = byte(wheel)
	report[6] = byte(pan)
	return report
}

func (m *mouseDevice) Close() error {
	return m.dev.Close()
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32767 {
		return -32767
	}
	return int16(v)
}

func clamp8(v int32) int8 {
	if v > 127 {
		return 127
	}
	if v < -127 {
		return -127
	}
	return int8(v)
}
