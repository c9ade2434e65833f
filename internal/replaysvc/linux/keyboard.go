package linux

import (
	"context"
	"sync"

	"github.com/kvmlink/kvmlink/internal/replaysvc"
	"github.com/psanford/uhid"
)

// Boot-protocol keyboard: one modifier byte, one reserved byte and six
// key-array slots per report.
var keyboardDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x06, // Usage (Keyboard)
	0xa1, 0x01, // Collection (Application)
	0x05, 0x07, //   Usage Page (Keyboard)
	0x19, 0xe0, //   Usage Minimum (Left Control)
	0x29, 0xe7, //   Usage Maximum (Right GUI)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x08, //   Report Count (8)
	0x81, 0x02, //   Input (Data, Variable, Absolute)
	0x95, 0x01, //   Report Count (1)
	0x75, 0x08, //   Report Size (8)
	0x81, 0x01, //   Input (Constant)
	0x95, 0x06, //   Report Count (6)
	0x75, 0x08, //   Report Size (8)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x65, //   Logical Maximum (101)
	0x05, 0x07, //   Usage Page (Keyboard)
	0x19, 0x00, //   Usage Minimum (0)
	0x29, 0x65, //   Usage Maximum (101)
	0x81, 0x00, //   Input (Data, Array)
	0xc0, // End Collection
}

const (
	modifierFirst = 0xe0
	modifierLast  = 0xe7
	usageMax      = 0x65
	rolloverSlots = 6
)

type keyboardDevice struct {
	dev *uhid.Device

	mu        sync.Mutex
	modifiers byte
	pressed   []uint16
}

func newKeyboardDevice(ctx context.Context) (*keyboardDevice, error) {
	dev, err := openDevice(ctx, "kvmlink-keyboard", keyboardDescriptor)
	if err != nil {
		return nil, err
	}
	return &keyboardDevice{dev: dev}, nil
}

// Key updates the tracked key state and injects a full report. Modifiers
// map to bits, everything else occupies one of the six rollover slots.
func (k *keyboardDevice) Key(usage uint16, pressed bool) error {
	if usage >= modifierFirst && usage <= modifierLast {
		k.mu.Lock()
		bit := byte(1) << (usage - modifierFirst)
		if pressed {
			k.modifiers |= bit
		} else {
			k.modifiers &^= bit
		}
		report := k.report()
		k.mu.Unlock()
		return k.dev.InjectEvent(report)
	}
	if usage == 0 || usage > usageMax {
		return replaysvc.ErrUnmappableKey
	}

	k.mu.Lock()
	if pressed {
		k.press(usage)
	} else {
		k.release(usage)
	}
	report := k.report()
	k.mu.Unlock()
	return k.dev.InjectEvent(report)
}

func (k *keyboardDevice) press(usage uint16) {
	for _, u := range k.pressed {
		if u == usage {
			return
		}
	}
	if len(k.pressed) == rolloverSlots {
		// Rollover exhausted, shed the oldest held key.
		k.pressed = k.pressed[1:]
	}
	k.pressed = append(k.pressed, usage)
}

func (k *keyboardDevice) release(usage uint16) {
	for i, u := range k.pressed {
		if u == usage {
			k.pressed = append(k.pressed[:i], k.pressed[i+1:]...)
			return
		}
	}
}

func (k *keyboardDevice) report() []byte {
	report := make([]byte, 8)
	report[0] = k.modifiers
	for i, u := range k.pressed {
		report[2+i] = byte(u)
	}
	return report
}

func (k *keyboardDevice) Close() error {
	return k.dev.Close()
}
