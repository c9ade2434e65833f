// Package keymap holds the static translation between Linux evdev key codes
// and the protocol-neutral codes carried on the wire (USB HID keyboard-page
// usage IDs). A lookup miss is never fatal: callers drop the single event
// and keep going.
package keymap

import "github.com/kvmlink/kvmlink/pkg/protocol"

// Table is a bidirectional static lookup between native evdev codes and
// protocol-neutral HID usage IDs.
type Table struct {
	toUsage map[uint16]uint16
	toEvdev map[uint16]uint16
}

// ToUsage maps a native evdev key code to its wire code.
func (t *Table) ToUsage(evdev uint16) (uint16, bool) {
	usage, ok := t.toUsage[evdev]
	return usage, ok
}

// ToEvdev maps a wire code back to the native evdev key code.
func (t *Table) ToEvdev(usage uint16) (uint16, bool) {
	code, ok := t.toEvdev[usage]
	return code, ok
}

// Linux returns the evdev translation table.
func Linux() *Table {
	t := &Table{
		toUsage: make(map[uint16]uint16, len(pairs)),
		toEvdev: make(map[uint16]uint16, len(pairs)),
	}
	for _, p := range pairs {
		t.toUsage[p.evdev] = p.usage
		if _, dup := t.toEvdev[p.usage]; !dup {
			t.toEvdev[p.usage] = p.evdev
		}
	}
	return t
}

// Evdev mouse button codes (linux/input-event-codes.h).
const (
	BtnLeft   = 0x110
	BtnRight  = 0x111
	BtnMiddle = 0x112
)

// ButtonFromEvdev maps an evdev button code to the protocol button.
// Side and extra buttons have no protocol representation.
func ButtonFromEvdev(code uint16) (protocol.Button, bool) {
	switch code {
	case BtnLeft:
		return protocol.ButtonLeft, true
	case BtnRight:
		return protocol.ButtonRight, true
	case BtnMiddle:
		return protocol.ButtonMiddle, true
	}
	return 0, false
}

// ButtonToEvdev maps a protocol button back to its evdev code.
func ButtonToEvdev(b protocol.Button) (uint16, bool) {
	switch b {
	case protocol.ButtonLeft:
		return BtnLeft, true
	case protocol.ButtonRight:
		return BtnRight, true
	case protocol.ButtonMiddle:
		return BtnMiddle, true
	}
	return 0, false
}

type pair struct {
	evdev uint16
	usage uint16
}

// pairs lists the evdev -> HID usage correspondence from the kernel's
// hid-input translation. The list is append-only.
var pairs = []pair{
	// Letters. Evdev codes follow the physical QWERTY rows, usages are
	// alphabetical.
	{30, 0x04},  // KEY_A
	{48, 0x05},  // KEY_B
	{46, 0x06},  // KEY_C
	{32, 0x07},  // KEY_D
	{18, 0x08},  // KEY_E
	{33, 0x09},  // KEY_F
	{34, 0x0a},  // KEY_G
	{35, 0x0b},  // KEY_H
	{23, 0x0c},  // KEY_I
	{36, 0x0d},  // KEY_J
	{37, 0x0e},  // KEY_K
	{38, 0x0f},  // KEY_L
	{50, 0x10},  // KEY_M
	{49, 0x11},  // KEY_N
	{24, 0x12},  // KEY_O
	{25, 0x13},  // KEY_P
	{16, 0x14},  // KEY_Q
	{19, 0x15},  // KEY_R
	{31, 0x16},  // KEY_S
	{20, 0x17},  // KEY_T
	{22, 0x18},  // KEY_U
	{47, 0x19},  // KEY_V
	{17, 0x1a},  // KEY_W
	{45, 0x1b},  // KEY_X
	{21, 0x1c},  // KEY_Y
	{44, 0x1d},  // KEY_Z
	{2, 0x1e},   // KEY_1
	{3, 0x1f},   // KEY_2
	{4, 0x20},   // KEY_3
	{5, 0x21},   // KEY_4
	{6, 0x22},   // KEY_5
	{7, 0x23},   // KEY_6
	{8, 0x24},   // KEY_7
	{9, 0x25},   // KEY_8
	{10, 0x26},  // KEY_9
	{11, 0x27},  // KEY_0
	{28, 0x28},  // KEY_ENTER
	{1, 0x29},   // KEY_ESC
	{14, 0x2a},  // KEY_BACKSPACE
	{15, 0x2b},  // KEY_TAB
	{57, 0x2c},  // KEY_SPACE
	{12, 0x2d},  // KEY_MINUS
	{13, 0x2e},  // KEY_EQUAL
	{26, 0x2f},  // KEY_LEFTBRACE
	{27, 0x30},  // KEY_RIGHTBRACE
	{43, 0x31},  // KEY_BACKSLASH
	{39, 0x33},  // KEY_SEMICOLON
	{40, 0x34},  // KEY_APOSTROPHE
	{41, 0x35},  // KEY_GRAVE
	{51, 0x36},  // KEY_COMMA
	{52, 0x37},  // KEY_DOT
	{53, 0x38},  // KEY_SLASH
	{58, 0x39},  // KEY_CAPSLOCK
	{59, 0x3a},  // KEY_F1
	{60, 0x3b},  // KEY_F2
	{61, 0x3c},  // KEY_F3
	{62, 0x3d},  // KEY_F4
	{63, 0x3e},  // KEY_F5
	{64, 0x3f},  // KEY_F6
	{65, 0x40},  // KEY_F7
	{66, 0x41},  // KEY_F8
	{67, 0x42},  // KEY_F9
	{68, 0x43},  // KEY_F10
	{87, 0x44},  // KEY_F11
	{88, 0x45},  // KEY_F12
	{99, 0x46},  // KEY_SYSRQ
	{70, 0x47},  // KEY_SCROLLLOCK
	{119, 0x48}, // KEY_PAUSE
	{110, 0x49}, // KEY_INSERT
	{102, 0x4a}, // KEY_HOME
	{104, 0x4b}, // KEY_PAGEUP
	{111, 0x4c}, // KEY_DELETE
	{107, 0x4d}, // KEY_END
	{109, 0x4e}, // KEY_PAGEDOWN
	{106, 0x4f}, // KEY_RIGHT
	{105, 0x50}, // KEY_LEFT
	{108, 0x51}, // KEY_DOWN
	{103, 0x52}, // KEY_UP
	{69, 0x53},  // KEY_NUMLOCK
	{98, 0x54},  // KEY_KPSLASH
	{55, 0x55},  // KEY_KPASTERISK
	{74, 0x56},  // KEY_KPMINUS
	{78, 0x57},  // KEY_KPPLUS
	{96, 0x58},  // KEY_KPENTER
	{79, 0x59},  // KEY_KP1
	{80, 0x5a},  // KEY_KP2
	{81, 0x5b},  // KEY_KP3
	{75, 0x5c},  // KEY_KP4
	{76, 0x5d},  // KEY_KP5
	{77, 0x5e},  // KEY_KP6
	{71, 0x5f},  // KEY_KP7
	{72, 0x60},  // KEY_KP8
	{73, 0x61},  // KEY_KP9
	{82, 0x62},  // KEY_KP0
	{83, 0x63},  // KEY_KPDOT
	{86, 0x64},  // KEY_102ND
	{127, 0x65}, // KEY_COMPOSE
	{29, 0xe0},  // KEY_LEFTCTRL
	{42, 0xe1},  // KEY_LEFTSHIFT
	{56, 0xe2},  // KEY_LEFTALT
	{125, 0xe3}, // KEY_LEFTMETA
	{97, 0xe4},  // KEY_RIGHTCTRL
	{54, 0xe5},  // KEY_RIGHTSHIFT
	{100, 0xe6}, // KEY_RIGHTALT
	{126, 0xe7}, // KEY_RIGHTMETA
}
