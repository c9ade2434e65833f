// Package protocol defines the wire data model shared by the server and the
// clients: the event sum type, the packet framing and the binary codec.
//
// Both endpoints rely on the tag enumeration in codec.go being identical on
// each side. There is no in-band schema negotiation.
package protocol

// Class determines which delivery lane an event is routed through.
type Class uint8

const (
	ClassMouse Class = iota
	ClassKeyboard
	ClassMisc
)

func (c Class) String() string {
	switch c {
	case ClassMouse:
		return "mouse"
	case ClassKeyboard:
		return "keyboard"
	case ClassMisc:
		return "misc"
	}
	return "unknown"
}

// Classes lists every priority class, highest priority first.
func Classes() []Class {
	return []Class{ClassMouse, ClassKeyboard, ClassMisc}
}

// Button is a protocol-level mouse button identifier.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	}
	return "unknown"
}

// Event is one input or clipboard event crossing the wire.
type Event interface {
	// Class reports the priority class the event is delivered on.
	Class() Class
	// HighFreq reports whether the event belongs to the high-frequency
	// stream (relative motion and wheel ticks). Used to pick log levels.
	HighFreq() bool

	tag() byte
}

// MouseMotion is a relative pointer movement in pixels.
type MouseMotion struct {
	DX int32
	DY int32
}

// MouseWheel is a scroll movement in whole notches.
type MouseWheel struct {
	DX int32
	DY int32
}

// MouseButton is a button press or release.
type MouseButton struct {
	Button  Button
	Pressed bool
}

// Keyboard is a key press or release. Key is the protocol-neutral code,
// the USB HID keyboard-page usage ID.
type Keyboard struct {
	Key     uint16
	Pressed bool
}

// TextClipboard carries plain UTF-8 clipboard content.
type TextClipboard struct {
	Content string
}

// HtmlClipboard carries HTML clipboard content together with its plain-text
// rendering.
type HtmlClipboard struct {
	HTML  string
	Plain string
}

// ImageClipboard carries PNG-encoded clipboard image content.
type ImageClipboard struct {
	PNG []byte
}

func (MouseMotion) Class() Class    { return ClassMouse }
func (MouseWheel) Class() Class     { return ClassMouse }
func (MouseButton) Class() Class    { return ClassMouse }
func (Keyboard) Class() Class       { return ClassKeyboard }
func (TextClipboard) Class() Class  { return ClassMisc }
func (HtmlClipboard) Class() Class  { return ClassMisc }
func (ImageClipboard) Class() Class { return ClassMisc }

func (MouseMotion) HighFreq() bool    { return true }
func (MouseWheel) HighFreq() bool     { return true }
func (MouseButton) HighFreq() bool    { return false }
func (Keyboard) HighFreq() bool       { return false }
func (TextClipboard) HighFreq() bool  { return false }
func (HtmlClipboard) HighFreq() bool  { return false }
func (ImageClipboard) HighFreq() bool { return false }

// ClipboardID is the packet ID reserved for clipboard-originated packets,
// which sit outside the capture sequence.
const ClipboardID uint64 = 0

// Packet is the unit of wire transfer. ID is a wrapping monotonic sequence
// assigned at capture time; clipboard-originated packets carry ClipboardID
// and are exempt from ordering.
type Packet struct {
	ID    uint64
	Event Event
}
