package protocol

// Lane identifies one unidirectional stream of a connection. The opener
// writes the lane tag as the first byte of the stream before any frame.
type Lane byte

const (
	LaneMouse Lane = iota + 1
	LaneKeyboard
	LaneMisc
)

func (l Lane) String() string {
	switch l {
	case LaneMouse:
		return "mouse"
	case LaneKeyboard:
		return "keyboard"
	case LaneMisc:
		return "misc"
	}
	return "unknown"
}

// Lanes lists every lane a connection must carry, highest priority first.
func Lanes() []Lane {
	return []Lane{LaneMouse, LaneKeyboard, LaneMisc}
}

// ClassForLane maps a lane tag back to the event class it carries.
func ClassForLane(l Lane) (Class, bool) {
	switch l {
	case LaneMouse:
		return ClassMouse, true
	case LaneKeyboard:
		return ClassKeyboard, true
	case LaneMisc:
		return ClassMisc, true
	}
	return 0, false
}
