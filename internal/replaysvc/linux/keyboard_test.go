package linux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyboardReportTracksRollover(t *testing.T) {
	k := &keyboardDevice{}
	for usage := uint16(0x04); usage <= 0x09; usage++ {
		k.press(usage)
	}
	assert.Equal(t, []byte{0, 0, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}, k.report())

	// A seventh key sheds the oldest held one.
	k.press(0x0a)
	assert.Equal(t, []byte{0, 0, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a}, k.report())

	k.release(0x07)
	assert.Equal(t, []byte{0, 0, 0x05, 0x06, 0x08, 0x09, 0x0a, 0}, k.report())
}

func TestKeyboardPressIsIdempotent(t *testing.T) {
	k := &keyboardDevice{}
	k.press(0x04)
	k.press(0x04)
	assert.Equal(t, []byte{0, 0, 0x04, 0, 0, 0, 0, 0}, k.report())
}

func TestMouseReportLayout(t *testing.T) {
	m := &mouseDevice{buttons: 0b101}
	report := m.report(-2, 300, 1, -1)
	assert.Equal(t, []byte{0b101, 0xfe, 0xff, 0x2c, 0x01, 0x01, 0xff}, report)
}

func TestClampDeltas(t *testing.T) {
	assert.Equal(t, int16(32767), clamp16(100000))
	assert.Equal(t, int16(-32767), clamp16(-100000))
	assert.Equal(t, int16(-5), clamp16(-5))
	assert.Equal(t, int8(127), clamp8(300))
	assert.Equal(t, int8(-127), clamp8(-300))
	assert.Equal(t, int8(12), clamp8(12))
}
