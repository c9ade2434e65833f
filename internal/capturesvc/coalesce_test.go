package capturesvc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMotionCoalescing(t *testing.T) {
	var c motionCoalescer

	for i := 0; i < 3; i++ {
		_, _, emit := c.Add(0.3, 0)
		require.False(t, emit, "feed %d must not emit", i+1)
	}
	dx, dy, emit := c.Add(0.3, 0)
	require.True(t, emit)
	assert.Equal(t, int32(1), dx)
	assert.Equal(t, int32(0), dy)
	assert.InDelta(t, 0.2, c.accX, 1e-9)
}

func TestMotionNegativeDeltas(t *testing.T) {
	var c motionCoalescer
	_, _, emit := c.Add(-0.7, 0)
	require.False(t, emit)
	dx, _, emit := c.Add(-0.7, 0)
	require.True(t, emit)
	assert.Equal(t, int32(-1), dx)
	assert.InDelta(t, -0.4, c.accX, 1e-9)
}

func TestMotionResidualBounded(t *testing.T) {
	var c motionCoalescer
	var truth, emitted float64
	deltas := []float64{0.4, 0.9, -1.7, 2.3, 0.05, -0.6, 3.14, -0.01, 1.0}
	for i := 0; i < 200; i++ {
		d := deltas[i%len(deltas)]
		truth += d
		dx, _, emit := c.Add(d, 0)
		if emit {
			emitted += float64(dx)
		}
		require.Less(t, math.Abs(truth-emitted), 1.0+1e-9, "residual exceeded one unit at feed %d", i)
	}
}

func TestWheelCoalescing(t *testing.T) {
	var c wheelCoalescer

	_, _, emit := c.Add(40, 0)
	require.False(t, emit)
	_, _, emit = c.Add(40, 0)
	require.False(t, emit)
	dx, dy, emit := c.Add(40, 0)
	require.True(t, emit)
	assert.Equal(t, int32(1), dx)
	assert.Equal(t, int32(0), dy)
	assert.Equal(t, int32(0), c.accX)
}

func TestWheelNegativeAndRemainder(t *testing.T) {
	var c wheelCoalescer
	dx, _, emit := c.Add(-150, 0)
	require.True(t, emit)
	assert.Equal(t, int32(-1), dx)
	assert.Equal(t, int32(-30), c.accX)

	// Multi-notch burst, both axes.
	dx, dy, emit := c.Add(250, 120)
	require.True(t, emit)
	assert.Equal(t, int32(1), dx) // -30 + 250 = 220
	assert.Equal(t, int32(1), dy)
	assert.Equal(t, int32(100), c.accX)
}
