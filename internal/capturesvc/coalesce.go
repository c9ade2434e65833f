package capturesvc

import "math"

// motionCoalescer accumulates fractional pointer deltas and emits whole
// pixels once the accumulated magnitude exceeds 1.0 on either axis, keeping
// the fractional remainder. The unsent residual never exceeds 1.0 per axis.
type motionCoalescer struct {
	accX float64
	accY float64
}

func (c *motionCoalescer) Add(dx, dy float64) (int32, int32, bool) {
	c.accX += dx
	c.accY += dy
	if math.Abs(c.accX) <= 1.0 && math.Abs(c.accY) <= 1.0 {
		return 0, 0, false
	}
	ix := int32(c.accX)
	iy := int32(c.accY)
	c.accX -= float64(ix)
	c.accY -= float64(iy)
	return ix, iy, true
}

// wheelSubunits is the scroll resolution per notch, matching the kernel's
// REL_WHEEL_HI_RES scale.
const wheelSubunits = 120

// wheelCoalescer accumulates scroll sub-units and emits whole notches once
// a full notch has been reached, keeping the remainder.
type wheelCoalescer struct {
	accX int32
	accY int32
}

func (c *wheelCoalescer) Add(dx, dy int32) (int32, int32, bool) {
	c.accX += dx
	c.accY += dy
	if abs32(c.accX) < wheelSubunits && abs32(c.accY) < wheelSubunits {
		return 0, 0, false
	}
	nx := c.accX / wheelSubunits
	ny := c.accY / wheelSubunits
	c.accX -= nx * wheelSubunits
	c.accY -= ny * wheelSubunits
	return nx, ny, true
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
