package sim

import "math"

// Centi is a fixed-precision spatial quantity stored as hundredths of a world
// unit. All positions, velocities, angles and timers cross the wire as Centi
// so encoded state is identical across platforms.
type Centi int32

// ToCenti quantises a float to hundredths, rounding half away from zero.
func ToCenti(v float64) Centi {
	return Centi(math.Round(v * 100))
}

// Float converts the quantised value back to a float64.
func (c Centi) Float() float64 {
	return float64(c) / 100
}
