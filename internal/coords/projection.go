package coords

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"
)

// ProjectedOffsets models an unknown viewing angle: one random rotation about
// X, then Y, then Z is drawn from rng and applied to every position, and the
// offset seen by an observer along z-hat is the X-Y magnitude of the result.
func ProjectedOffsets(rng *rand.Rand, positions []r3.Vec) []float64 {
	ax := 2 * math.Pi * rng.Float64()
	ay := 2 * math.Pi * rng.Float64()
	az := 2 * math.Pi * rng.Float64()

	out := make([]float64, len(positions))
	for i, p := range positions {
		p = EulerRotate(p, ax, AxisX)
		p = EulerRotate(p, ay, AxisY)
		p = EulerRotate(p, az, AxisZ)
		out[i] = math.Hypot(p.X, p.Y)
	}
	return out
}

// TrueOffset is the galactocentric distance sqrt(R^2 + Z^2).
func TrueOffset(R, Z float64) float64 {
	return math.Hypot(R, Z)
}
