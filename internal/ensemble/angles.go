package ensemble

import (
	"math"
	"math/rand"
)

// SampleAngles fills every NaN angle: azimuths uniform in [0, 2pi), polar
// angles isotropic via arccos(2u-1). Supernova angles are only drawn for
// progenitor rows.
func SampleAngles(samples []Sample, rng *rand.Rand) {
	for i := range samples {
		s := &samples[i]
		if s.Progenitor != nil {
			fillAzimuth(&s.SNPhi, rng)
			fillPolar(&s.SNTheta, rng)
		}
		fillAzimuth(&s.SYSPhi, rng)
		fillPolar(&s.SYSTheta, rng)
	}
}

func fillAzimuth(v *float64, rng *rand.Rand) {
	if math.IsNaN(*v) {
		*v = 2 * math.Pi * rng.Float64()
	}
}

func fillPolar(v *float64, rng *rand.Rand) {
	if math.IsNaN(*v) {
		*v = math.Acos(2*rng.Float64() - 1)
	}
}
