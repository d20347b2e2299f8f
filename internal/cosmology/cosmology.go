// Package cosmology converts between cosmic age and redshift.
package cosmology

import (
	"errors"
	"math"
)

// HubbleTimeGyr is 1/H0 in Gyr for H0 = 1 km/s/Mpc.
const HubbleTimeGyr = 977.792221

var ErrParams = errors.New("cosmology: invalid parameters")

// FlatLCDM is a flat universe of pressureless matter and a cosmological
// constant. Radiation is neglected.
type FlatLCDM struct {
	H0     float64 // km/s/Mpc
	OmegaM float64
	OmegaL float64
}

// Planck18 is the default cosmology.
func Planck18() FlatLCDM {
	return FlatLCDM{H0: 67.7, OmegaM: 0.31, OmegaL: 0.69}
}

func (c FlatLCDM) Validate() error {
	if c.H0 <= 0 || c.OmegaM <= 0 || c.OmegaL < 0 {
		return ErrParams
	}
	if math.Abs(c.OmegaM+c.OmegaL-1) > 1e-3 {
		return errors.Join(ErrParams, errors.New("cosmology: omega_m + omega_lambda must be 1"))
	}
	return nil
}

func (c FlatLCDM) hubbleTime() float64 { return HubbleTimeGyr / c.H0 }

// Age is the age of the universe at redshift z, in Gyr.
func (c FlatLCDM) Age(z float64) float64 {
	a32 := math.Pow(1+z, -1.5)
	if c.OmegaL == 0 {
		return 2.0 / 3.0 * c.hubbleTime() * a32 / math.Sqrt(c.OmegaM)
	}
	sl := math.Sqrt(c.OmegaL)
	return 2 / (3 * sl) * c.hubbleTime() * math.Asinh(math.Sqrt(c.OmegaL/c.OmegaM)*a32)
}

// Redshift inverts Age. Ages beyond the present give negative redshifts.
func (c FlatLCDM) Redshift(ageGyr float64) float64 {
	if c.OmegaL == 0 {
		a32 := 1.5 * ageGyr * math.Sqrt(c.OmegaM) / c.hubbleTime()
		return math.Pow(a32, -2.0/3.0) - 1
	}
	sl := math.Sqrt(c.OmegaL)
	a32 := math.Sinh(1.5*sl*ageGyr/c.hubbleTime()) / math.Sqrt(c.OmegaL/c.OmegaM)
	return math.Pow(a32, -2.0/3.0) - 1
}

// Now is the present age of the universe.
func (c FlatLCDM) Now() float64 { return c.Age(0) }
