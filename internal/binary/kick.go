// Package binary implements the supernova natal-kick physics of a compact
// binary, the survival checks on the post-kick orbit and the
// gravitational-wave inspiral time.
//
// References: Kalogera 1996 (ApJ 471, 352) for the kick, Willems et al. 2005
// and Fryer & Kalogera 1997 for the survival checks, Peters 1964 for the
// inspiral time.
package binary

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/kicksim/internal/units"
)

var (
	ErrInvalidInput   = errors.New("binary: invalid progenitor parameters")
	ErrCircularTarget = errors.New("binary: target separation is not supported for circular orbits")
	ErrNotConverged   = errors.New("binary: eccentricity evolution did not converge")
)

// Progenitor describes the binary immediately before the supernova.
// Masses are Msun, Apre is Rsun and Vkick is km/s.
type Progenitor struct {
	Mns   float64 // compact remnant
	Mcomp float64 // companion
	Mhe   float64 // exploding helium core
	Apre  float64
	Epre  float64
	Vkick float64
}

func (p Progenitor) Validate() error {
	switch {
	case !(p.Mns > 0), !(p.Mcomp > 0), !(p.Mhe > 0):
		return fmt.Errorf("%w: masses must be positive (Mns=%g Mcomp=%g Mhe=%g)", ErrInvalidInput, p.Mns, p.Mcomp, p.Mhe)
	case !(p.Apre > 0):
		return fmt.Errorf("%w: Apre must be positive, got %g", ErrInvalidInput, p.Apre)
	case !(p.Vkick >= 0):
		return fmt.Errorf("%w: Vkick must be non-negative, got %g", ErrInvalidInput, p.Vkick)
	}
	return nil
}

// Kick holds the post-supernova orbit. Velocities are km/s, Apost is Rsun.
//
// Frame: the helium core sits at the origin moving along +y relative to the
// companion, which lies on -x; z completes a right-handed system.
type Kick struct {
	Vkx, Vky, Vkz float64
	Vr            float64 // pre-SN relative orbital speed
	Apost         float64
	Epost         float64 // NaN or > 1 when unbound
	Vsx, Vsy, Vsz float64 // systemic velocity in the translated COM frame
	Vsys          float64
	Tilt          float64 // orbital plane tilt, rad
}

// ApplyKick computes the post-kick orbit for kick direction (theta, phi):
// theta is measured from +y and phi from +z in the x-z plane.
func ApplyKick(p Progenitor, theta, phi float64) Kick {
	G := units.GKm
	apre := p.Apre * units.RsunToKm

	var k Kick
	sinT, cosT := math.Sincos(theta)
	sinP, cosP := math.Sincos(phi)
	k.Vkx = p.Vkick * sinT * sinP
	k.Vky = p.Vkick * cosT
	k.Vkz = p.Vkick * sinT * cosP

	k.Vr = math.Sqrt(G * (p.Mhe + p.Mcomp) / apre)

	mpost := p.Mns + p.Mcomp
	apost := G * mpost / (2*G*mpost/apre - p.Vkick*p.Vkick - k.Vr*k.Vr - 2*k.Vky*k.Vr)
	vyr := k.Vky + k.Vr
	x := (k.Vkz*k.Vkz + vyr*vyr) * apre * apre / (G * mpost * apost)
	k.Epost = math.Sqrt(1 - x)

	k.Vsx = p.Mns * k.Vkx / mpost
	k.Vsy = (p.Mns*k.Vky - (p.Mhe-p.Mns)*p.Mcomp/(p.Mhe+p.Mcomp)*k.Vr) / mpost
	k.Vsz = p.Mns * k.Vkz / mpost
	k.Vsys = math.Sqrt(k.Vsx*k.Vsx + k.Vsy*k.Vsy + k.Vsz*k.Vsz)

	k.Tilt = math.Acos(vyr / math.Sqrt(vyr*vyr+k.Vkz*k.Vkz))
	k.Apost = apost / units.RsunToKm
	return k
}
