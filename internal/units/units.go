// Package units converts orbital state between physical units (kpc, km/s,
// Gyr) and the dimensionless natural system scaled by a reference radius ro
// and velocity vo. The unit system is part of the type: an Orbit[Physical]
// cannot be passed where an Orbit[Natural] is expected.
package units

import "math"

const (
	// G in kpc (km/s)^2 / Msun.
	G = 4.300917270e-6

	// KmsToKpcGyr converts a velocity in km/s to kpc/Gyr.
	KmsToKpcGyr = 1.0227121650537077

	KpcToKm  = 3.0856775814913673e16
	RsunToKm = 6.957e5
	AUToKm   = 1.495978707e8
	RsunToAU = RsunToKm / AUToKm

	// GKm is G in km^3 / (Msun s^2).
	GKm = 1.32712440018e11

	DefaultRo = 8.0
	DefaultVo = 220.0
)

// System marks the unit system of a quantity.
type System interface {
	Physical | Natural
}

type Physical struct{}

type Natural struct{}

// Orbit is a cylindrical phase-space point (R, Phi, Z, vR, vT, vZ) where vT is
// the tangential velocity R*dPhi/dt. In Physical units lengths are kpc,
// velocities km/s; in Natural units both are scaled by ro and vo.
type Orbit[U System] struct {
	R, Phi, Z  float64
	VR, VT, VZ float64
}

// Scale holds the reference radius (kpc) and velocity (km/s) of the natural
// unit system.
type Scale struct {
	Ro float64
	Vo float64
}

func DefaultScale() Scale {
	return Scale{Ro: DefaultRo, Vo: DefaultVo}
}

// TimeUnit is the natural unit of time in Gyr.
func (s Scale) TimeUnit() float64 {
	return s.Ro / (s.Vo * KmsToKpcGyr)
}

// ForceUnit is the natural unit of specific force in (km/s)^2/kpc.
func (s Scale) ForceUnit() float64 {
	return s.Vo * s.Vo / s.Ro
}

func (s Scale) ToNatural(o Orbit[Physical]) Orbit[Natural] {
	return Orbit[Natural]{
		R:   o.R / s.Ro,
		Phi: o.Phi,
		Z:   o.Z / s.Ro,
		VR:  o.VR / s.Vo,
		VT:  o.VT / s.Vo,
		VZ:  o.VZ / s.Vo,
	}
}

// ToPhysical converts back to physical units, wrapping Phi into [0, 2pi).
func (s Scale) ToPhysical(o Orbit[Natural]) Orbit[Physical] {
	return Orbit[Physical]{
		R:   o.R * s.Ro,
		Phi: WrapAngle(o.Phi),
		Z:   o.Z * s.Ro,
		VR:  o.VR * s.Vo,
		VT:  o.VT * s.Vo,
		VZ:  o.VZ * s.Vo,
	}
}

// WrapAngle maps phi into [0, 2pi).
func WrapAngle(phi float64) float64 {
	phi = math.Mod(phi, 2*math.Pi)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi
}
