package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/coords"
	"github.com/san-kum/kicksim/internal/dynamo"
	"github.com/san-kum/kicksim/internal/galaxy"
	"github.com/san-kum/kicksim/internal/units"
)

// MinRadius is the cylindrical radius (kpc) below which the azimuthal force
// decomposition is undefined. Derive returns a non-finite state there.
const MinRadius = 1e-12

// GalacticOrbit is a test particle moving in a static potential.
type GalacticOrbit[U units.System] struct {
	pot   galaxy.Potential
	scale units.Scale

	length   float64 // kpc per state length
	velocity float64 // km/s per state velocity
	accel    float64 // state acceleration per (km/s)^2/kpc
	time     float64 // Gyr per state time
	orbitVel float64 // state velocity per Orbit[U] velocity
}

func NewGalacticOrbit[U units.System](pot galaxy.Potential, scale units.Scale) *GalacticOrbit[U] {
	g := &GalacticOrbit[U]{pot: pot, scale: scale}
	if isNatural[U]() {
		g.length = scale.Ro
		g.velocity = scale.Vo
		g.accel = 1 / scale.ForceUnit()
		g.time = scale.TimeUnit()
		g.orbitVel = 1
	} else {
		g.length = 1
		g.velocity = 1 / units.KmsToKpcGyr
		g.accel = units.KmsToKpcGyr * units.KmsToKpcGyr
		g.time = 1
		g.orbitVel = units.KmsToKpcGyr
	}
	return g
}

func isNatural[U units.System]() bool {
	var u U
	_, ok := any(u).(units.Natural)
	return ok
}

func (g *GalacticOrbit[U]) StateDim() int { return 6 }

func (g *GalacticOrbit[U]) Derive(x dynamo.State, _ float64) dynamo.State {
	X, Y, Z := x[0]*g.length, x[1]*g.length, x[2]*g.length
	R := math.Hypot(X, Y)
	if R < MinRadius || math.IsNaN(R) {
		nan := math.NaN()
		return dynamo.State{nan, nan, nan, nan, nan, nan}
	}
	fR, fz := g.pot.Force(R, Z)
	k := g.accel * fR / R
	return dynamo.State{
		x[3], x[4], x[5],
		k * X, k * Y, g.accel * fz,
	}
}

// Energy is the specific orbital energy in (km/s)^2.
func (g *GalacticOrbit[U]) Energy(x dynamo.State) float64 {
	X, Y, Z := x[0]*g.length, x[1]*g.length, x[2]*g.length
	v2 := (x[3]*x[3] + x[4]*x[4] + x[5]*x[5]) * g.velocity * g.velocity
	return 0.5*v2 + g.pot.Evaluate(math.Hypot(X, Y), Z)
}

// LengthUnit is the number of kpc per state length.
func (g *GalacticOrbit[U]) LengthUnit() float64 { return g.length }

// Time converts a duration in Gyr into integrator time units.
func (g *GalacticOrbit[U]) Time(gyr float64) float64 { return gyr / g.time }

// StateFromOrbit builds the integrator state for a cylindrical orbit given in
// the units of U.
func (g *GalacticOrbit[U]) StateFromOrbit(o units.Orbit[U]) dynamo.State {
	pos, vel := coords.OrbitToCartesian(o)
	k := g.orbitVel
	return dynamo.State{pos.X, pos.Y, pos.Z, vel.X * k, vel.Y * k, vel.Z * k}
}

// Orbit converts an integrator state back to a cylindrical orbit in U.
func (g *GalacticOrbit[U]) Orbit(x dynamo.State) units.Orbit[U] {
	k := 1 / g.orbitVel
	return coords.OrbitFromCartesian[U](
		r3.Vec{X: x[0], Y: x[1], Z: x[2]},
		r3.Vec{X: x[3] * k, Y: x[4] * k, Z: x[5] * k},
	)
}

// FromPhysical expresses a physical orbit in the units of U.
func (g *GalacticOrbit[U]) FromPhysical(o units.Orbit[units.Physical]) units.Orbit[U] {
	var out any = o
	if isNatural[U]() {
		out = g.scale.ToNatural(o)
	}
	return out.(units.Orbit[U])
}

// ToPhysical expresses an orbit in U in physical units.
func (g *GalacticOrbit[U]) ToPhysical(o units.Orbit[U]) units.Orbit[units.Physical] {
	switch v := any(o).(type) {
	case units.Orbit[units.Natural]:
		return g.scale.ToPhysical(v)
	case units.Orbit[units.Physical]:
		v.Phi = units.WrapAngle(v.Phi)
		return v
	}
	panic("physics: unreachable unit system")
}
