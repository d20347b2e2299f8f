// Package galaxy provides axisymmetric gravitational potentials and the
// epoch-indexed potential history a tracer is integrated through.
//
// Lengths are kpc, masses Msun, potentials (km/s)^2 and forces
// (km/s)^2/kpc. All potentials are immutable after construction and safe to
// share between goroutines.
package galaxy

import (
	"math"

	"github.com/san-kum/kicksim/internal/units"
)

type Potential interface {
	// Evaluate returns the potential at cylindrical radius R and height z.
	Evaluate(R, z float64) float64
	// Force returns the specific force components (-dPhi/dR, -dPhi/dz).
	Force(R, z float64) (fR, fz float64)
}

// MiyamotoNagai is a flattened disk potential.
type MiyamotoNagai struct {
	M float64 // mass
	A float64 // scale length
	B float64 // scale height
}

func (p MiyamotoNagai) Evaluate(R, z float64) float64 {
	s := math.Sqrt(z*z + p.B*p.B)
	return -units.G * p.M / math.Sqrt(R*R+(p.A+s)*(p.A+s))
}

func (p MiyamotoNagai) Force(R, z float64) (float64, float64) {
	s := math.Sqrt(z*z + p.B*p.B)
	as := p.A + s
	d2 := R*R + as*as
	d3 := d2 * math.Sqrt(d2)
	gm := units.G * p.M
	return -gm * R / d3, -gm * z * as / (s * d3)
}

// Hernquist is a spherical bulge potential.
type Hernquist struct {
	M float64
	A float64
}

func (p Hernquist) Evaluate(R, z float64) float64 {
	r := math.Hypot(R, z)
	return -units.G * p.M / (r + p.A)
}

func (p Hernquist) Force(R, z float64) (float64, float64) {
	r := math.Hypot(R, z)
	if r == 0 {
		return 0, 0
	}
	fr := -units.G * p.M / ((r + p.A) * (r + p.A))
	return fr * R / r, fr * z / r
}

// NFW is a dark-matter halo. M is the normalisation 4 pi rho0 rs^3.
type NFW struct {
	M  float64
	Rs float64
}

func (p NFW) Evaluate(R, z float64) float64 {
	r := math.Hypot(R, z)
	if r == 0 {
		return -units.G * p.M / p.Rs
	}
	return -units.G * p.M * math.Log1p(r/p.Rs) / r
}

func (p NFW) Force(R, z float64) (float64, float64) {
	r := math.Hypot(R, z)
	if r == 0 {
		return 0, 0
	}
	fr := units.G * p.M * (1/(r*(r+p.Rs)) - math.Log1p(r/p.Rs)/(r*r))
	return fr * R / r, fr * z / r
}

// Plummer is a softened point mass.
type Plummer struct {
	M float64
	B float64
}

func (p Plummer) Evaluate(R, z float64) float64 {
	return -units.G * p.M / math.Sqrt(R*R+z*z+p.B*p.B)
}

func (p Plummer) Force(R, z float64) (float64, float64) {
	d2 := R*R + z*z + p.B*p.B
	fr := -units.G * p.M / (d2 * math.Sqrt(d2))
	return fr * R, fr * z
}

// Composite is the sum of its components.
type Composite []Potential

func (c Composite) Evaluate(R, z float64) float64 {
	sum := 0.0
	for _, p := range c {
		sum += p.Evaluate(R, z)
	}
	return sum
}

func (c Composite) Force(R, z float64) (float64, float64) {
	var fR, fz float64
	for _, p := range c {
		r, zz := p.Force(R, z)
		fR += r
		fz += zz
	}
	return fR, fz
}

// Vcirc is the circular velocity in the midplane at radius R.
func Vcirc(p Potential, R float64) float64 {
	fR, _ := p.Force(R, 0)
	if fR >= 0 {
		return 0
	}
	return math.Sqrt(-R * fR)
}

// Infinity is the radius and height used as "infinitely far" for escape
// velocities, in kpc.
const Infinity = 1000.0

// EscapeVelocity returns sqrt(2 (Phi(inf) - Phi(R, z))).
func EscapeVelocity(p Potential, R, z float64) float64 {
	dphi := p.Evaluate(Infinity, Infinity) - p.Evaluate(R, z)
	if dphi <= 0 {
		return 0
	}
	return math.Sqrt(2 * dphi)
}
