package binary

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"github.com/san-kum/kicksim/internal/dynamo"
	"github.com/san-kum/kicksim/internal/integrators"
)

// PetersCoef is G^3/c^5 in AU, Gyr and Msun units.
const PetersCoef = 6.086768e-11

// quadPanels and quadNodes control the Gauss-Legendre quadrature of the
// inspiral integral.
const (
	quadPanels = 8
	quadNodes  = 64
)

// Beta is the Peters beta coefficient, AU^4/Gyr.
func Beta(m1, m2 float64) float64 {
	return 64.0 / 5.0 * PetersCoef * m1 * m2 * (m1 + m2)
}

// Inspiral is the result of evolving an orbit from (a0, e0) to a target
// separation.
type Inspiral struct {
	Time float64 // Gyr
	A    float64 // final semi-major axis, AU
	E    float64 // final eccentricity
}

// InspiralTime is the time to merger in Gyr for a binary with semi-major axis
// a0 (AU), eccentricity e0 and masses m1, m2 (Msun).
func InspiralTime(a0, e0, m1, m2 float64) (float64, error) {
	res, err := InspiralTimeTo(a0, e0, m1, m2, 0)
	return res.Time, err
}

// InspiralTimeTo is the time in Gyr to shrink from a0 to af. af == 0 means
// merger. On a convergence failure the returned time is zero.
func InspiralTimeTo(a0, e0, m1, m2, af float64) (Inspiral, error) {
	if !(a0 > 0) || !(m1 > 0) || !(m2 > 0) || e0 < 0 || e0 >= 1 || af < 0 || af > a0 {
		return Inspiral{}, fmt.Errorf("%w: a0=%g e0=%g m1=%g m2=%g af=%g", ErrInvalidInput, a0, e0, m1, m2, af)
	}
	beta := Beta(m1, m2)

	if e0 == 0 {
		if af != 0 {
			return Inspiral{}, ErrCircularTarget
		}
		return Inspiral{Time: math.Pow(a0, 4) / (4 * beta)}, nil
	}

	c0 := a0 * (1 - e0*e0) * math.Pow(e0, -12.0/19.0) * math.Pow(1+121.0/304.0*e0*e0, -870.0/2299.0)

	eFinal := 0.0
	if af != 0 {
		ef, err := eccentricityAt(a0, e0, af)
		if err != nil {
			return Inspiral{}, err
		}
		eFinal = ef
	}

	t := petersIntegral(eFinal, e0) * 12.0 / 19.0 * math.Pow(c0, 4) / beta
	return Inspiral{Time: t, A: af, E: eFinal}, nil
}

// petersIntegral integrates e^(29/19) (1+121/304 e^2)^(1181/2299) / (1-e^2)^(3/2)
// over [lo, hi]. With s = -ln(1-e) the endpoint singularity at e -> 1 becomes
// a smooth exponential, so fixed Gauss-Legendre panels in s converge.
func petersIntegral(lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	f := func(s float64) float64 {
		u := math.Exp(-s) // 1 - e
		e := 1 - u
		return math.Pow(e, 29.0/19.0) * math.Pow(1+121.0/304.0*e*e, 1181.0/2299.0) /
			(math.Sqrt(u) * math.Pow(1+e, 1.5))
	}
	sLo, sHi := -math.Log1p(-lo), -math.Log1p(-hi)
	width := (sHi - sLo) / quadPanels
	sum := 0.0
	for i := 0; i < quadPanels; i++ {
		a := sLo + float64(i)*width
		sum += quad.Fixed(f, a, a+width, quadNodes, nil, 0)
	}
	return sum
}

// eccentricityDecay is de/da along a gravitational-wave driven inspiral.
// The independent variable is the semi-major axis.
type eccentricityDecay struct{}

func (eccentricityDecay) StateDim() int { return 1 }

func (eccentricityDecay) Derive(x dynamo.State, a float64) dynamo.State {
	e := x[0]
	e2 := e * e
	num := 19 * e * (1 - e2) * (1 + 121.0/304.0*e2)
	den := 12 * a * (1 + 73.0/24.0*e2 + 37.0/96.0*e2*e2)
	return dynamo.State{num / den}
}

func eccentricityAt(a0, e0, af float64) (float64, error) {
	cfg := integrators.DefaultSolveConfig()
	cfg.MinStep = 1e-14 * a0
	x, err := integrators.NewRK45().Solve(eccentricityDecay{}, dynamo.State{e0}, a0, af, cfg)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotConverged, err)
	}
	if !x.IsValid() || x[0] < 0 || x[0] >= 1 {
		return 0, fmt.Errorf("%w: final eccentricity %g", ErrNotConverged, x[0])
	}
	return x[0], nil
}
