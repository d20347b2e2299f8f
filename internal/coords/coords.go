// Package coords converts positions and velocities between Cartesian and
// cylindrical representations and applies Euler rotations.
package coords

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/units"
)

// CartesianToCylindrical returns R, Phi, Z and the velocities vR, vPhi, vZ,
// where vPhi is the angular rate dPhi/dt (velocity units per length unit).
// The azimuth is measured with atan2 so every quadrant is recovered.
func CartesianToCylindrical(x, y, z, vx, vy, vz float64) (R, phi, Z, vR, vPhi, vZ float64) {
	r2 := x*x + y*y
	R = math.Sqrt(r2)
	phi = math.Atan2(y, x)
	vR = (x*vx + y*vy) / R
	vPhi = (x*vy - y*vx) / r2
	return R, phi, z, vR, vPhi, vz
}

func CylindricalToCartesian(R, phi, Z, vR, vPhi, vZ float64) (x, y, z, vx, vy, vz float64) {
	sin, cos := math.Sincos(phi)
	x = R * cos
	y = R * sin
	vx = vR*cos - R*sin*vPhi
	vy = vR*sin + R*cos*vPhi
	return x, y, Z, vx, vy, vZ
}

// OrbitFromCartesian builds a cylindrical orbit state from a Cartesian
// position and velocity given in the units of U.
func OrbitFromCartesian[U units.System](pos, vel r3.Vec) units.Orbit[U] {
	R, phi, z, vR, vPhi, vz := CartesianToCylindrical(pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z)
	return units.Orbit[U]{R: R, Phi: phi, Z: z, VR: vR, VT: R * vPhi, VZ: vz}
}

// OrbitToCartesian is the inverse of OrbitFromCartesian.
func OrbitToCartesian[U units.System](o units.Orbit[U]) (pos, vel r3.Vec) {
	x, y, z, vx, vy, vz := CylindricalToCartesian(o.R, o.Phi, o.Z, o.VR, o.VT/o.R, o.VZ)
	return r3.Vec{X: x, Y: y, Z: z}, r3.Vec{X: vx, Y: vy, Z: vz}
}

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

func (a Axis) unit() r3.Vec {
	switch a {
	case AxisX:
		return r3.Vec{X: 1}
	case AxisY:
		return r3.Vec{Y: 1}
	default:
		return r3.Vec{Z: 1}
	}
}

// EulerRotate rotates v counterclockwise by angle about the given axis.
func EulerRotate(v r3.Vec, angle float64, axis Axis) r3.Vec {
	return r3.Rotate(v, angle, axis.unit())
}
