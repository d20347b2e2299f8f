package ensemble

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/kicksim/internal/binary"
	"github.com/san-kum/kicksim/internal/coords"
)

// GalacticVelocity rotates the post-SN systemic velocity into the galactic
// frame: by sysPhi about Z, then sysTheta about Y, then adds the pre-SN
// circular velocity along +y. Disrupted systems get NaN.
func GalacticVelocity(k binary.Kick, survive bool, sysTheta, sysPhi, vcirc float64) (r3.Vec, float64) {
	if !survive {
		n := math.NaN()
		return r3.Vec{X: n, Y: n, Z: n}, n
	}
	v := r3.Vec{X: k.Vsx, Y: k.Vsy, Z: k.Vsz}
	v = coords.EulerRotate(v, sysPhi, coords.AxisZ)
	v = coords.EulerRotate(v, sysTheta, coords.AxisY)
	v.Y += vcirc
	return v, r3.Norm(v)
}

// DecomposeVsys splits a systemic speed into galactic-frame components with
// (sysTheta, sysPhi) as spherical angles and adds the circular velocity
// along +y.
func DecomposeVsys(vsys, sysTheta, sysPhi, vcirc float64) (r3.Vec, float64) {
	sinT, cosT := math.Sincos(sysTheta)
	sinP, cosP := math.Sincos(sysPhi)
	v := r3.Vec{
		X: vsys * sinT * cosP,
		Y: vsys*sinT*sinP + vcirc,
		Z: vsys * cosT,
	}
	return v, r3.Norm(v)
}
