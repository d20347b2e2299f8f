package metrics

import (
	"math"

	"github.com/san-kum/kicksim/internal/dynamo"
)

// MaxOffset records the largest galactocentric distance reached. The first
// three state components are positions; length converts them to kpc.
type MaxOffset struct {
	length float64
	max    float64
}

func NewMaxOffset(length float64) *MaxOffset {
	return &MaxOffset{length: length}
}

func (m *MaxOffset) OnStep(x dynamo.State, _ float64) {
	if len(x) < 3 {
		return
	}
	r := math.Sqrt(x[0]*x[0]+x[1]*x[1]+x[2]*x[2]) * m.length
	if r > m.max {
		m.max = r
	}
}

func (m *MaxOffset) Value() float64 { return m.max }
