package metrics

import (
	"math"

	"github.com/san-kum/kicksim/internal/dynamo"
)

// EnergyDrift tracks the largest relative energy error within a segment of
// constant potential. Segment rebinds it when the potential changes; the
// largest drift of any segment is kept in Peak.
type EnergyDrift struct {
	initialEnergy float64
	maxDrift      float64
	peak          float64
	samples       int
	dyn           dynamo.Hamiltonian
}

func NewEnergyDrift(dyn dynamo.Hamiltonian) *EnergyDrift {
	return &EnergyDrift{dyn: dyn}
}

func (e *EnergyDrift) OnStep(x dynamo.State, _ float64) {
	energy := e.dyn.Energy(x)

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
		e.peak = math.Max(e.peak, e.maxDrift)
	}
}

// Value is the drift within the current segment.
func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

// Peak is the largest drift of any segment.
func (e *EnergyDrift) Peak() float64 {
	return e.peak
}

// Segment starts a new segment under dyn.
func (e *EnergyDrift) Segment(dyn dynamo.Hamiltonian) {
	e.dyn = dyn
	e.reset()
}

func (e *EnergyDrift) reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
