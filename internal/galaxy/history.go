package galaxy

import (
	"errors"
	"fmt"
)

// Mode selects which potential governs epoch tt.
type Mode int

const (
	// Evolving uses the potential of the current epoch.
	Evolving Mode = iota
	// Cumulative sums every epoch up to and including the current one.
	Cumulative
	// Fixed uses a single epoch for the whole integration.
	Fixed
)

func (m Mode) String() string {
	switch m {
	case Evolving:
		return "evolving"
	case Cumulative:
		return "cumulative"
	case Fixed:
		return "fixed"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "evolving":
		return Evolving, nil
	case "cumulative":
		return Cumulative, nil
	case "fixed":
		return Fixed, nil
	}
	return 0, fmt.Errorf("unknown potential mode: %s", s)
}

var (
	ErrShortHistory   = errors.New("galaxy: history needs at least two epochs")
	ErrLengthMismatch = errors.New("galaxy: times, redshifts and potentials differ in length")
	ErrNotIncreasing  = errors.New("galaxy: epoch times must be strictly increasing")
	ErrEpochRange     = errors.New("galaxy: epoch index out of range")
)

// History is the ordered potential sequence. Times are cosmic ages in Gyr.
type History struct {
	Times      []float64
	Redz       []float64
	Potentials []Potential

	prefix []Potential
}

func NewHistory(times, redz []float64, pots []Potential) (*History, error) {
	if len(times) != len(redz) || len(times) != len(pots) {
		return nil, ErrLengthMismatch
	}
	if len(times) < 2 {
		return nil, ErrShortHistory
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, fmt.Errorf("%w: times[%d]=%g after times[%d]=%g", ErrNotIncreasing, i, times[i], i-1, times[i-1])
		}
	}

	h := &History{Times: times, Redz: redz, Potentials: pots}
	h.prefix = make([]Potential, len(pots))
	for i := range pots {
		c := make(Composite, i+1)
		copy(c, pots[:i+1])
		h.prefix[i] = c
	}
	return h, nil
}

func (h *History) Len() int { return len(h.Times) }

// Span is the time between the first and last epochs.
func (h *History) Span() float64 { return h.Times[len(h.Times)-1] - h.Times[0] }

// Potential returns the potential governing epoch tt under mode. fixed is
// the epoch used when mode is Fixed.
func (h *History) PotentialAt(mode Mode, tt, fixed int) (Potential, error) {
	idx := tt
	if mode == Fixed {
		idx = fixed
	}
	if idx < 0 || idx >= len(h.Potentials) {
		return nil, fmt.Errorf("%w: %d (have %d epochs)", ErrEpochRange, idx, len(h.Potentials))
	}
	if mode == Cumulative {
		return h.prefix[idx], nil
	}
	return h.Potentials[idx], nil
}
