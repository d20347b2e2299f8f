package orbit

import (
	"errors"
	"fmt"
	"math"
)

// State is the lifecycle position of one tracer integration.
type State int

const (
	AwaitingFirstStep State = iota
	Stepping
	Merged
	Exhausted
	TimedOut
	Disrupted
)

func (s State) String() string {
	switch s {
	case AwaitingFirstStep:
		return "awaiting_first_step"
	case Stepping:
		return "stepping"
	case Merged:
		return "merged"
	case Exhausted:
		return "exhausted"
	case TimedOut:
		return "timed_out"
	case Disrupted:
		return "disrupted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether integration has stopped.
func (s State) Terminal() bool { return s >= Merged }

// Merger-redshift sentinels. A disrupted system carries NaN.
const (
	ExhaustedRedshift = 0.0
	TimedOutRedshift  = -1.0
)

var (
	ErrEpochRange = errors.New("orbit: birth epoch out of range")
	ErrConfig     = errors.New("orbit: invalid configuration")
)

// IntegrationError reports a numerical failure while integrating one system.
// It is distinct from every sentinel outcome.
type IntegrationError struct {
	Index int
	Epoch int
	Step  int
	Err   error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("tracer %d: epoch %d step %d: %v", e.Index, e.Epoch, e.Step, e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// Phase is a Cartesian position (kpc) and velocity (km/s).
type Phase struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

func nanPhase() Phase {
	n := math.NaN()
	return Phase{n, n, n, n, n, n}
}
