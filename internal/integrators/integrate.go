package integrators

import "github.com/san-kum/kicksim/internal/dynamo"

// Integrate advances x0 through the time grid ts (ts[0] is the time of x0)
// and returns the state at every grid point, x0 included. Integration stops
// at the first non-finite state; the states computed so far are returned
// along with the error.
func Integrate(integ dynamo.Integrator, dyn dynamo.System, x0 dynamo.State, ts []float64, observers ...dynamo.Observer) ([]dynamo.State, error) {
	if len(x0) != dyn.StateDim() {
		return nil, dynamo.ErrDimensionMismatch
	}

	states := make([]dynamo.State, 0, len(ts))
	x := x0.Clone()
	states = append(states, x)
	if len(ts) == 0 {
		return states, nil
	}
	for _, obs := range observers {
		obs.OnStep(x, ts[0])
	}

	for i := 1; i < len(ts); i++ {
		dt := ts[i] - ts[i-1]
		next := integ.Step(dyn, x, ts[i-1], dt)
		if !next.IsValid() {
			return states, &dynamo.SimulationError{
				Step:    i,
				Time:    ts[i-1],
				State:   x,
				Wrapped: dynamo.ErrInvalidState,
			}
		}
		x = next
		states = append(states, x)
		for _, obs := range observers {
			obs.OnStep(x, ts[i])
		}
	}

	return states, nil
}
