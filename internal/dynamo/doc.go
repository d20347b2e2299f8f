// Package dynamo provides core primitives for integrating ordinary
// differential equations.
//
// The package defines the fundamental interfaces shared by the orbit
// integrator and the inspiral-time calculator:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator
//   - [Hamiltonian]: systems with a conserved energy
//
// # Example
//
//	dyn := physics.NewGalacticOrbit[units.Physical](pot, units.DefaultScale())
//	integ := integrators.NewRK4()
//	x1 := integ.Step(dyn, x0, t, dt)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// Every orbit integration owns its own integrator instance.
package dynamo
