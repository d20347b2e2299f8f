// Package physics provides the equations of motion integrated by the orbit
// engine.
//
// [GalacticOrbit] implements [dynamo.System] and [dynamo.Hamiltonian] for a
// test particle in an axisymmetric galactic potential. The integrator state
// is the Cartesian vector [x y z vx vy vz] with positions first, so the
// symplectic integrators can split it in half. Velocities are stored in
// length per time unit so that dx/dt equals the stored velocity exactly.
//
// The unit system is a type parameter:
//
//	dyn := physics.NewGalacticOrbit[units.Natural](pot, units.DefaultScale())
//	x0 := dyn.StateFromOrbit(orbit)
//	ts := floats.Span(make([]float64, n), 0, dyn.Time(dtGyr))
//
// # Energy Conservation
//
// Within a single static potential the specific energy is conserved, so
// [dynamo.Hamiltonian] can be used to monitor integration drift:
//
//	drift := metrics.NewEnergyDrift(dyn)
//	integrators.Integrate(integ, dyn, x0, ts, drift)
package physics
