package storage

import (
	"fmt"
	"math"

	"github.com/san-kum/kicksim/internal/binary"
	"github.com/san-kum/kicksim/internal/ensemble"
	"github.com/san-kum/kicksim/internal/evolve"
)

type tracerColumn struct {
	name string
	get  func(t *ensemble.Tracer, r *evolve.Result) float64
}

func progenitor(f func(p *binary.Progenitor) float64) func(*ensemble.Tracer, *evolve.Result) float64 {
	return func(t *ensemble.Tracer, _ *evolve.Result) float64 {
		if t.Progenitor == nil {
			return math.NaN()
		}
		return f(t.Progenitor)
	}
}

var tracerColumns = []tracerColumn{
	{"R", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.R }},
	{"t0", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return float64(t.T0) }},
	{"tbirth", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Tbirth }},
	{"zbirth", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Zbirth }},
	{"Mns", progenitor(func(p *binary.Progenitor) float64 { return p.Mns })},
	{"Mcomp", progenitor(func(p *binary.Progenitor) float64 { return p.Mcomp })},
	{"Mhe", progenitor(func(p *binary.Progenitor) float64 { return p.Mhe })},
	{"Apre", progenitor(func(p *binary.Progenitor) float64 { return p.Apre })},
	{"epre", progenitor(func(p *binary.Progenitor) float64 { return p.Epre })},
	{"Vkick", progenitor(func(p *binary.Progenitor) float64 { return p.Vkick })},
	{"SNtheta", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.SNTheta }},
	{"SNphi", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.SNPhi }},
	{"SYStheta", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.SYSTheta }},
	{"SYSphi", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.SYSPhi }},
	{"Vkx", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vkx }},
	{"Vky", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vky }},
	{"Vkz", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vkz }},
	{"Vr", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vr }},
	{"Apost", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Apost }},
	{"epost", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Epost }},
	{"Vsx", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vsx }},
	{"Vsy", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vsy }},
	{"Vsz", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vsz }},
	{"Vsys", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Vsys }},
	{"tilt", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Kick.Tilt }},
	{"SNcheck1", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return boolFloat(t.Survival.Check1) }},
	{"SNcheck2", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return boolFloat(t.Survival.Check2) }},
	{"SNcheck3", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return boolFloat(t.Survival.Check3) }},
	{"SNcheck4", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return boolFloat(t.Survival.Check4) }},
	{"SNsurvive", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return boolFloat(t.Survival.Survive) }},
	{"Tinsp", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Tinsp }},
	{"Vcirc", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Vcirc }},
	{"Vesc", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Vesc }},
	{"Vpx", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Vp.X }},
	{"Vpy", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Vp.Y }},
	{"Vpz", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Vp.Z }},
	{"Vpost", func(t *ensemble.Tracer, _ *evolve.Result) float64 { return t.Vpost }},
	{"X", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Final.X }},
	{"Y", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Final.Y }},
	{"Z", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Final.Z }},
	{"vX", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Final.VX }},
	{"vY", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Final.VY }},
	{"vZ", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Final.VZ }},
	{"R_offset", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.ROffset }},
	{"Rproj_offset", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.RProjOffset }},
	{"merger_redz", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.MergerRedshift }},
	{"merged", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return boolFloat(r.Outcome.Merged) }},
	{"elapsed", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Elapsed }},
	{"segments", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return float64(r.Outcome.Segments) }},
	{"wall_s", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.Wall.Seconds() }},
	{"energy_drift", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.EnergyDrift }},
	{"max_offset", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return r.Outcome.MaxOffset }},
	{"failed", func(_ *ensemble.Tracer, r *evolve.Result) float64 { return boolFloat(r.Failed()) }},
}

// TracerTable joins the prepared tracers with their evolution results.
// Tobs is the time from birth to the final epoch at age finalAge (Gyr).
func TracerTable(tracers []ensemble.Tracer, results []evolve.Result, finalAge float64) (*Table, error) {
	if len(tracers) != len(results) {
		return nil, fmt.Errorf("storage: %d tracers but %d results", len(tracers), len(results))
	}
	n := len(tracers)
	t := NewTable(n)

	idx := make([]int, n)
	tobs := make([]float64, n)
	outcome := make([]string, n)
	errs := make([]string, n)
	for i := range tracers {
		if results[i].Index != tracers[i].Index {
			return nil, fmt.Errorf("storage: row %d pairs tracer %d with result %d", i, tracers[i].Index, results[i].Index)
		}
		idx[i] = tracers[i].Index
		tobs[i] = finalAge - tracers[i].Tbirth
		outcome[i] = results[i].OutcomeLabel()
		if results[i].Err != nil {
			errs[i] = results[i].Err.Error()
		}
	}
	t.SetIndex(idx)

	for _, c := range tracerColumns {
		v := make([]float64, n)
		for i := range tracers {
			v[i] = c.get(&tracers[i], &results[i])
		}
		t.Set(c.name, v)
	}
	t.Set("Tobs", tobs)
	t.SetText("outcome", outcome)
	t.SetText("error", errs)
	return t, nil
}
