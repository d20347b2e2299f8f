package weights

import (
	"fmt"
	"math"
)

// DefaultTinspFloor is the smallest population inspiral time in Gyr before
// taking logs.
const DefaultTinspFloor = 1e-6

// Population is a population-synthesis sample of systemic velocities (km/s)
// and inspiral times (Gyr).
type Population struct {
	Vsys  []float64
	Tinsp []float64
}

func (p Population) validate() error {
	if len(p.Vsys) != len(p.Tinsp) {
		return fmt.Errorf("%w: population has %d Vsys and %d Tinsp values", ErrBadParams, len(p.Vsys), len(p.Tinsp))
	}
	return nil
}

// jointSpace maps population and tracer (Vsys, Tinsp) pairs onto the unit
// square: Vsys linearly, Tinsp in log10 after flooring the population.
func jointSpace(pop Population, vsys, tinsp []float64, floor float64) (popPts, tracerPts [][]float64, err error) {
	vs, vt, err := NormalizeData(pop.Vsys, vsys)
	if err != nil {
		return nil, nil, err
	}
	logPop := make([]float64, len(pop.Tinsp))
	for i, t := range pop.Tinsp {
		logPop[i] = math.Log10(math.Max(t, floor))
	}
	logTr := make([]float64, len(tinsp))
	for i, t := range tinsp {
		logTr[i] = math.Log10(t)
	}
	ts, tt, err := NormalizeData(logPop, logTr)
	if err != nil {
		return nil, nil, err
	}
	return zip(vs, ts), zip(vt, tt), nil
}

func zip(a, b []float64) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = []float64{a[i], b[i]}
	}
	return out
}

// FromSamples weights tracers by the joint (Vsys, Tinsp) density of a
// population sample. The two are correlated, so a single two-dimensional
// KDE is used.
func FromSamples(vsys, tinsp []float64, pop Population, floor float64, normalize bool) ([]float64, error) {
	if err := pop.validate(); err != nil {
		return nil, err
	}
	if len(vsys) != len(tinsp) {
		return nil, fmt.Errorf("%w: %d Vsys and %d Tinsp tracer values", ErrBadParams, len(vsys), len(tinsp))
	}
	popPts, tracerPts, err := jointSpace(pop, vsys, tinsp, floor)
	if err != nil {
		return nil, err
	}
	kde, err := NewKDE(popPts, nil)
	if err != nil {
		return nil, err
	}
	w := make([]float64, len(tracerPts))
	for i, p := range tracerPts {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) {
			w[i] = math.NaN()
			continue
		}
		w[i] = kde.Prob(p)
	}
	if normalize {
		Normalize(w)
	}
	return w, nil
}

// SamplesFromTracers weights a population sample by how well it reproduces
// tracers within five sigma of the observed offset, each tracer weighted by
// its offset likelihood. The likelihoods enter the KDE unscaled.
func SamplesFromTracers(rproj, vsys, tinsp []float64, offset, sigma float64, pop Population, floor float64, normalize bool) ([]float64, error) {
	if err := pop.validate(); err != nil {
		return nil, err
	}
	if !(sigma > 0) {
		return nil, fmt.Errorf("%w: offset error must be positive, got %g", ErrBadParams, sigma)
	}
	if len(rproj) != len(vsys) || len(rproj) != len(tinsp) {
		return nil, fmt.Errorf("%w: tracer columns differ in length", ErrBadParams)
	}

	kernel := offsetKernel(rproj, offset, sigma, 5)
	var keepV, keepT, keepW []float64
	for i, k := range kernel {
		if k > 0 && !math.IsNaN(vsys[i]) && !math.IsNaN(tinsp[i]) {
			keepV = append(keepV, vsys[i])
			keepT = append(keepT, tinsp[i])
			keepW = append(keepW, k)
		}
	}
	if len(keepW) < 2 {
		return nil, fmt.Errorf("%w: fewer than two tracers within five sigma of %g kpc", ErrNoData, offset)
	}

	popPts, tracerPts, err := jointSpace(pop, keepV, keepT, floor)
	if err != nil {
		return nil, err
	}
	kde, err := NewKDE(tracerPts, keepW)
	if err != nil {
		return nil, err
	}
	w := make([]float64, len(popPts))
	for i, p := range popPts {
		w[i] = kde.Prob(p)
	}
	if normalize {
		Normalize(w)
	}
	return w, nil
}
