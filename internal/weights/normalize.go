// Package weights reweights tracer particles, and population-synthesis
// samples, by inspiral time, systemic velocity and the observed projected
// offset of a transient.
package weights

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownMethod = errors.New("weights: unknown method")
	ErrBadParams     = errors.New("weights: invalid parameters")
	ErrNoData        = errors.New("weights: no finite data")
)

// finiteRange returns the min and max over the finite entries of every
// slice.
func finiteRange(sets ...[]float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range sets {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}

// Normalize rescales w in place onto [0, 1] by min-max scaling and returns
// it. Non-finite entries are ignored and left unchanged. When every finite
// weight is equal they all become 1.
func Normalize(w []float64) []float64 {
	lo, hi, ok := finiteRange(w)
	if !ok {
		return w
	}
	span := hi - lo
	for i, v := range w {
		switch {
		case math.IsNaN(v), math.IsInf(v, 0):
		case span == 0:
			w[i] = 1
		default:
			w[i] = (v - lo) / span
		}
	}
	return w
}

// NormalizeData maps samples and tracers onto [0, 1] using their common
// range, so both can share one kernel density estimate.
func NormalizeData(samples, tracers []float64) ([]float64, []float64, error) {
	lo, hi, ok := finiteRange(samples, tracers)
	if !ok {
		return nil, nil, ErrNoData
	}
	span := hi - lo
	if span == 0 {
		return nil, nil, fmt.Errorf("%w: data have zero range", ErrBadParams)
	}
	scale := func(v []float64) []float64 {
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = (x - lo) / span
		}
		return out
	}
	return scale(samples), scale(tracers), nil
}

// CombineMethod merges several weighting schemes.
type CombineMethod string

const (
	// Add combines in quadrature.
	Add      CombineMethod = "add"
	Multiply CombineMethod = "multiply"
)

// Combine merges weight sets of equal length. Independent schemes should be
// normalized first.
func Combine(sets [][]float64, method CombineMethod, normalize bool) ([]float64, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w: nothing to combine", ErrBadParams)
	}
	n := len(sets[0])
	for i, s := range sets {
		if len(s) != n {
			return nil, fmt.Errorf("%w: weight set %d has length %d, want %d", ErrBadParams, i, len(s), n)
		}
	}

	out := make([]float64, n)
	switch method {
	case Add:
		for _, s := range sets {
			for i, v := range s {
				out[i] += v * v
			}
		}
		for i := range out {
			out[i] = math.Sqrt(out[i])
		}
	case Multiply:
		for i := range out {
			out[i] = 1
		}
		for _, s := range sets {
			for i, v := range s {
				out[i] *= v
			}
		}
	default:
		return nil, fmt.Errorf("%w: combine %q", ErrUnknownMethod, method)
	}

	if normalize {
		Normalize(out)
	}
	return out, nil
}
