package viz

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/kicksim/internal/orbit"
)

var ErrNothingToPlot = errors.New("viz: no finite values to plot")

// Histogram bins the finite values of x into bins equal-width bins and
// returns the bin edges (bins+1) and counts.
func Histogram(x []float64, bins int) (edges, counts []float64, err error) {
	if bins < 1 {
		return nil, nil, fmt.Errorf("viz: %d bins", bins)
	}
	var vals []float64
	for _, v := range x {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return nil, nil, ErrNothingToPlot
	}
	sort.Float64s(vals)

	lo, hi := vals[0], vals[len(vals)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges = floats.Span(make([]float64, bins+1), lo, hi)
	// the top edge is exclusive
	edges[bins] = math.Nextafter(hi, math.Inf(1))

	counts = stat.Histogram(nil, edges, vals, nil)
	return edges, counts, nil
}

// OffsetHistogram plots the distribution of log10 projected offsets in kpc.
// Non-positive offsets are left out.
func OffsetHistogram(offsets []float64, bins, width int) (string, error) {
	logs := make([]float64, 0, len(offsets))
	for _, r := range offsets {
		if r > 0 {
			logs = append(logs, math.Log10(r))
		}
	}
	edges, counts, err := Histogram(logs, bins)
	if err != nil {
		return "", err
	}
	caption := fmt.Sprintf("log10 projected offset [kpc] from %.2f to %.2f (%d systems)",
		edges[0], edges[len(edges)-1], len(logs))
	return asciigraph.Plot(counts,
		asciigraph.Height(12),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	), nil
}

// RadiusCurve plots the galactocentric distance of one trajectory against
// time.
func RadiusCurve(rows []orbit.Row, width int) (string, error) {
	r := make([]float64, 0, len(rows))
	for _, row := range rows {
		if !math.IsNaN(row.ROffset) {
			r = append(r, row.ROffset)
		}
	}
	if len(r) == 0 {
		return "", ErrNothingToPlot
	}
	caption := fmt.Sprintf("R [kpc] from %.3g to %.3g Gyr", rows[0].Time, rows[len(rows)-1].Time)
	return asciigraph.Plot(r,
		asciigraph.Height(12),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	), nil
}
