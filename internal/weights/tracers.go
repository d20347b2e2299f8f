package weights

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultMinTinsp is the inspiral time in Gyr below which the power-law
// weight saturates at 1.
const DefaultMinTinsp = 0.01

// Tinsp weights systems by p(t) ∝ t^index, scaled so t = minTinsp has
// weight 1 and capped there. Disrupted systems (NaN) stay NaN.
func Tinsp(tinsp []float64, index, minTinsp float64, normalize bool) ([]float64, error) {
	if !(minTinsp > 0) {
		return nil, fmt.Errorf("%w: minimum inspiral time must be positive, got %g", ErrBadParams, minTinsp)
	}
	norm := math.Pow(minTinsp, index)
	w := make([]float64, len(tinsp))
	for i, t := range tinsp {
		w[i] = math.Min(math.Pow(t, index)/norm, 1)
		if math.IsNaN(t) {
			w[i] = math.NaN()
		}
	}
	if normalize {
		Normalize(w)
	}
	return w, nil
}

// VsysMethod selects the systemic-velocity prior.
type VsysMethod string

const (
	// FlatInLog is flat in log(Vsys) above params[0] and constant below.
	FlatInLog VsysMethod = "flat_in_log"
	// Maxwellian has scale params[0].
	Maxwellian VsysMethod = "maxwellian"
	// Gaussian has mean params[0] and sigma params[1].
	Gaussian VsysMethod = "gaussian"
)

// DefaultMaxwellScale is the Hobbs et al. pulsar kick dispersion in km/s.
const DefaultMaxwellScale = 265.0

func ParseVsysMethod(s string) (VsysMethod, error) {
	switch m := VsysMethod(s); m {
	case FlatInLog, Maxwellian, Gaussian:
		return m, nil
	}
	return "", fmt.Errorf("%w: vsys method %q", ErrUnknownMethod, s)
}

// Vsys weights systems by a prior on their systemic velocity (km/s).
func Vsys(vsys []float64, method VsysMethod, params []float64, normalize bool) ([]float64, error) {
	var w []float64
	switch method {
	case FlatInLog:
		if len(params) != 1 || !(params[0] > 0) {
			return nil, fmt.Errorf("%w: flat_in_log needs one positive threshold", ErrBadParams)
		}
		var err error
		if w, err = flatInLog(vsys, params[0]); err != nil {
			return nil, err
		}
	case Maxwellian:
		if len(params) != 1 || !(params[0] > 0) {
			return nil, fmt.Errorf("%w: maxwellian needs one positive scale", ErrBadParams)
		}
		w = make([]float64, len(vsys))
		for i, v := range vsys {
			w[i] = maxwellPDF(v, params[0])
		}
	case Gaussian:
		if len(params) != 2 || !(params[1] > 0) {
			return nil, fmt.Errorf("%w: gaussian needs (mean, sigma) with sigma > 0", ErrBadParams)
		}
		dist := distuv.Normal{Mu: params[0], Sigma: params[1]}
		w = make([]float64, len(vsys))
		for i, v := range vsys {
			w[i] = dist.Prob(v)
		}
	default:
		return nil, fmt.Errorf("%w: vsys method %q", ErrUnknownMethod, method)
	}
	if normalize {
		Normalize(w)
	}
	return w, nil
}

// maxwellPDF is the Maxwell-Boltzmann density with scale a. v/a squared is
// chi-squared with three degrees of freedom.
func maxwellPDF(v, a float64) float64 {
	if v < 0 {
		return 0
	}
	chi2 := distuv.ChiSquared{K: 3}
	return chi2.Prob(v*v/(a*a)) * 2 * v / (a * a)
}

const (
	flatLogBins    = 100
	flatLogSamples = 100000
	flatLogCeiling = 1000.0
)

// flatInLog reproduces a 100-bin linear histogram of points spaced
// uniformly in log between xmin and the largest velocity, interpolated
// linearly between bin edges. Bin counts use their expectation.
func flatInLog(vsys []float64, xmin float64) ([]float64, error) {
	_, xmax, ok := finiteRange(vsys)
	if !ok {
		return nil, ErrNoData
	}
	if xmax <= xmin {
		return nil, fmt.Errorf("%w: flat_in_log threshold %g must be below the largest velocity %g", ErrBadParams, xmin, xmax)
	}

	edges := floats.Span(make([]float64, flatLogBins+1), xmin, xmax)
	counts := make([]float64, flatLogBins+1)
	logSpan := math.Log(xmax / xmin)
	for i := 0; i < flatLogBins; i++ {
		counts[i] = flatLogSamples * math.Log(edges[i+1]/edges[i]) / logSpan
	}
	counts[flatLogBins] = counts[flatLogBins-1]
	edges[flatLogBins] = math.Max(flatLogCeiling, xmax)

	w := make([]float64, len(vsys))
	for i, v := range vsys {
		switch {
		case math.IsNaN(v):
			w[i] = math.NaN()
		case v < xmin:
			w[i] = counts[0]
		default:
			w[i] = interpolate(edges, counts, v)
		}
	}
	return w, nil
}

func interpolate(xs, ys []float64, x float64) float64 {
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	j := floats.Within(xs, x)
	if j < 0 {
		return ys[0]
	}
	f := (x - xs[j]) / (xs[j+1] - xs[j])
	return ys[j] + f*(ys[j+1]-ys[j])
}

// Observations weights systems by a Gaussian in projected offset (kpc)
// centred on the observed offset. Systems more than ten sigma away, or
// without an offset, get zero.
func Observations(rproj []float64, offset, sigma float64, normalize bool) ([]float64, error) {
	if !(sigma > 0) {
		return nil, fmt.Errorf("%w: offset error must be positive, got %g", ErrBadParams, sigma)
	}
	w := offsetKernel(rproj, offset, sigma, 10)
	if normalize {
		Normalize(w)
	}
	return w, nil
}

func offsetKernel(rproj []float64, offset, sigma, window float64) []float64 {
	dist := distuv.Normal{Mu: offset, Sigma: sigma}
	w := make([]float64, len(rproj))
	for i, r := range rproj {
		if r >= offset-window*sigma && r <= offset+window*sigma {
			w[i] = dist.Prob(r)
		}
	}
	return w
}
