package weights

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KDE is a Gaussian kernel density estimate with Scott's bandwidth and
// optional per-point weights.
type KDE struct {
	points  *mat.Dense // n x d
	weights []float64  // sum to 1
	chol    mat.Cholesky
	norm    float64
	factor  float64
}

// NewKDE builds the estimate from points (one row per point, d columns).
// weights may be nil for equal weighting.
func NewKDE(points [][]float64, weights []float64) (*KDE, error) {
	n := len(points)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least two points, got %d", ErrBadParams, n)
	}
	d := len(points[0])
	if d == 0 {
		return nil, fmt.Errorf("%w: points have no dimensions", ErrBadParams)
	}
	data := mat.NewDense(n, d, nil)
	for i, p := range points {
		if len(p) != d {
			return nil, fmt.Errorf("%w: point %d has %d dimensions, want %d", ErrBadParams, i, len(p), d)
		}
		data.SetRow(i, p)
	}

	w := make([]float64, n)
	if weights == nil {
		for i := range w {
			w[i] = 1
		}
	} else {
		if len(weights) != n {
			return nil, fmt.Errorf("%w: %d weights for %d points", ErrBadParams, len(weights), n)
		}
		copy(w, weights)
	}
	var sum float64
	for _, v := range w {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: weights must be non-negative", ErrBadParams)
		}
		sum += v
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrBadParams)
	}
	var sumSq float64
	for i := range w {
		w[i] /= sum
		sumSq += w[i] * w[i]
	}
	neff := 1 / sumSq
	factor := math.Pow(neff, -1/float64(d+4))

	cov := weightedCovariance(data, w, sumSq)
	cov.ScaleSym(factor*factor, cov)

	k := &KDE{points: data, weights: w, factor: factor}
	if ok := k.chol.Factorize(cov); !ok {
		return nil, fmt.Errorf("%w: data covariance is singular", ErrBadParams)
	}
	k.norm = 1 / math.Sqrt(math.Pow(2*math.Pi, float64(d))*k.chol.Det())
	return k, nil
}

// weightedCovariance uses the reliability-weight correction 1 - sum(w^2),
// which reduces to n-1 for equal weights.
func weightedCovariance(data *mat.Dense, w []float64, sumSq float64) *mat.SymDense {
	n, d := data.Dims()
	mean := make([]float64, d)
	for j := 0; j < d; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, data), w)
	}
	cov := mat.NewSymDense(d, nil)
	diff := make([]float64, d)
	for i := 0; i < n; i++ {
		for j := range diff {
			diff[j] = data.At(i, j) - mean[j]
		}
		for a := 0; a < d; a++ {
			for b := a; b < d; b++ {
				cov.SetSym(a, b, cov.At(a, b)+w[i]*diff[a]*diff[b])
			}
		}
	}
	cov.ScaleSym(1/(1-sumSq), cov)
	return cov
}

// Factor is the bandwidth scale applied to the data covariance.
func (k *KDE) Factor() float64 { return k.factor }

// Prob evaluates the density at x.
func (k *KDE) Prob(x []float64) float64 {
	n, d := k.points.Dims()
	if len(x) != d {
		panic(fmt.Sprintf("weights: KDE of dimension %d evaluated at %d-vector", d, len(x)))
	}
	diff := mat.NewVecDense(d, nil)
	sol := mat.NewVecDense(d, nil)
	var p float64
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			diff.SetVec(j, x[j]-k.points.At(i, j))
		}
		if err := k.chol.SolveVecTo(sol, diff); err != nil {
			return math.NaN()
		}
		p += k.weights[i] * math.Exp(-0.5*mat.Dot(diff, sol))
	}
	return p * k.norm
}
