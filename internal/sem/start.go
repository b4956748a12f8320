package sem

import (
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/semfit/internal/model"
)

// startValues produces the deterministic starting vector for the optimizer.
//
// Loadings start at 1, regressions and covariances at 0, indicator residual
// variances at half the sample variance, and latent variances at half the
// marker indicator's sample variance. The rule is fixed so that identical
// data and model text always start (and therefore end) at identical points.
func (r *ram) startValues(sampleCov *mat.SymDense) []float64 {
	theta := make([]float64, len(r.params))

	markerVar := make(map[string]float64, r.m)
	for _, l := range r.spec.Latents {
		mi := r.index[l.Indicators[0]]
		markerVar[l.Name] = sampleCov.At(mi, mi)
	}

	for t, prm := range r.params {
		switch prm.Kind {
		case model.KindLoading:
			theta[t] = 1
		case model.KindRegression:
			theta[t] = 0
		case model.KindResidualVariance:
			i := r.index[prm.Lhs]
			theta[t] = 0.5 * sampleCov.At(i, i)
		case model.KindLatentVariance:
			theta[t] = 0.5 * markerVar[prm.Lhs]
		case model.KindResidualCovariance, model.KindLatentCovariance:
			theta[t] = 0
		}
	}
	return theta
}
