package sem

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// objective evaluates the maximum-likelihood discrepancy
//
//	F_ML(theta) = log|Sigma| + tr(S Sigma^-1) - log|S| - p
//
// and its analytic gradient. Values outside the positive-definite region
// return +Inf, which the backtracking line search treats as an
// unacceptable step.
type objective struct {
	ram       *ram
	sampleCov *mat.SymDense
	logDetS   float64
}

func newObjective(r *ram, sampleCov *mat.SymDense) (*objective, error) {
	var chol mat.Cholesky
	if !chol.Factorize(sampleCov) {
		return nil, &EstimationError{
			Code:    ErrCodeNotPositiveDefinite,
			Message: "sample covariance matrix is not positive definite",
		}
	}
	return &objective{
		ram:       r,
		sampleCov: sampleCov,
		logDetS:   chol.LogDet(),
	}, nil
}

// value computes F_ML at theta. Returns +Inf when Sigma(theta) is not
// positive definite.
func (o *objective) value(theta []float64) float64 {
	f, _, _, _ := o.eval(theta, false)
	return f
}

// gradient fills grad with dF_ML/dtheta at theta.
func (o *objective) gradient(grad, theta []float64) {
	_, g, _, _ := o.eval(theta, true)
	if g == nil {
		// Not positive definite: no usable direction. Zeros keep the
		// optimizer's line search backing off the step.
		for i := range grad {
			grad[i] = 0
		}
		return
	}
	copy(grad, g)
}

// eval computes the discrepancy and optionally the gradient, implied
// matrices included so callers after convergence can reuse them.
func (o *objective) eval(theta []float64, withGrad bool) (f float64, grad []float64, b, sigmaAll *mat.Dense) {
	b, sigmaAll, err := o.ram.implied(theta)
	if err != nil {
		return math.Inf(1), nil, nil, nil
	}
	sigma := o.ram.observed(sigmaAll)

	var chol mat.Cholesky
	if !chol.Factorize(sigma) {
		return math.Inf(1), nil, nil, nil
	}

	p := o.ram.p
	var sigmaInv mat.SymDense
	if err := chol.InverseTo(&sigmaInv); err != nil {
		return math.Inf(1), nil, nil, nil
	}

	// tr(S Sigma^-1)
	var trace float64
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			trace += o.sampleCov.At(i, j) * sigmaInv.At(j, i)
		}
	}

	f = chol.LogDet() + trace - o.logDetS - float64(p)
	if math.IsNaN(f) {
		return math.Inf(1), nil, nil, nil
	}
	if !withGrad {
		return f, nil, b, sigmaAll
	}

	// dF/dtheta_t = tr(Sigma^-1 (Sigma - S) Sigma^-1 dSigma_t)
	diff := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			diff.Set(i, j, sigma.At(i, j)-o.sampleCov.At(i, j))
		}
	}
	var tmp, inner mat.Dense
	tmp.Mul(&sigmaInv, diff)
	inner.Mul(&tmp, &sigmaInv)

	grad = make([]float64, len(theta))
	for t := range theta {
		d := o.ram.dSigma(t, b, sigmaAll)
		var tr float64
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				tr += inner.At(i, j) * d.At(j, i)
			}
		}
		grad[t] = tr
	}
	return f, grad, b, sigmaAll
}
