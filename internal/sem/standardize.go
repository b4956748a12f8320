package sem

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/semfit/internal/model"
)

// z975 is the .975 standard normal quantile used for 95% intervals.
const z975 = 1.959963984540054

// thetaIndex returns the position of a free parameter in theta, or -1 for
// fixed parameters (marker loadings).
func (r *ram) thetaIndex(kind model.ParamKind, lhs, rhs string) int {
	for t, p := range r.params {
		if p.Kind == kind && p.Lhs == lhs && p.Rhs == rhs {
			return t
		}
	}
	return -1
}

// standardizedVector evaluates every standardized estimate as a smooth
// function of theta: first the standardized loading of each indicator in
// canonical order, then each structural path in source order.
//
// A standardized loading is lambda * sd(latent) / sd(indicator); a
// standardized path is b * sd(predictor) / sd(outcome), with all variances
// taken from the implied full-variable covariance so endogenous latent
// variances include the structural part.
func (r *ram) standardizedVector(theta []float64) ([]float64, error) {
	a, _ := r.matrices(theta)
	_, sigmaAll, err := r.implied(theta)
	if err != nil {
		return nil, err
	}

	var out []float64
	for _, l := range r.spec.Latents {
		li := r.index[l.Name]
		for _, ind := range l.Indicators {
			ii := r.index[ind]
			lambda := a.At(ii, li)
			out = append(out, lambda*math.Sqrt(sigmaAll.At(li, li)/sigmaAll.At(ii, ii)))
		}
	}
	for _, p := range r.spec.Paths {
		oi := r.index[p.Outcome]
		xi := r.index[p.Predictor]
		b := a.At(oi, xi)
		out = append(out, b*math.Sqrt(sigmaAll.At(xi, xi)/sigmaAll.At(oi, oi)))
	}
	return out, nil
}

// standardized builds the measurement and structural tables plus R-squared
// values at the solution, with delta-method standard errors propagated from
// the parameter covariance acov.
func (r *ram) standardized(theta []float64, acov *mat.SymDense) (measurement, structural []StdEstimate, rsq []RSquare, err error) {
	std, err := r.standardizedVector(theta)
	if err != nil {
		return nil, nil, nil, err
	}

	// Numeric Jacobian of the standardized vector, central differences.
	q := len(theta)
	jac := mat.NewDense(len(std), q, nil)
	work := append([]float64(nil), theta...)
	for t := 0; t < q; t++ {
		h := 1e-6 * math.Max(1, math.Abs(theta[t]))
		work[t] = theta[t] + h
		up, err := r.standardizedVector(work)
		if err != nil {
			return nil, nil, nil, err
		}
		work[t] = theta[t] - h
		down, err := r.standardizedVector(work)
		if err != nil {
			return nil, nil, nil, err
		}
		work[t] = theta[t]
		for k := range std {
			jac.Set(k, t, (up[k]-down[k])/(2*h))
		}
	}

	se := make([]float64, len(std))
	row := make([]float64, q)
	tmp := make([]float64, q)
	for k := range std {
		mat.Row(row, k, jac)
		for i := 0; i < q; i++ {
			var s float64
			for j := 0; j < q; j++ {
				s += acov.At(i, j) * row[j]
			}
			tmp[i] = s
		}
		var v float64
		for i := 0; i < q; i++ {
			v += row[i] * tmp[i]
		}
		se[k] = math.Sqrt(math.Max(v, 0))
	}

	entry := func(k int, lhs, op, rhs string, est float64) StdEstimate {
		z := math.NaN()
		p := math.NaN()
		if se[k] > 0 {
			z = std[k] / se[k]
			p = 2 * distuv.UnitNormal.Survival(math.Abs(z))
		}
		return StdEstimate{
			Lhs: lhs, Op: op, Rhs: rhs,
			Est:     est,
			Std:     std[k],
			SE:      se[k],
			Z:       z,
			PValue:  p,
			CILower: std[k] - z975*se[k],
			CIUpper: std[k] + z975*se[k],
		}
	}

	k := 0
	for _, l := range r.spec.Latents {
		for n, ind := range l.Indicators {
			est := 1.0
			if n > 0 {
				est = theta[r.thetaIndex(model.KindLoading, l.Name, ind)]
			}
			measurement = append(measurement, entry(k, l.Name, "=~", ind, est))
			k++
		}
	}
	for _, p := range r.spec.Paths {
		est := theta[r.thetaIndex(model.KindRegression, p.Outcome, p.Predictor)]
		structural = append(structural, entry(k, p.Outcome, "~", p.Predictor, est))
		k++
	}

	// R-squared: indicators from residual variance against implied total,
	// endogenous latents from disturbance against implied latent variance.
	_, sigmaAll, err := r.implied(theta)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, ind := range r.spec.Indicators() {
		ii := r.index[ind]
		resid := theta[r.thetaIndex(model.KindResidualVariance, ind, ind)]
		rsq = append(rsq, RSquare{
			Variable: ind,
			R2:       1 - resid/sigmaAll.At(ii, ii),
		})
	}
	for _, name := range r.spec.Endogenous() {
		li := r.index[name]
		psi := theta[r.thetaIndex(model.KindLatentVariance, name, name)]
		rsq = append(rsq, RSquare{
			Variable: name,
			Latent:   true,
			R2:       1 - psi/sigmaAll.At(li, li),
		})
	}

	return measurement, structural, rsq, nil
}
