package model

import "fmt"

// ParamKind identifies which cell of the RAM matrices a free parameter
// occupies.
type ParamKind string

const (
	// KindLoading is a free factor loading (marker loadings are fixed, not
	// enumerated).
	KindLoading ParamKind = "loading"

	// KindRegression is a structural coefficient between latents.
	KindRegression ParamKind = "regression"

	// KindResidualVariance is the residual variance of an indicator.
	KindResidualVariance ParamKind = "residual_variance"

	// KindResidualCovariance is an explicitly declared covariance between
	// two indicator residuals.
	KindResidualCovariance ParamKind = "residual_covariance"

	// KindLatentVariance is the variance of an exogenous latent, or the
	// disturbance variance of an endogenous latent.
	KindLatentVariance ParamKind = "latent_variance"

	// KindLatentCovariance is a covariance between two exogenous latents.
	KindLatentCovariance ParamKind = "latent_covariance"
)

// Param is one free parameter of the model.
//
// Lhs op Rhs reads in lavaan direction: "attitudes =~ sex.harm" for a
// loading, "intention ~ norms" for a regression, "sex.fool ~~ sex.fool" for
// a variance.
type Param struct {
	Kind ParamKind `json:"kind"`
	Lhs  string    `json:"lhs"`
	Op   string    `json:"op"`
	Rhs  string    `json:"rhs"`
}

// Label returns the lavaan-style label for the parameter.
func (p Param) Label() string {
	return fmt.Sprintf("%s %s %s", p.Lhs, p.Op, p.Rhs)
}

// FreeParameters enumerates every free parameter in canonical order:
//
//  1. non-marker loadings, latent by latent
//  2. regression paths in source order
//  3. indicator residual variances in indicator order
//  4. declared residual covariances in source order
//  5. latent variances in declaration order (disturbances for endogenous)
//  6. covariances among exogenous latents, upper triangle in declaration
//     order (exogenous latent blocks are saturated by default)
//
// The order is part of the estimator contract: the parameter vector theta is
// laid out exactly like this slice.
func (s *Spec) FreeParameters() []Param {
	var params []Param

	for _, l := range s.Latents {
		for _, ind := range l.Indicators[1:] {
			params = append(params, Param{Kind: KindLoading, Lhs: l.Name, Op: "=~", Rhs: ind})
		}
	}

	for _, p := range s.Paths {
		params = append(params, Param{Kind: KindRegression, Lhs: p.Outcome, Op: "~", Rhs: p.Predictor})
	}

	for _, ind := range s.Indicators() {
		params = append(params, Param{Kind: KindResidualVariance, Lhs: ind, Op: "~~", Rhs: ind})
	}

	for _, c := range s.Covariances {
		if s.IsLatent(c.A) || s.IsLatent(c.B) {
			// Latent covariances are already free by default; explicit
			// declarations are documentation, not extra parameters.
			continue
		}
		params = append(params, Param{Kind: KindResidualCovariance, Lhs: c.A, Op: "~~", Rhs: c.B})
	}

	for _, l := range s.Latents {
		params = append(params, Param{Kind: KindLatentVariance, Lhs: l.Name, Op: "~~", Rhs: l.Name})
	}

	exo := s.Exogenous()
	for i := 0; i < len(exo); i++ {
		for j := i + 1; j < len(exo); j++ {
			params = append(params, Param{Kind: KindLatentCovariance, Lhs: exo[i], Op: "~~", Rhs: exo[j]})
		}
	}

	return params
}

// SampleMoments returns the number of distinct observed variances and
// covariances, p(p+1)/2 for p indicators.
func (s *Spec) SampleMoments() int {
	p := len(s.Indicators())
	return p * (p + 1) / 2
}

// DegreesOfFreedom returns sample moments minus free parameters. Negative
// values mean the model is under-identified.
func (s *Spec) DegreesOfFreedom() int {
	return s.SampleMoments() - len(s.FreeParameters())
}
