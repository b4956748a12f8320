// Package sem fits structural equation models by maximum likelihood with
// optional robust (Satorra-Bentler) corrections, and derives fit indices,
// standardized solutions and R-squared values from the fitted model.
//
// The estimator consumes a complete observation matrix and a model.Spec.
// Estimation is deterministic: fixed start values and a quasi-Newton
// minimizer mean identical input always produces bit-identical estimates.
package sem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/model"
)

// Options configures a fit.
type Options struct {
	// Estimator selects ML or MLM. Defaults to MLM.
	Estimator Estimator

	// MaxIterations bounds the optimizer. Defaults to 500.
	MaxIterations int

	// GradientTolerance is the convergence criterion on the gradient
	// infinity norm. Defaults to 1e-8.
	GradientTolerance float64
}

func (o *Options) defaults() {
	if o.Estimator == "" {
		o.Estimator = EstimatorMLM
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 500
	}
	if o.GradientTolerance == 0 {
		o.GradientTolerance = 1e-8
	}
}

// Fit estimates the model on the table's data. The table must contain every
// indicator named by the spec; extra columns are ignored.
func Fit(tbl *dataset.Table, spec *model.Spec, opts Options) (*Result, error) {
	opts.defaults()

	if verrs := spec.Validate(); len(verrs) > 0 {
		if verrs[0].Code == model.ErrUnderIdentified {
			return nil, newUnderIdentifiedError(len(spec.FreeParameters()), spec.SampleMoments())
		}
		return nil, fmt.Errorf("invalid model: %w", verrs[0])
	}

	data, err := tbl.Select(spec.Indicators())
	if err != nil {
		return nil, &EstimationError{Code: ErrCodeBadData, Message: err.Error()}
	}
	n := data.N()
	p := len(spec.Indicators())
	if n <= p {
		return nil, &EstimationError{
			Code:    ErrCodeBadData,
			Message: fmt.Sprintf("need more observations (%d) than indicators (%d)", n, p),
		}
	}

	r, err := newRAM(spec)
	if err != nil {
		return nil, err
	}
	sampleCov := data.CovarianceMatrix()
	obj, err := newObjective(r, sampleCov)
	if err != nil {
		return nil, err
	}

	theta, iterations, err := minimize(obj, r.startValues(sampleCov), &opts)
	if err != nil {
		return nil, err
	}

	// Admissibility: variances must be non-negative.
	for t, prm := range r.params {
		switch prm.Kind {
		case model.KindResidualVariance, model.KindLatentVariance:
			if theta[t] < 0 {
				return nil, &EstimationError{
					Code:      ErrCodeNegativeVariance,
					Message:   fmt.Sprintf("inadmissible solution: variance estimate %g", theta[t]),
					Parameter: prm.Label(),
				}
			}
		}
	}

	fval, _, b, sigmaAll := obj.eval(theta, false)
	if math.IsInf(fval, 1) {
		return nil, &EstimationError{
			Code:    ErrCodeNotPositiveDefinite,
			Message: "model-implied covariance matrix is not positive definite at the solution",
		}
	}
	implied := r.observed(sigmaAll)

	nMult := float64(n - 1)
	df := spec.DegreesOfFreedom()
	chiSq := nMult * fval

	robust := opts.Estimator == EstimatorMLM
	var gamma *mat.Dense
	if robust {
		gamma = adfGamma(data.Matrix())
	}
	v, err := normalWeight(implied)
	if err != nil {
		return nil, &EstimationError{Code: ErrCodeNotPositiveDefinite, Message: err.Error()}
	}
	delta := r.delta(theta, b, sigmaAll)

	sb, err := satorraBentler(delta, v, gamma, df)
	if err != nil {
		return nil, err
	}
	se, acov := sb.standardErrors(delta, v, gamma, nMult, robust)

	fit, err := assembleFit(chiSq, df, sb.scaling, sampleCov, implied, gamma, nMult, robust)
	if err != nil {
		return nil, err
	}

	params := make([]ParameterEstimate, len(r.params))
	for t, prm := range r.params {
		z := math.NaN()
		pv := math.NaN()
		if se[t] > 0 {
			z = theta[t] / se[t]
			pv = 2 * distuv.UnitNormal.Survival(math.Abs(z))
		}
		params[t] = ParameterEstimate{
			Param:   prm,
			Est:     theta[t],
			SE:      se[t],
			Z:       z,
			PValue:  pv,
			CILower: theta[t] - z975*se[t],
			CIUpper: theta[t] + z975*se[t],
		}
	}

	measurement, structural, rsq, err := r.standardized(theta, acov)
	if err != nil {
		return nil, err
	}

	return &Result{
		Spec:        spec,
		Estimator:   opts.Estimator,
		N:           n,
		Theta:       theta,
		Parameters:  params,
		Measurement: measurement,
		Structural:  structural,
		RSquared:    rsq,
		Fit:         *fit,
		Discrepancy: fval,
		Iterations:  iterations,
		sampleCov:   sampleCov,
		impliedCov:  implied,
	}, nil
}

// minimize runs BFGS with a backtracking line search from the deterministic
// start point.
func minimize(obj *objective, start []float64, opts *Options) ([]float64, int, error) {
	problem := optimize.Problem{
		Func: obj.value,
		Grad: obj.gradient,
	}
	settings := &optimize.Settings{
		GradientThreshold: opts.GradientTolerance,
		MajorIterations:   opts.MaxIterations,
	}
	method := &optimize.BFGS{
		Linesearcher: &optimize.Backtracking{},
	}

	result, err := optimize.Minimize(problem, start, settings, method)
	if result == nil {
		return nil, 0, newNotConvergedError(0, math.NaN())
	}

	grad := make([]float64, len(result.X))
	obj.gradient(grad, result.X)
	gradNorm := floats.Norm(grad, math.Inf(1))

	// GradientThreshold is the primary criterion. A function-convergence
	// stop is accepted when the gradient is small in absolute terms, which
	// happens when the last improving steps fall below the relative
	// function tolerance just short of the gradient threshold.
	converged := result.Status == optimize.GradientThreshold ||
		gradNorm <= opts.GradientTolerance ||
		(result.Status == optimize.FunctionConvergence && gradNorm <= 1e-4)
	if !converged {
		ncErr := newNotConvergedError(result.Stats.MajorIterations, gradNorm)
		if err != nil {
			ncErr.Details["optimizer_error"] = err.Error()
		}
		return nil, 0, ncErr
	}
	return result.X, result.Stats.MajorIterations, nil
}

// assembleFit derives the global fit statistics from the chi-squared
// statistic and the baseline model.
func assembleFit(chiSq float64, df int, scaling float64, sampleCov, implied *mat.SymDense, gamma *mat.Dense, nMult float64, robust bool) (*FitIndices, error) {
	scaled := chiSq / scaling

	base, err := fitBaseline(sampleCov, gamma, nMult, robust)
	if err != nil {
		return nil, err
	}

	rmsea, lo, hi, pclose := rmseaInterval(scaled, df, nMult)
	cfi, tli := incrementalIndices(scaled, df, base.scaled, base.df)

	return &FitIndices{
		ChiSquare:     chiSq,
		DF:            df,
		PValue:        chiSquaredSurvival(chiSq, df),
		ScalingFactor: scaling,
		ScaledChiSq:   scaled,
		ScaledPValue:  chiSquaredSurvival(scaled, df),
		RMSEA:         rmsea,
		RMSEALower:    lo,
		RMSEAUpper:    hi,
		RMSEAPClose:   pclose,
		CFI:           cfi,
		TLI:           tli,
		SRMR:          srmr(sampleCov, implied),
		BaselineChiSq: base.scaled,
		BaselineDF:    base.df,
	}, nil
}
