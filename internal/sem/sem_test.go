package sem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/model"
	"github.com/roach88/semfit/internal/testutil"
)

// attitudesSpec mirrors the four-factor survey model: three correlated
// exogenous latents predicting one endogenous latent, two indicators each.
func attitudesSpec() *model.Spec {
	return &model.Spec{
		Latents: []model.LatentDef{
			{Name: "attitudes", Indicators: []string{"sex.fool", "sex.harm"}},
			{Name: "norms", Indicators: []string{"frnd.sex", "love.sex"}},
			{Name: "control", Indicators: []string{"self.cntl", "how.ref"}},
			{Name: "intention", Indicators: []string{"int.abs", "int.avoid"}},
		},
		Paths: []model.Path{
			{Outcome: "intention", Predictor: "attitudes"},
			{Outcome: "intention", Predictor: "norms"},
			{Outcome: "intention", Predictor: "control"},
		},
	}
}

// attitudesTheta is a population parameter vector for attitudesSpec in
// canonical free-parameter order: 4 loadings, 3 regressions, 8 residual
// variances, 4 latent variances, 3 exogenous covariances.
func attitudesTheta() []float64 {
	return []float64{
		0.9, 1.1, 0.8, 1.05,
		-0.2, -0.65, 0.3,
		0.5, 0.4, 0.6, 0.5, 0.7, 0.6, 0.4, 0.5,
		1.0, 0.9, 1.1, 0.5,
		0.4, 0.3, 0.2,
	}
}

// populationCov builds the model-implied covariance at attitudesTheta.
func populationCov(t *testing.T) (*ram, *mat.SymDense) {
	t.Helper()
	r, err := newRAM(attitudesSpec())
	require.NoError(t, err)
	_, sigmaAll, err := r.implied(attitudesTheta())
	require.NoError(t, err)
	return r, r.observed(sigmaAll)
}

func populationTable(t *testing.T, seed uint64, n int) *dataset.Table {
	t.Helper()
	_, sigma := populationCov(t)
	x := testutil.ExactCovarianceSample(seed, n, sigma)
	tbl, err := dataset.New(attitudesSpec().Indicators(), x)
	require.NoError(t, err)
	return tbl
}

func TestRAM_DSigma_MatchesFiniteDifferences(t *testing.T) {
	r, err := newRAM(attitudesSpec())
	require.NoError(t, err)
	theta := attitudesTheta()

	b, sigmaAll, err := r.implied(theta)
	require.NoError(t, err)

	const h = 1e-7
	work := append([]float64(nil), theta...)
	for pi := range theta {
		analytic := r.dSigma(pi, b, sigmaAll)

		work[pi] = theta[pi] + h
		_, upAll, err := r.implied(work)
		require.NoError(t, err)
		up := r.observed(upAll)
		work[pi] = theta[pi] - h
		_, downAll, err := r.implied(work)
		require.NoError(t, err)
		down := r.observed(downAll)
		work[pi] = theta[pi]

		for i := 0; i < r.p; i++ {
			for j := i; j < r.p; j++ {
				numeric := (up.At(i, j) - down.At(i, j)) / (2 * h)
				assert.InDelta(t, numeric, analytic.At(i, j), 1e-5,
					"parameter %s cell (%d,%d)", r.params[pi].Label(), i, j)
			}
		}
	}
}

func TestObjective_GradientMatchesFiniteDifferences(t *testing.T) {
	r, sigma := populationCov(t)

	// Perturbed sample covariance so the gradient is not zero.
	perturbed := mat.NewSymDense(r.p, nil)
	for i := 0; i < r.p; i++ {
		for j := i; j < r.p; j++ {
			v := sigma.At(i, j)
			if i == j {
				v *= 1.1
			} else {
				v *= 0.95
			}
			perturbed.SetSym(i, j, v)
		}
	}
	obj, err := newObjective(r, perturbed)
	require.NoError(t, err)

	theta := attitudesTheta()
	grad := make([]float64, len(theta))
	obj.gradient(grad, theta)

	const h = 1e-6
	work := append([]float64(nil), theta...)
	for i := range theta {
		work[i] = theta[i] + h
		up := obj.value(work)
		work[i] = theta[i] - h
		down := obj.value(work)
		work[i] = theta[i]
		assert.InDelta(t, (up-down)/(2*h), grad[i], 1e-5,
			"gradient of %s", r.params[i].Label())
	}
}

func TestFit_ExactRecovery(t *testing.T) {
	tbl := populationTable(t, 99, 300)

	res, err := Fit(tbl, attitudesSpec(), Options{Estimator: EstimatorMLM})
	require.NoError(t, err)

	assert.Equal(t, 14, res.Fit.DF)
	assert.InDelta(t, 0, res.Fit.ChiSquare, 1e-3, "exact-covariance data must fit perfectly")
	assert.InDelta(t, 0, res.Fit.RMSEA, 1e-3)
	assert.InDelta(t, 1, res.Fit.CFI, 1e-6)
	assert.InDelta(t, 0, res.Fit.SRMR, 1e-4)

	want := attitudesTheta()
	require.Len(t, res.Theta, len(want))
	for i := range want {
		assert.InDelta(t, want[i], res.Theta[i], 1e-3,
			"parameter %s", res.Parameters[i].Param.Label())
	}
}

func TestFit_StandardizedSolution(t *testing.T) {
	tbl := populationTable(t, 17, 400)

	res, err := Fit(tbl, attitudesSpec(), Options{Estimator: EstimatorMLM})
	require.NoError(t, err)

	require.Len(t, res.Measurement, 8)
	for _, m := range res.Measurement {
		assert.Greater(t, m.Std, 0.0, "loading %s =~ %s", m.Lhs, m.Rhs)
		assert.LessOrEqual(t, m.Std, 1.0)
		assert.Greater(t, m.SE, 0.0)
		assert.Less(t, m.CILower, m.Std)
		assert.Greater(t, m.CIUpper, m.Std)
	}

	// Indicator R-squared equals the squared standardized loading under
	// simple structure.
	byName := make(map[string]float64)
	for _, m := range res.Measurement {
		byName[m.Rhs] = m.Std
	}
	for _, r2 := range res.RSquared {
		if r2.Latent {
			continue
		}
		std := byName[r2.Variable]
		assert.InDelta(t, std*std, r2.R2, 1e-6, "R2 of %s", r2.Variable)
	}

	require.Len(t, res.Structural, 3)
	norms := res.Structural[1]
	assert.Equal(t, "norms", norms.Rhs)
	assert.Less(t, norms.Std, 0.0)
	assert.Less(t, norms.PValue, 0.05, "norms path is large and must be significant")

	// Endogenous latent R-squared present and inside (0,1).
	var found bool
	for _, r2 := range res.RSquared {
		if r2.Latent {
			found = true
			assert.Equal(t, "intention", r2.Variable)
			assert.Greater(t, r2.R2, 0.0)
			assert.Less(t, r2.R2, 1.0)
		}
	}
	assert.True(t, found)
}

func TestFit_Deterministic(t *testing.T) {
	tbl := populationTable(t, 5, 250)
	spec := attitudesSpec()

	a, err := Fit(tbl, spec, Options{Estimator: EstimatorMLM})
	require.NoError(t, err)
	b, err := Fit(tbl, attitudesSpec(), Options{Estimator: EstimatorMLM})
	require.NoError(t, err)

	// Bit-for-bit equality, not approximate equality.
	assert.Equal(t, a.Theta, b.Theta)
	assert.Equal(t, a.Fit, b.Fit)
}

func TestFit_ScalingFactorNearOneUnderNormality(t *testing.T) {
	_, sigma := populationCov(t)
	x := testutil.MultivariateNormalSample(123, 800, sigma)
	tbl, err := dataset.New(attitudesSpec().Indicators(), x)
	require.NoError(t, err)

	res, err := Fit(tbl, attitudesSpec(), Options{Estimator: EstimatorMLM})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.Fit.ScalingFactor, 0.25,
		"Satorra-Bentler correction should be mild for multivariate normal data")
	assert.Greater(t, res.Fit.CFI, 0.95, "correctly specified model must fit")
	assert.Less(t, res.Fit.SRMR, 0.05)
}

func TestFit_MLMatchesMLMPointEstimates(t *testing.T) {
	tbl := populationTable(t, 61, 300)

	mlm, err := Fit(tbl, attitudesSpec(), Options{Estimator: EstimatorMLM})
	require.NoError(t, err)
	ml, err := Fit(tbl, attitudesSpec(), Options{Estimator: EstimatorML})
	require.NoError(t, err)

	// Same minimizer, same start: identical point estimates; only the
	// standard errors and scaling differ.
	assert.Equal(t, mlm.Theta, ml.Theta)
	assert.Equal(t, 1.0, ml.Fit.ScalingFactor)
	assert.Equal(t, ml.Fit.ChiSquare, ml.Fit.ScaledChiSq)
}

func TestFit_Errors(t *testing.T) {
	tbl := populationTable(t, 7, 100)

	t.Run("missing column", func(t *testing.T) {
		spec := attitudesSpec()
		spec.Latents[0].Indicators[0] = "ghost"
		_, err := Fit(tbl, spec, Options{})
		require.Error(t, err)

		var ee *EstimationError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, ErrCodeBadData, ee.Code)
	})

	t.Run("under identified", func(t *testing.T) {
		spec := &model.Spec{Latents: []model.LatentDef{
			{Name: "f", Indicators: []string{"sex.fool", "sex.harm"}},
		}}
		_, err := Fit(tbl, spec, Options{})
		require.Error(t, err)

		var ee *EstimationError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, ErrCodeUnderIdentified, ee.Code)
	})

	t.Run("too few rows", func(t *testing.T) {
		small := populationTable(t, 9, 20)
		sel, err := small.Select(attitudesSpec().Indicators())
		require.NoError(t, err)
		rows := sel.Matrix().Slice(0, 6, 0, 8).(*mat.Dense)
		tiny, err := dataset.New(attitudesSpec().Indicators(), mat.DenseCopyOf(rows))
		require.NoError(t, err)

		_, err = Fit(tiny, attitudesSpec(), Options{})
		require.Error(t, err)

		var ee *EstimationError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, ErrCodeBadData, ee.Code)
	})
}

func TestEstimationError_Helpers(t *testing.T) {
	assert.True(t, IsConvergenceError(newNotConvergedError(10, 0.5)))
	assert.False(t, IsConvergenceError(assert.AnError))

	assert.True(t, IsInadmissible(&EstimationError{Code: ErrCodeNegativeVariance}))
	assert.True(t, IsInadmissible(&EstimationError{Code: ErrCodeNotPositiveDefinite}))
	assert.False(t, IsInadmissible(newNotConvergedError(10, 0.5)))
}
