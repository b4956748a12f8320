package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semfit/internal/model"
	"github.com/roach88/semfit/internal/normality"
	"github.com/roach88/semfit/internal/sem"
)

// fixtureResult builds a fitted-model object by hand so rendering tests do
// not depend on estimation.
func fixtureResult() *sem.Result {
	return &sem.Result{
		Spec: &model.Spec{
			Latents: []model.LatentDef{
				{Name: "attitudes", Indicators: []string{"sex.fool", "sex.harm"}},
			},
		},
		Estimator:  sem.EstimatorMLM,
		N:          300,
		Iterations: 37,
		Measurement: []sem.StdEstimate{
			{Lhs: "attitudes", Op: "=~", Rhs: "sex.fool", Est: 1, Std: 0.876, SE: 0.032, Z: 27.38, PValue: 0.0001, CILower: 0.813, CIUpper: 0.939},
			{Lhs: "attitudes", Op: "=~", Rhs: "sex.harm", Est: 0.91, Std: 0.702, SE: 0.041, Z: 17.12, PValue: 0.0002, CILower: 0.622, CIUpper: 0.782},
		},
		Structural: []sem.StdEstimate{
			{Lhs: "intention", Op: "~", Rhs: "norms", Est: -0.61, Std: -0.667, SE: 0.085, Z: -7.85, PValue: 0.00001, CILower: -0.834, CIUpper: -0.500},
			{Lhs: "intention", Op: "~", Rhs: "attitudes", Est: -0.17, Std: -0.189, SE: 0.135, Z: -1.40, PValue: 0.161, CILower: -0.454, CIUpper: 0.076},
		},
		RSquared: []sem.RSquare{
			{Variable: "sex.fool", R2: 0.767},
			{Variable: "intention", Latent: true, R2: 0.559},
		},
		Fit: sem.FitIndices{
			ChiSquare: 25.043, DF: 14, PValue: 0.034,
			ScalingFactor: 1.051, ScaledChiSq: 23.827, ScaledPValue: 0.048,
			RMSEA: 0.045, RMSEALower: 0.010, RMSEAUpper: 0.073, RMSEAPClose: 0.591,
			CFI: 0.990, TLI: 0.980, SRMR: 0.021,
			BaselineChiSq: 617.312, BaselineDF: 28,
		},
	}
}

func TestWriteText_FullReport(t *testing.T) {
	rep := &Report{
		Title:    "Attitudes Toward Premarital Sex",
		DataFile: "survey.csv",
		N:        300,
		Alpha:    0.05,
		Univariate: []normality.UnivariateResult{
			{Variable: "sex.fool", W: 0.912, PValue: 0.0004, Normal: false},
			{Variable: "sex.harm", W: 0.991, PValue: 0.212, Normal: true},
		},
		Multivariate: &normality.MardiaResult{
			N: 300, Variables: 8,
			Skewness: 12.3, SkewStat: 615.0, SkewDF: 120, SkewP: 0.0001,
			Kurtosis: 86.2, KurtZ: 4.21, KurtP: 0.00002,
			Normal: false,
		},
		Result: fixtureResult(),
	}

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, "Attitudes Toward Premarital Sex")
	assert.Contains(t, out, "survey.csv (300 observations)")

	// Normality section and estimator recommendation.
	assert.Contains(t, out, "not normal")
	assert.Contains(t, out, "Mardia skewness")
	assert.Contains(t, out, "robust ML (MLM) is recommended")

	// Fit values rendered with three decimals.
	assert.Contains(t, out, "23.827")
	assert.Contains(t, out, "scaling 1.051")
	assert.Contains(t, out, "90% CI [0.010, 0.073]")
	assert.Contains(t, out, "617.312")

	// Parameter tables.
	assert.Contains(t, out, "sex.fool")
	assert.Contains(t, out, "0.876")
	assert.Contains(t, out, "norms -> intention")
	assert.Contains(t, out, "-0.667")

	// Interpretation narrative.
	assert.Contains(t, out, "CFI = 0.990 meets the 0.95 cutoff.")
	assert.Contains(t, out, "SRMR = 0.021 is at or below the 0.08 cutoff.")
	assert.Contains(t, out, "norms -> intention: beta = -0.667, p = <.001, a statistically significant path.")
	assert.Contains(t, out, "attitudes -> intention: beta = -0.189, p = 0.161, not statistically significant.")
}

func TestWriteText_OmitsEmptySections(t *testing.T) {
	rep := &Report{Title: "Minimal", N: 10}
	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	out := buf.String()

	assert.NotContains(t, out, "Normality assessment")
	assert.NotContains(t, out, "Model fit")
	assert.NotContains(t, out, "Interpretation")
}

func TestWriteText_UnscaledEstimatorHidesScaledRow(t *testing.T) {
	res := fixtureResult()
	res.Estimator = sem.EstimatorML
	res.Fit.ScalingFactor = 1
	rep := &Report{Title: "ML", N: 300, Result: res}

	var buf bytes.Buffer
	require.NoError(t, rep.WriteText(&buf))
	assert.NotContains(t, buf.String(), "Chi-square (scaled)")
}

func TestWriteJSON_RoundTripsTopLevel(t *testing.T) {
	rep := &Report{Title: "JSON", N: 300, Result: fixtureResult()}
	var buf bytes.Buffer
	require.NoError(t, rep.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "JSON", decoded["title"])
	result := decoded["result"].(map[string]any)
	fit := result["fit"].(map[string]any)
	assert.InDelta(t, 23.827, fit["chisq_scaled"].(float64), 1e-9)
}

func TestFormatP(t *testing.T) {
	assert.Equal(t, "<.001", formatP(0.0004))
	assert.Equal(t, "0.048", formatP(0.0482))
	assert.Equal(t, "n/a", formatP(math.NaN()))
}

func TestSigMark(t *testing.T) {
	assert.Equal(t, "***", sigMark(0.0001))
	assert.Equal(t, "**", sigMark(0.005))
	assert.Equal(t, "*", sigMark(0.03))
	assert.Equal(t, "", sigMark(0.2))
}

func TestInterpret_PoorFit(t *testing.T) {
	res := fixtureResult()
	res.Fit.RMSEA = 0.11
	res.Fit.CFI = 0.88
	res.Fit.SRMR = 0.12
	res.Fit.ScaledPValue = 0.0001

	lines := interpret(res)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "rejects exact fit")
	assert.Contains(t, joined, "exceeds the 0.06 cutoff")
	assert.Contains(t, joined, "falls short of the 0.95 cutoff")
	assert.Contains(t, joined, "SRMR = 0.120 exceeds the 0.08 cutoff")
}
