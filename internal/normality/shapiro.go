// Package normality implements the univariate and multivariate normality
// assessments that precede estimator selection: Shapiro-Wilk per indicator
// and Mardia's multivariate skewness and kurtosis over the full matrix.
//
// The assessment is advisory. Nothing downstream branches on it; the report
// prints the verdicts and the analyst chooses the estimator.
package normality

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/semfit/internal/dataset"
)

// UnivariateResult holds one Shapiro-Wilk test outcome.
type UnivariateResult struct {
	Variable string  `json:"variable"`
	W        float64 `json:"w"`
	PValue   float64 `json:"p_value"`
	Normal   bool    `json:"normal"`
}

// ShapiroWilk computes the Shapiro-Wilk W statistic and its p-value using
// Royston's AS R94 approximation. Valid for 3 <= n <= 5000.
func ShapiroWilk(x []float64) (w, p float64, err error) {
	n := len(x)
	if n < 3 {
		return 0, 0, fmt.Errorf("shapiro-wilk: need at least 3 observations, have %d", n)
	}
	if n > 5000 {
		return 0, 0, fmt.Errorf("shapiro-wilk: approximation invalid beyond n=5000, have %d", n)
	}

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	if sorted[0] == sorted[n-1] {
		return 0, 0, fmt.Errorf("shapiro-wilk: all observations identical")
	}

	// Expected normal order statistics (Blom scores).
	m := make([]float64, n)
	var ssqM float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / (float64(n) + 0.25))
		ssqM += m[i] * m[i]
	}

	a := make([]float64, n)
	switch {
	case n == 3:
		a[0] = -math.Sqrt(0.5)
		a[2] = math.Sqrt(0.5)
	case n <= 5:
		u := 1 / math.Sqrt(float64(n))
		cn := m[n-1] / math.Sqrt(ssqM)
		an := cn + polyTail(u)
		phi := (ssqM - 2*m[n-1]*m[n-1]) / (1 - 2*an*an)
		a[n-1], a[0] = an, -an
		for i := 1; i < n-1; i++ {
			a[i] = m[i] / math.Sqrt(phi)
		}
	default:
		u := 1 / math.Sqrt(float64(n))
		cn := m[n-1] / math.Sqrt(ssqM)
		cn1 := m[n-2] / math.Sqrt(ssqM)
		an := cn + polyTail(u)
		an1 := cn1 + polyNextTail(u)
		phi := (ssqM - 2*m[n-1]*m[n-1] - 2*m[n-2]*m[n-2]) / (1 - 2*an*an - 2*an1*an1)
		a[n-1], a[0] = an, -an
		a[n-2], a[1] = an1, -an1
		for i := 2; i < n-2; i++ {
			a[i] = m[i] / math.Sqrt(phi)
		}
	}

	var mean float64
	for _, v := range sorted {
		mean += v
	}
	mean /= float64(n)

	var num, den float64
	for i, v := range sorted {
		num += a[i] * v
		d := v - mean
		den += d * d
	}
	w = num * num / den
	if w > 1 {
		w = 1 // guard against rounding just above 1
	}

	p = shapiroPValue(w, n)
	return w, p, nil
}

// polyTail is Royston's correction polynomial for the largest weight.
func polyTail(u float64) float64 {
	return -2.706056*math.Pow(u, 5) + 4.434685*math.Pow(u, 4) -
		2.071190*math.Pow(u, 3) - 0.147981*u*u + 0.221157*u
}

// polyNextTail is the correction polynomial for the second-largest weight.
func polyNextTail(u float64) float64 {
	return -3.582633*math.Pow(u, 5) + 5.682633*math.Pow(u, 4) -
		1.752461*math.Pow(u, 3) - 0.293762*u*u + 0.042981*u
}

// shapiroPValue maps W to an upper-tail p-value via Royston's normalizing
// transformations.
func shapiroPValue(w float64, n int) float64 {
	switch {
	case n == 3:
		// Exact small-sample result.
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Asin(math.Sqrt(0.75)))
		return math.Min(math.Max(p, 0), 1)
	case n <= 11:
		fn := float64(n)
		g := -2.273 + 0.459*fn
		mu := 0.5440 - 0.39978*fn + 0.025054*fn*fn - 0.0006714*fn*fn*fn
		sigma := math.Exp(1.3822 - 0.77857*fn + 0.062767*fn*fn - 0.0020322*fn*fn*fn)
		z := (-math.Log(g-math.Log(1-w)) - mu) / sigma
		return distuv.UnitNormal.Survival(z)
	default:
		ln := math.Log(float64(n))
		mu := -1.5861 - 0.31082*ln - 0.083751*ln*ln + 0.0038915*ln*ln*ln
		sigma := math.Exp(-0.4803 - 0.082676*ln + 0.0030302*ln*ln)
		z := (math.Log(1-w) - mu) / sigma
		return distuv.UnitNormal.Survival(z)
	}
}

// AssessUnivariate runs Shapiro-Wilk on every column of the table,
// classifying each at the given significance level.
func AssessUnivariate(t *dataset.Table, alpha float64) ([]UnivariateResult, error) {
	cols := t.Columns()
	out := make([]UnivariateResult, 0, len(cols))
	for _, name := range cols {
		col, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		w, p, err := ShapiroWilk(col)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out = append(out, UnivariateResult{
			Variable: name,
			W:        w,
			PValue:   p,
			Normal:   p > alpha,
		})
	}
	return out, nil
}
