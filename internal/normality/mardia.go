package normality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/semfit/internal/dataset"
)

// MardiaResult holds Mardia's multivariate skewness and kurtosis tests.
//
// Skewness: N*b1p/6 is asymptotically chi-squared with p(p+1)(p+2)/6 df.
// Kurtosis: b2p has expectation p(p+2) under normality; the standardized
// statistic is asymptotically standard normal.
type MardiaResult struct {
	N         int     `json:"n"`
	Variables int     `json:"variables"`
	Skewness  float64 `json:"skewness"`       // b1,p
	SkewStat  float64 `json:"skew_statistic"` // N*b1p/6
	SkewDF    int     `json:"skew_df"`
	SkewP     float64 `json:"skew_p_value"`
	Kurtosis  float64 `json:"kurtosis"` // b2,p
	KurtZ     float64 `json:"kurtosis_z"`
	KurtP     float64 `json:"kurtosis_p_value"`
	Normal    bool    `json:"normal"` // both tests non-significant
}

// Mardia computes the multivariate normality tests over all columns of the
// table at the given significance level.
//
// Fails if the sample covariance matrix is not positive definite, which in
// practice means fewer observations than variables or a linearly dependent
// column.
func Mardia(t *dataset.Table, alpha float64) (MardiaResult, error) {
	x := t.Matrix()
	n, p := x.Dims()
	if n <= p {
		return MardiaResult{}, fmt.Errorf("mardia: need more observations (%d) than variables (%d)", n, p)
	}

	// Center columns; covariance with denominator n (Mardia's convention).
	means := make([]float64, p)
	for j := 0; j < p; j++ {
		var s float64
		for i := 0; i < n; i++ {
			s += x.At(i, j)
		}
		means[j] = s / float64(n)
	}
	z := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			z.Set(i, j, x.At(i, j)-means[j])
		}
	}
	s := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			var sum float64
			for r := 0; r < n; r++ {
				sum += z.At(r, i) * z.At(r, j)
			}
			s.SetSym(i, j, sum/float64(n))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok {
		return MardiaResult{}, fmt.Errorf("mardia: sample covariance matrix is not positive definite")
	}

	// G = Z S^{-1} Z^T holds every Mahalanobis cross product g_ij.
	var sinvZt mat.Dense
	if err := chol.SolveTo(&sinvZt, z.T()); err != nil {
		return MardiaResult{}, fmt.Errorf("mardia: %w", err)
	}
	var g mat.Dense
	g.Mul(z, &sinvZt)

	var b1p, b2p float64
	for i := 0; i < n; i++ {
		gii := g.At(i, i)
		b2p += gii * gii
		for j := 0; j < n; j++ {
			gij := g.At(i, j)
			b1p += gij * gij * gij
		}
	}
	b1p /= float64(n) * float64(n)
	b2p /= float64(n)

	fp := float64(p)
	skewDF := p * (p + 1) * (p + 2) / 6
	skewStat := float64(n) * b1p / 6
	skewP := distuv.ChiSquared{K: float64(skewDF)}.Survival(skewStat)

	kurtZ := (b2p - fp*(fp+2)) / math.Sqrt(8*fp*(fp+2)/float64(n))
	kurtP := 2 * distuv.UnitNormal.Survival(math.Abs(kurtZ))

	return MardiaResult{
		N:         n,
		Variables: p,
		Skewness:  b1p,
		SkewStat:  skewStat,
		SkewDF:    skewDF,
		SkewP:     skewP,
		Kurtosis:  b2p,
		KurtZ:     kurtZ,
		KurtP:     kurtP,
		Normal:    skewP > alpha && kurtP > alpha,
	}, nil
}
