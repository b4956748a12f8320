package sem

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// chiSquaredSurvival is the upper tail of the central chi-squared
// distribution.
func chiSquaredSurvival(x float64, df int) float64 {
	if df <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: float64(df)}.Survival(x)
}

// noncentralChiSquaredCDF evaluates P(X <= x) for the noncentral
// chi-squared distribution with df degrees of freedom and noncentrality
// ncp, via the Poisson mixture of central chi-squared CDFs. The series is
// summed outward from the Poisson mode in log space, so large
// noncentralities do not underflow.
func noncentralChiSquaredCDF(x float64, df int, ncp float64) float64 {
	if x <= 0 {
		return 0
	}
	if ncp < 1e-12 {
		return mathext.GammaIncReg(float64(df)/2, x/2)
	}

	half := ncp / 2
	mode := int(half)

	logWeight := func(j int) float64 {
		lg, _ := math.Lgamma(float64(j) + 1)
		return -half + float64(j)*math.Log(half) - lg
	}
	term := func(j int) float64 {
		return math.Exp(logWeight(j)) * mathext.GammaIncReg(float64(df+2*j)/2, x/2)
	}

	const tol = 1e-14
	sum := term(mode)
	for j := mode - 1; j >= 0; j-- {
		t := term(j)
		sum += t
		if t < tol*sum {
			break
		}
	}
	for j := mode + 1; ; j++ {
		t := term(j)
		sum += t
		if t < tol*sum || j > mode+10000 {
			break
		}
	}
	return math.Min(sum, 1)
}

// rmseaInterval computes the RMSEA point estimate, its 90% confidence
// interval, and the p-value for H0: RMSEA <= .05, from a chi-squared
// statistic t with df degrees of freedom and sample multiplier n.
func rmseaInterval(t float64, df int, n float64) (point, lo, hi, pclose float64) {
	if df <= 0 || n <= 0 {
		return 0, 0, 0, 1
	}
	nd := float64(df) * n

	point = math.Sqrt(math.Max(0, (t-float64(df))/nd))

	// Lower bound: ncp with P(X <= t | ncp) = .95.
	if noncentralChiSquaredCDF(t, df, 0) > 0.95 {
		ncp := solveNoncentrality(t, df, 0.95)
		lo = math.Sqrt(ncp / nd)
	}
	// Upper bound: ncp with P(X <= t | ncp) = .05.
	if noncentralChiSquaredCDF(t, df, 0) > 0.05 {
		ncp := solveNoncentrality(t, df, 0.05)
		hi = math.Sqrt(ncp / nd)
	}

	// P(close fit): upper tail at the ncp implied by RMSEA = .05.
	ncp0 := 0.05 * 0.05 * nd
	pclose = 1 - noncentralChiSquaredCDF(t, df, ncp0)
	return point, lo, hi, pclose
}

// solveNoncentrality finds ncp such that the noncentral chi-squared CDF at
// t equals target. The CDF is strictly decreasing in ncp, so bisection on
// an expanding bracket suffices.
func solveNoncentrality(t float64, df int, target float64) float64 {
	lo, hi := 0.0, math.Max(t, 1.0)
	for noncentralChiSquaredCDF(t, df, hi) > target {
		hi *= 2
		if hi > 1e8 {
			break
		}
	}
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		if noncentralChiSquaredCDF(t, df, mid) > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// incrementalIndices computes CFI and TLI from the (scaled) target and
// baseline statistics.
func incrementalIndices(t float64, df int, tb float64, dfb int) (cfi, tli float64) {
	d := math.Max(t-float64(df), 0)
	db := math.Max(tb-float64(dfb), 0)
	if db < d {
		db = d
	}
	if db == 0 {
		cfi = 1
	} else {
		cfi = 1 - d/db
	}

	if df > 0 && dfb > 0 {
		rb := tb / float64(dfb)
		rt := t / float64(df)
		if rb > 1 {
			tli = (rb - rt) / (rb - 1)
			if tli > 1 {
				tli = 1
			}
		} else {
			tli = 1
		}
	} else {
		tli = 1
	}
	return cfi, tli
}

// srmr computes the standardized root mean square residual between the
// sample and implied covariance matrices.
func srmr(sample, implied *mat.SymDense) float64 {
	p := sample.SymmetricDim()
	var sum float64
	count := 0
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			denom := math.Sqrt(sample.At(i, i) * sample.At(j, j))
			r := (sample.At(i, j) - implied.At(i, j)) / denom
			sum += r * r
			count++
		}
	}
	return math.Sqrt(sum / float64(count))
}

// baseline holds the independence-model statistics used by the
// incremental fit indices.
type baseline struct {
	chiSq   float64
	df      int
	scaled  float64
	scaling float64
}

// fitBaseline evaluates the independence model Sigma_b = diag(S). Its ML
// solution is closed-form (the sample variances), so no optimization is
// needed: F_b = sum log s_ii - log|S|.
func fitBaseline(sampleCov *mat.SymDense, gamma *mat.Dense, n float64, robust bool) (*baseline, error) {
	p := sampleCov.SymmetricDim()
	dfb := p * (p - 1) / 2

	var chol mat.Cholesky
	if !chol.Factorize(sampleCov) {
		return nil, &EstimationError{
			Code:    ErrCodeNotPositiveDefinite,
			Message: "sample covariance matrix is not positive definite",
		}
	}
	var sumLog float64
	sigmaB := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		sii := sampleCov.At(i, i)
		sumLog += math.Log(sii)
		sigmaB.SetSym(i, i, sii)
	}
	fb := sumLog - chol.LogDet()
	tb := n * fb

	b := &baseline{chiSq: tb, df: dfb, scaled: tb, scaling: 1}
	if !robust {
		return b, nil
	}

	// Baseline Jacobian: column t is the unit vector at pair (t,t).
	pairs := vechPairs(p)
	deltaB := mat.NewDense(len(pairs), p, nil)
	for k, pr := range pairs {
		if pr[0] == pr[1] {
			deltaB.Set(k, pr[0], 1)
		}
	}
	vb, err := normalWeight(sigmaB)
	if err != nil {
		return nil, err
	}
	sb, err := satorraBentler(deltaB, vb, gamma, dfb)
	if err != nil {
		return nil, err
	}
	b.scaling = sb.scaling
	b.scaled = tb / sb.scaling
	return b, nil
}
