package sem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// vechPairs enumerates the (i,j), i <= j index pairs of a p-by-p symmetric
// matrix in row-major order. Every vech-shaped object in this package (the
// ADF Gamma, the weight matrix, the Jacobian Delta) uses this one ordering.
func vechPairs(p int) [][2]int {
	out := make([][2]int, 0, p*(p+1)/2)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

// duplication builds the p^2-by-p* duplication matrix D with
// vec(M) = D vech(M) for symmetric M.
func duplication(p int) *mat.Dense {
	pairs := vechPairs(p)
	d := mat.NewDense(p*p, len(pairs), nil)
	for k, pr := range pairs {
		i, j := pr[0], pr[1]
		d.Set(i*p+j, k, 1)
		d.Set(j*p+i, k, 1)
	}
	return d
}

// kronecker computes a (x) b for square matrices.
func kronecker(a, b mat.Matrix) *mat.Dense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	out := mat.NewDense(ar*br, ac*bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			av := a.At(i, j)
			if av == 0 {
				continue
			}
			for k := 0; k < br; k++ {
				for l := 0; l < bc; l++ {
					out.Set(i*br+k, j*bc+l, av*b.At(k, l))
				}
			}
		}
	}
	return out
}

// normalWeight computes the normal-theory weight matrix
// V = 1/2 D^T (Sigma^-1 (x) Sigma^-1) D evaluated at sigma.
func normalWeight(sigma *mat.SymDense) (*mat.Dense, error) {
	p := sigma.SymmetricDim()

	var chol mat.Cholesky
	if !chol.Factorize(sigma) {
		return nil, fmt.Errorf("weight matrix: sigma is not positive definite")
	}
	var sigmaInv mat.SymDense
	if err := chol.InverseTo(&sigmaInv); err != nil {
		return nil, fmt.Errorf("weight matrix: %w", err)
	}

	d := duplication(p)
	kron := kronecker(&sigmaInv, &sigmaInv)

	var kd, v mat.Dense
	kd.Mul(kron, d)
	v.Mul(d.T(), &kd)
	v.Scale(0.5, &v)
	return &v, nil
}

// adfGamma estimates the asymptotic distribution-free covariance matrix of
// vech(S): Gamma[(ij),(kl)] = 1/N sum_r (z_ri z_rj - s_ij)(z_rk z_rl - s_kl)
// with columns centered and biased (1/N) second moments.
func adfGamma(x *mat.Dense) *mat.Dense {
	n, p := x.Dims()
	pairs := vechPairs(p)
	ps := len(pairs)

	means := make([]float64, p)
	for j := 0; j < p; j++ {
		var s float64
		for i := 0; i < n; i++ {
			s += x.At(i, j)
		}
		means[j] = s / float64(n)
	}

	// Per-observation deviations d_r = vech(z_r z_r^T) - vech(S_N).
	dev := mat.NewDense(n, ps, nil)
	for k, pr := range pairs {
		i, j := pr[0], pr[1]
		var sij float64
		for r := 0; r < n; r++ {
			v := (x.At(r, i) - means[i]) * (x.At(r, j) - means[j])
			dev.Set(r, k, v)
			sij += v
		}
		sij /= float64(n)
		for r := 0; r < n; r++ {
			dev.Set(r, k, dev.At(r, k)-sij)
		}
	}

	var gamma mat.Dense
	gamma.Mul(dev.T(), dev)
	gamma.Scale(1/float64(n), &gamma)
	return &gamma
}

// delta computes the p*-by-q Jacobian of vech(Sigma) with respect to theta.
func (r *ram) delta(theta []float64, b, sigmaAll *mat.Dense) *mat.Dense {
	pairs := vechPairs(r.p)
	out := mat.NewDense(len(pairs), len(theta), nil)
	for t := range theta {
		d := r.dSigma(t, b, sigmaAll)
		for k, pr := range pairs {
			out.Set(k, t, d.At(pr[0], pr[1]))
		}
	}
	return out
}

// sbCorrection carries the Satorra-Bentler machinery shared by the target
// and baseline models.
type sbCorrection struct {
	information *mat.SymDense // Delta^T V Delta
	invInfo     *mat.SymDense
	scaling     float64 // c = tr(U Gamma) / df
}

// satorraBentler computes the scaling factor and information matrices for a
// model with Jacobian delta and weight v, against the ADF gamma.
func satorraBentler(delta, v, gamma *mat.Dense, df int) (*sbCorrection, error) {
	ps, q := delta.Dims()

	var vd mat.Dense // V Delta (ps x q)
	vd.Mul(v, delta)

	info := mat.NewSymDense(q, nil)
	for i := 0; i < q; i++ {
		for j := i; j < q; j++ {
			var s float64
			for k := 0; k < ps; k++ {
				s += delta.At(k, i) * vd.At(k, j)
			}
			info.SetSym(i, j, s)
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(info) {
		return nil, &EstimationError{
			Code:    ErrCodeNotConverged,
			Message: "information matrix is singular at the solution",
		}
	}
	var invInfo mat.SymDense
	if err := chol.InverseTo(&invInfo); err != nil {
		return nil, fmt.Errorf("invert information matrix: %w", err)
	}

	// U = V - V Delta (Delta^T V Delta)^-1 Delta^T V
	var proj, u mat.Dense
	var tmp mat.Dense
	tmp.Mul(&vd, &invInfo)
	proj.Mul(&tmp, vd.T())
	u.Sub(v, &proj)

	// c = tr(U Gamma) / df. A saturated model has no misfit to scale, and
	// a nil gamma (plain ML) needs no scaling at all.
	c := 1.0
	if df > 0 && gamma != nil {
		var trUG float64
		for i := 0; i < ps; i++ {
			for j := 0; j < ps; j++ {
				trUG += u.At(i, j) * gamma.At(j, i)
			}
		}
		c = trUG / float64(df)
	}
	if c <= 0 || math.IsNaN(c) {
		return nil, &EstimationError{
			Code:    ErrCodeNotConverged,
			Message: fmt.Sprintf("invalid Satorra-Bentler scaling factor %g", c),
		}
	}

	return &sbCorrection{information: info, invInfo: &invInfo, scaling: c}, nil
}

// standardErrors computes per-parameter standard errors at sample size
// multiplier n. Robust requests the sandwich estimator
// (Delta^T V Delta)^-1 Delta^T V Gamma V Delta (Delta^T V Delta)^-1 / n;
// otherwise the normal-theory (Delta^T V Delta)^-1 / n is used.
func (sb *sbCorrection) standardErrors(delta, v, gamma *mat.Dense, n float64, robust bool) ([]float64, *mat.SymDense) {
	q := sb.invInfo.SymmetricDim()

	acov := mat.NewSymDense(q, nil)
	if robust {
		var vd, gvd, meat, half, full mat.Dense
		vd.Mul(v, delta)
		gvd.Mul(gamma, &vd)
		meat.Mul(vd.T(), &gvd) // Delta^T V Gamma V Delta
		half.Mul(sb.invInfo, &meat)
		full.Mul(&half, sb.invInfo)
		for i := 0; i < q; i++ {
			for j := i; j < q; j++ {
				acov.SetSym(i, j, (full.At(i, j)+full.At(j, i))/2/n)
			}
		}
	} else {
		for i := 0; i < q; i++ {
			for j := i; j < q; j++ {
				acov.SetSym(i, j, sb.invInfo.At(i, j)/n)
			}
		}
	}

	se := make([]float64, q)
	for i := range se {
		se[i] = math.Sqrt(math.Max(acov.At(i, i), 0))
	}
	return se, acov
}
