package sem

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/semfit/internal/model"
)

// ram maps a model.Spec onto the RAM parameterization
//
//	Sigma(theta) = F (I-A)^-1 S (I-A)^-T F^T
//
// where A holds directed effects (loadings, regressions), S holds symmetric
// effects (variances, covariances), and F filters the observed rows.
// Variables are indexed observed-first: indicators 0..p-1 in canonical
// order, latents p..p+m-1 in declaration order, so the observed block of
// any full-variable matrix is simply its leading p rows and columns.
type ram struct {
	spec   *model.Spec
	obs    []string
	lat    []string
	index  map[string]int
	p, m   int
	params []model.Param
	cells  []ramCell
}

// ramCell locates one free parameter in A or S.
type ramCell struct {
	inA  bool
	i, j int
}

func newRAM(spec *model.Spec) (*ram, error) {
	r := &ram{
		spec:  spec,
		obs:   spec.Indicators(),
		lat:   spec.LatentNames(),
		index: make(map[string]int),
	}
	r.p = len(r.obs)
	r.m = len(r.lat)
	for i, name := range r.obs {
		r.index[name] = i
	}
	for i, name := range r.lat {
		r.index[name] = r.p + i
	}

	r.params = spec.FreeParameters()
	r.cells = make([]ramCell, len(r.params))
	for t, prm := range r.params {
		li, lok := r.index[prm.Lhs]
		ri, rok := r.index[prm.Rhs]
		if !lok || !rok {
			return nil, fmt.Errorf("ram: parameter %q references unknown variable", prm.Label())
		}
		switch prm.Kind {
		case model.KindLoading:
			// lhs =~ rhs: latent causes indicator.
			r.cells[t] = ramCell{inA: true, i: ri, j: li}
		case model.KindRegression:
			// lhs ~ rhs: predictor causes outcome.
			r.cells[t] = ramCell{inA: true, i: li, j: ri}
		case model.KindResidualVariance, model.KindLatentVariance:
			r.cells[t] = ramCell{i: li, j: li}
		case model.KindResidualCovariance, model.KindLatentCovariance:
			r.cells[t] = ramCell{i: li, j: ri}
		default:
			return nil, fmt.Errorf("ram: unknown parameter kind %q", prm.Kind)
		}
	}
	return r, nil
}

// nv returns the total variable count (observed + latent).
func (r *ram) nv() int { return r.p + r.m }

// matrices assembles A and S at theta. Marker loadings are fixed at 1.
func (r *ram) matrices(theta []float64) (a, s *mat.Dense) {
	nv := r.nv()
	a = mat.NewDense(nv, nv, nil)
	s = mat.NewDense(nv, nv, nil)

	for li, l := range r.spec.Latents {
		a.Set(r.index[l.Indicators[0]], r.p+li, 1)
	}
	for t, c := range r.cells {
		v := theta[t]
		if c.inA {
			a.Set(c.i, c.j, v)
		} else {
			s.Set(c.i, c.j, v)
			s.Set(c.j, c.i, v)
		}
	}
	return a, s
}

// implied computes B = (I-A)^-1 and the full-variable covariance
// Sigma_all = B S B^T at theta.
func (r *ram) implied(theta []float64) (b, sigmaAll *mat.Dense, err error) {
	a, s := r.matrices(theta)
	nv := r.nv()

	ima := mat.NewDense(nv, nv, nil)
	for i := 0; i < nv; i++ {
		ima.Set(i, i, 1)
	}
	ima.Sub(ima, a)

	b = mat.NewDense(nv, nv, nil)
	if err := b.Inverse(ima); err != nil {
		return nil, nil, fmt.Errorf("ram: I-A is singular: %w", err)
	}

	var bs mat.Dense
	bs.Mul(b, s)
	sigmaAll = mat.NewDense(nv, nv, nil)
	sigmaAll.Mul(&bs, b.T())
	return b, sigmaAll, nil
}

// observed extracts the observed block of a full-variable matrix as a
// symmetric matrix.
func (r *ram) observed(full *mat.Dense) *mat.SymDense {
	out := mat.NewSymDense(r.p, nil)
	for i := 0; i < r.p; i++ {
		for j := i; j < r.p; j++ {
			out.SetSym(i, j, full.At(i, j))
		}
	}
	return out
}

// latentCov extracts the latent block of a full-variable covariance.
func (r *ram) latentCov(full *mat.Dense) *mat.SymDense {
	out := mat.NewSymDense(r.m, nil)
	for i := 0; i < r.m; i++ {
		for j := i; j < r.m; j++ {
			out.SetSym(i, j, full.At(r.p+i, r.p+j))
		}
	}
	return out
}

// dSigma computes the derivative of the observed-block Sigma with respect
// to free parameter t, given B and Sigma_all at the current theta.
//
// For an A-cell (i,j): dSigma_all = B E_ij Sigma_all + (B E_ij Sigma_all)^T,
// using dB = B dA B. For an S-cell: dSigma_all = b_i b_j^T + b_j b_i^T
// (b_k the k-th column of B), halved on the diagonal cell case i == j.
func (r *ram) dSigma(t int, b, sigmaAll *mat.Dense) *mat.SymDense {
	nv := r.nv()
	c := r.cells[t]
	out := mat.NewSymDense(r.p, nil)

	if c.inA {
		// (B E_ij Sigma_all)[x,y] = B[x,i] * Sigma_all[j,y]
		for x := 0; x < r.p; x++ {
			for y := x; y < r.p; y++ {
				v := b.At(x, c.i)*sigmaAll.At(c.j, y) + b.At(y, c.i)*sigmaAll.At(c.j, x)
				out.SetSym(x, y, v)
			}
		}
		return out
	}

	bi := make([]float64, nv)
	bj := make([]float64, nv)
	mat.Col(bi, c.i, b)
	mat.Col(bj, c.j, b)
	for x := 0; x < r.p; x++ {
		for y := x; y < r.p; y++ {
			v := bi[x]*bj[y] + bj[x]*bi[y]
			if c.i == c.j {
				v /= 2
			}
			out.SetSym(x, y, v)
		}
	}
	return out
}
