package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/model"
	"github.com/roach88/semfit/internal/sem"
	"github.com/roach88/semfit/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// surveySpec is a four-factor model with two indicators per latent, three
// exogenous latents predicting one endogenous.
func surveySpec() *model.Spec {
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

// populationSigma builds the covariance matrix implied by surveySpec at a
// fixed population parameterization: marker loadings 1, second loadings
// 0.9/1.1/0.8/1.05, regressions -0.2/-0.65/0.3, correlated exogenous
// latents, residual variances between 0.4 and 0.7.
func populationSigma() *mat.SymDense {
	lam := mat.NewDense(8, 4, []float64{
		1, 0, 0, 0,
		0.9, 0, 0, 0,
		0, 1, 0, 0,
		0, 1.1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0.8, 0,
		0, 0, 0, 1,
		0, 0, 0, 1.05,
	})
	b := []float64{-0.2, -0.65, 0.3}
	phiEx := mat.NewSymDense(3, []float64{
		1.0, 0.4, 0.3,
		0.4, 0.9, 0.2,
		0.3, 0.2, 1.1,
	})
	const psi = 0.5

	// Full latent covariance: the intention row/column follows from the
	// regression coefficients, its variance adds the disturbance.
	phi := mat.NewSymDense(4, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			phi.SetSym(i, j, phiEx.At(i, j))
		}
	}
	for j := 0; j < 3; j++ {
		var c float64
		for k := 0; k < 3; k++ {
			c += b[k] * phiEx.At(k, j)
		}
		phi.SetSym(j, 3, c)
	}
	varInt := psi
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			varInt += b[i] * b[j] * phiEx.At(i, j)
		}
	}
	phi.SetSym(3, 3, varInt)

	resid := []float64{0.5, 0.4, 0.6, 0.5, 0.7, 0.6, 0.4, 0.5}
	var lp, sig mat.Dense
	lp.Mul(lam, phi)
	sig.Mul(&lp, lam.T())
	out := mat.NewSymDense(8, nil)
	for i := 0; i < 8; i++ {
		for j := i; j < 8; j++ {
			v := sig.At(i, j)
			if i == j {
				v += resid[i]
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

// fittedResult fits surveySpec against a synthetic sample and returns the
// result with the table it was fitted to. The same seed always produces the
// same sample, so repeated calls replay the identical estimation.
func fittedResult(t *testing.T, seed uint64) (*sem.Result, *dataset.Table) {
	t.Helper()
	spec := surveySpec()

	x := testutil.ExactCovarianceSample(seed, 300, populationSigma())
	tbl, err := dataset.New(spec.Indicators(), x)
	if err != nil {
		t.Fatalf("dataset.New() failed: %v", err)
	}

	res, err := sem.Fit(tbl, spec, sem.Options{Estimator: sem.EstimatorMLM})
	if err != nil {
		t.Fatalf("Fit() failed: %v", err)
	}
	return res, tbl
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestWriteRun_ReadRun_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, tbl := fittedResult(t, 11)
	run := NewRun(res, "survey.csv", tbl.Digest())

	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	got, err := s.ReadRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}

	if got.DataDigest != tbl.Digest() {
		t.Errorf("data digest = %q, want %q", got.DataDigest, tbl.Digest())
	}
	if got.ModelDigest != res.Spec.Digest() {
		t.Errorf("model digest = %q, want %q", got.ModelDigest, res.Spec.Digest())
	}
	if got.ModelText != res.Spec.Canonical() {
		t.Errorf("model text = %q, want canonical syntax", got.ModelText)
	}
	if got.Estimator != string(sem.EstimatorMLM) {
		t.Errorf("estimator = %q, want MLM", got.Estimator)
	}
	if got.N != 300 {
		t.Errorf("n = %d, want 300", got.N)
	}
	if got.DF != res.Fit.DF {
		t.Errorf("df = %d, want %d", got.DF, res.Fit.DF)
	}

	if len(got.Estimates) != len(res.Parameters) {
		t.Fatalf("estimate count = %d, want %d", len(got.Estimates), len(res.Parameters))
	}
	for i, est := range got.Estimates {
		pe := res.Parameters[i]
		if est.Label != pe.Param.Label() {
			t.Errorf("estimate %d label = %q, want %q", i, est.Label, pe.Param.Label())
		}
		if est.Est != pe.Est {
			t.Errorf("estimate %q = %v, want %v (exact)", est.Label, est.Est, pe.Est)
		}
		if est.SE != pe.SE {
			t.Errorf("std.err %q = %v, want %v (exact)", est.Label, est.SE, pe.SE)
		}
	}
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, tbl := fittedResult(t, 11)
	run := NewRun(res, "survey.csv", tbl.Digest())

	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("first WriteRun() failed: %v", err)
	}
	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("second WriteRun() failed: %v", err)
	}

	got, err := s.ReadRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if len(got.Estimates) != len(run.Estimates) {
		t.Errorf("estimates duplicated: %d, want %d", len(got.Estimates), len(run.Estimates))
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadRun(context.Background(), "no-such-run")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ReadRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() on empty store failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("empty store returned %d runs", len(runs))
	}

	res, tbl := fittedResult(t, 11)
	for i := 0; i < 3; i++ {
		if err := s.WriteRun(ctx, NewRun(res, "survey.csv", tbl.Digest())); err != nil {
			t.Fatalf("WriteRun() %d failed: %v", i, err)
		}
	}

	runs, err = s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("ListRuns() returned %d runs, want 3", len(runs))
	}
	for _, run := range runs {
		if len(run.Estimates) != 0 {
			t.Errorf("ListRuns() should not load estimates, got %d", len(run.Estimates))
		}
	}
}

func TestVerify_ReplayIsDeterministic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, tbl := fittedResult(t, 23)
	run := NewRun(res, "survey.csv", tbl.Digest())
	if err := s.WriteRun(ctx, run); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}

	stored, err := s.ReadRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}

	// Re-fit from scratch with the same inputs
	replayed, tbl2 := fittedResult(t, 23)

	v := stored.Verify(replayed, tbl2.Digest())
	if !v.Deterministic {
		t.Errorf("replay not deterministic, mismatches: %v", v.Mismatches)
	}
	if v.DataChanged || v.ModelChanged {
		t.Errorf("unexpected input change flags: data=%v model=%v", v.DataChanged, v.ModelChanged)
	}
}

func TestVerify_DetectsDataChange(t *testing.T) {
	res, tbl := fittedResult(t, 23)
	run := NewRun(res, "survey.csv", tbl.Digest())

	v := run.Verify(res, "different-digest")
	if v.Deterministic {
		t.Error("Verify() accepted a changed data digest")
	}
	if !v.DataChanged {
		t.Error("DataChanged not flagged")
	}
}

func TestVerify_DetectsEstimateDrift(t *testing.T) {
	res, tbl := fittedResult(t, 23)
	run := NewRun(res, "survey.csv", tbl.Digest())

	run.Estimates[0].Est += 1e-12

	v := run.Verify(res, tbl.Digest())
	if v.Deterministic {
		t.Error("Verify() tolerated estimate drift")
	}
	if len(v.Mismatches) == 0 {
		t.Error("no mismatch reported for drifted estimate")
	}
}
