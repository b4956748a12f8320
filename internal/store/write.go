package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/semfit/internal/sem"
)

// Run is one recorded estimation run.
type Run struct {
	ID          string
	CreatedAt   time.Time
	DataFile    string
	DataDigest  string
	ModelText   string
	ModelDigest string
	Estimator   string
	N           int

	ChiSq       float64
	ScaledChiSq float64
	DF          int
	Scaling     float64
	RMSEA       float64
	CFI         float64
	SRMR        float64

	Estimates []Estimate
}

// Estimate is one stored free-parameter estimate. Index is the position in
// the canonical parameter order, which a replayed fit must reproduce.
type Estimate struct {
	Index int
	Label string
	Kind  string
	Est   float64
	SE    float64
}

// NewRun builds a Run record from a fitted result. The caller supplies the
// provenance fields (data file path and digest, model text); everything else
// is projected from the result. A fresh UUID is assigned as the run ID.
func NewRun(res *sem.Result, dataFile, dataDigest string) *Run {
	run := &Run{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		DataFile:    dataFile,
		DataDigest:  dataDigest,
		ModelText:   res.Spec.Canonical(),
		ModelDigest: res.Spec.Digest(),
		Estimator:   string(res.Estimator),
		N:           res.N,
		ChiSq:       res.Fit.ChiSquare,
		ScaledChiSq: res.Fit.ScaledChiSq,
		DF:          res.Fit.DF,
		Scaling:     res.Fit.ScalingFactor,
		RMSEA:       res.Fit.RMSEA,
		CFI:         res.Fit.CFI,
		SRMR:        res.Fit.SRMR,
	}
	for i, pe := range res.Parameters {
		run.Estimates = append(run.Estimates, Estimate{
			Index: i,
			Label: pe.Param.Label(),
			Kind:  string(pe.Param.Kind),
			Est:   pe.Est,
			SE:    pe.SE,
		})
	}
	return run
}

// WriteRun inserts a run and its estimates in a single transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are
// silently ignored, in which case the estimates are not rewritten either.
func (s *Store) WriteRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, data_file, data_digest, model_text, model_digest,
		 estimator, n, chisq, chisq_scaled, df, scaling, rmsea, cfi, srmr)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.CreatedAt.Format(time.RFC3339Nano),
		run.DataFile,
		run.DataDigest,
		run.ModelText,
		run.ModelDigest,
		run.Estimator,
		run.N,
		run.ChiSq,
		run.ScaledChiSq,
		run.DF,
		run.Scaling,
		run.RMSEA,
		run.CFI,
		run.SRMR,
	)
	if err != nil {
		return fmt.Errorf("write run: insert run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Run already recorded - idempotent no-op
		return tx.Commit()
	}

	for _, est := range run.Estimates {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO estimates
			(run_id, idx, label, kind, est, se)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			est.Index,
			est.Label,
			est.Kind,
			est.Est,
			est.SE,
		)
		if err != nil {
			return fmt.Errorf("write run: insert estimate %d: %w", est.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}

	return nil
}
