package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// ReadRun retrieves a single run with its estimates.
// Estimates are ordered by canonical parameter index.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, data_file, data_digest, model_text, model_digest,
		       estimator, n, chisq, chisq_scaled, df, scaling, rmsea, cfi, srmr
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, label, kind, est, se
		FROM estimates
		WHERE run_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("read run estimates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var est Estimate
		if err := rows.Scan(&est.Index, &est.Label, &est.Kind, &est.Est, &est.SE); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		run.Estimates = append(run.Estimates, est)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate estimates: %w", err)
	}

	return run, nil
}

// ListRuns returns all recorded runs without their estimates, newest first.
// Returns an empty slice (not nil) when the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, data_file, data_digest, model_text, model_digest,
		       estimator, n, chisq, chisq_scaled, df, scaling, rmsea, cfi, srmr
		FROM runs
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// scanner abstracts sql.Row and sql.Rows for the shared scan path.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var created string
	err := sc.Scan(
		&run.ID,
		&created,
		&run.DataFile,
		&run.DataDigest,
		&run.ModelText,
		&run.ModelDigest,
		&run.Estimator,
		&run.N,
		&run.ChiSq,
		&run.ScaledChiSq,
		&run.DF,
		&run.Scaling,
		&run.RMSEA,
		&run.CFI,
		&run.SRMR,
	)
	if err != nil {
		return nil, err
	}

	run.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}

	return &run, nil
}
