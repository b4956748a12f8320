package store

import (
	"fmt"

	"github.com/roach88/semfit/internal/sem"
)

// Verification is the outcome of replaying a stored run against a fresh fit.
//
// Deterministic is true only when the inputs still match the recorded
// digests AND every estimate, standard error and fit statistic reproduced
// exactly. Float comparisons are exact (bit for bit), not within tolerance:
// estimation is deterministic for fixed inputs, so any drift indicates a
// changed input or a changed implementation.
type Verification struct {
	RunID         string
	Deterministic bool
	DataChanged   bool
	ModelChanged  bool
	Mismatches    []string
}

// Verify compares a stored run against a freshly fitted result.
// dataDigest is the digest of the data the fresh fit was run on.
func (r *Run) Verify(res *sem.Result, dataDigest string) Verification {
	v := Verification{RunID: r.ID}

	if dataDigest != r.DataDigest {
		v.DataChanged = true
		v.Mismatches = append(v.Mismatches,
			fmt.Sprintf("data digest changed: stored %s, current %s", short(r.DataDigest), short(dataDigest)))
	}
	if res.Spec.Digest() != r.ModelDigest {
		v.ModelChanged = true
		v.Mismatches = append(v.Mismatches,
			fmt.Sprintf("model digest changed: stored %s, current %s", short(r.ModelDigest), short(res.Spec.Digest())))
	}
	if string(res.Estimator) != r.Estimator {
		v.Mismatches = append(v.Mismatches,
			fmt.Sprintf("estimator changed: stored %s, current %s", r.Estimator, res.Estimator))
	}
	if res.N != r.N {
		v.Mismatches = append(v.Mismatches,
			fmt.Sprintf("sample size changed: stored %d, current %d", r.N, res.N))
	}

	if len(res.Parameters) != len(r.Estimates) {
		v.Mismatches = append(v.Mismatches,
			fmt.Sprintf("parameter count changed: stored %d, current %d", len(r.Estimates), len(res.Parameters)))
	} else {
		for i, est := range r.Estimates {
			pe := res.Parameters[i]
			if pe.Param.Label() != est.Label {
				v.Mismatches = append(v.Mismatches,
					fmt.Sprintf("parameter %d: label %q, expected %q", i, pe.Param.Label(), est.Label))
				continue
			}
			if pe.Est != est.Est {
				v.Mismatches = append(v.Mismatches,
					fmt.Sprintf("parameter %q: estimate %v, expected %v", est.Label, pe.Est, est.Est))
			}
			if pe.SE != est.SE {
				v.Mismatches = append(v.Mismatches,
					fmt.Sprintf("parameter %q: std.err %v, expected %v", est.Label, pe.SE, est.SE))
			}
		}
	}

	fitChecks := []struct {
		name           string
		stored, fitted float64
	}{
		{"chisq", r.ChiSq, res.Fit.ChiSquare},
		{"chisq.scaled", r.ScaledChiSq, res.Fit.ScaledChiSq},
		{"scaling", r.Scaling, res.Fit.ScalingFactor},
		{"rmsea", r.RMSEA, res.Fit.RMSEA},
		{"cfi", r.CFI, res.Fit.CFI},
		{"srmr", r.SRMR, res.Fit.SRMR},
	}
	for _, fc := range fitChecks {
		if fc.fitted != fc.stored {
			v.Mismatches = append(v.Mismatches,
				fmt.Sprintf("%s: %v, expected %v", fc.name, fc.fitted, fc.stored))
		}
	}
	if res.Fit.DF != r.DF {
		v.Mismatches = append(v.Mismatches,
			fmt.Sprintf("df: %d, expected %d", res.Fit.DF, r.DF))
	}

	v.Deterministic = len(v.Mismatches) == 0
	return v
}

// short abbreviates a hex digest for messages.
func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
