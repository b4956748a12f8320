package report

import (
	"fmt"

	"github.com/roach88/semfit/internal/sem"
)

// Conventional cutoffs (Hu & Bentler, 1999). These feed report narrative
// only; nothing branches on them.
const (
	cfiCutoff   = 0.95
	rmseaCutoff = 0.06
	srmrCutoff  = 0.08
)

// interpret produces the narrative commentary on a fitted model.
func interpret(res *sem.Result) []string {
	f := res.Fit
	var out []string

	chiP := f.ScaledPValue
	label := "chi-square"
	if f.ScalingFactor != 1 {
		label = "scaled chi-square"
	}
	if chiP > 0.05 {
		out = append(out, fmt.Sprintf(
			"The %s test does not reject exact fit (chi2(%d) = %.3f, p = %s).",
			label, f.DF, f.ScaledChiSq, formatP(chiP)))
	} else {
		out = append(out, fmt.Sprintf(
			"The %s test rejects exact fit (chi2(%d) = %.3f, p = %s); approximate fit indices follow.",
			label, f.DF, f.ScaledChiSq, formatP(chiP)))
	}

	if f.RMSEA <= rmseaCutoff {
		out = append(out, fmt.Sprintf(
			"RMSEA = %.3f is at or below the %.2f cutoff (90%% CI [%.3f, %.3f]).",
			f.RMSEA, rmseaCutoff, f.RMSEALower, f.RMSEAUpper))
	} else {
		out = append(out, fmt.Sprintf(
			"RMSEA = %.3f exceeds the %.2f cutoff (90%% CI [%.3f, %.3f]).",
			f.RMSEA, rmseaCutoff, f.RMSEALower, f.RMSEAUpper))
	}

	if f.CFI >= cfiCutoff {
		out = append(out, fmt.Sprintf("CFI = %.3f meets the %.2f cutoff.", f.CFI, cfiCutoff))
	} else {
		out = append(out, fmt.Sprintf("CFI = %.3f falls short of the %.2f cutoff.", f.CFI, cfiCutoff))
	}

	if f.SRMR <= srmrCutoff {
		out = append(out, fmt.Sprintf("SRMR = %.3f is at or below the %.2f cutoff.", f.SRMR, srmrCutoff))
	} else {
		out = append(out, fmt.Sprintf("SRMR = %.3f exceeds the %.2f cutoff.", f.SRMR, srmrCutoff))
	}

	for _, s := range res.Structural {
		if s.PValue < 0.05 {
			out = append(out, fmt.Sprintf(
				"%s -> %s: beta = %.3f, p = %s, a statistically significant path.",
				s.Rhs, s.Lhs, s.Std, formatP(s.PValue)))
		} else {
			out = append(out, fmt.Sprintf(
				"%s -> %s: beta = %.3f, p = %s, not statistically significant.",
				s.Rhs, s.Lhs, s.Std, formatP(s.PValue)))
		}
	}
	return out
}
