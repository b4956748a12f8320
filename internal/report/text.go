package report

import (
	"fmt"
	"io"
	"strings"
)

// WriteText renders the full narrative report as aligned plain text.
func (r *Report) WriteText(w io.Writer) error {
	title := r.Title
	if title == "" {
		title = "Structural Equation Model Report"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)
	if r.DataFile != "" {
		fmt.Fprintf(w, "Data: %s (%d observations)\n\n", r.DataFile, r.N)
	} else if r.N > 0 {
		fmt.Fprintf(w, "Data: %d observations\n\n", r.N)
	}

	if len(r.Summaries) > 0 {
		r.writeSummaries(w)
	}
	if len(r.Univariate) > 0 || r.Multivariate != nil {
		r.writeNormality(w)
	}
	if r.Result != nil {
		r.writeFit(w)
		r.writeMeasurement(w)
		r.writeStructural(w)
		r.writeRSquared(w)
		r.writeInterpretation(w)
	}
	return nil
}

func section(w io.Writer, name string) {
	fmt.Fprintln(w, name)
	fmt.Fprintln(w, strings.Repeat("-", len(name)))
}

func (r *Report) writeSummaries(w io.Writer) {
	section(w, "Descriptive statistics")
	fmt.Fprintf(w, "%-12s %6s %8s %8s %6s %6s %9s %9s\n",
		"Variable", "n", "Mean", "SD", "Min", "Max", "Skewness", "Kurtosis")
	for _, s := range r.Summaries {
		fmt.Fprintf(w, "%-12s %6d %8.3f %8.3f %6.1f %6.1f %9.3f %9.3f\n",
			s.Name, s.N, s.Mean, s.SD, s.Min, s.Max, s.Skewness, s.Kurtosis)
	}
	fmt.Fprintln(w)
}

func (r *Report) writeNormality(w io.Writer) {
	section(w, "Normality assessment")
	if len(r.Univariate) > 0 {
		fmt.Fprintf(w, "%-12s %8s %8s  %s\n", "Variable", "W", "p", "Verdict")
		for _, u := range r.Univariate {
			verdict := "normal"
			if !u.Normal {
				verdict = "not normal"
			}
			fmt.Fprintf(w, "%-12s %8.3f %8s  %s\n", u.Variable, u.W, formatP(u.PValue), verdict)
		}
		fmt.Fprintln(w)
	}
	if m := r.Multivariate; m != nil {
		fmt.Fprintf(w, "Mardia skewness: b1p = %.3f, chi2(%d) = %.3f, p %s\n",
			m.Skewness, m.SkewDF, m.SkewStat, formatP(m.SkewP))
		fmt.Fprintf(w, "Mardia kurtosis: b2p = %.3f, z = %.3f, p %s\n",
			m.Kurtosis, m.KurtZ, formatP(m.KurtP))
		if m.Normal {
			fmt.Fprintln(w, "Multivariate normality is not rejected; normal-theory ML is defensible.")
		} else {
			fmt.Fprintln(w, "Multivariate normality is rejected; robust ML (MLM) is recommended.")
		}
		fmt.Fprintln(w)
	}
}

func (r *Report) writeFit(w io.Writer) {
	f := r.Result.Fit
	section(w, "Model fit")
	fmt.Fprintf(w, "Estimator              %s (N = %d, %d iterations)\n",
		r.Result.Estimator, r.Result.N, r.Result.Iterations)
	fmt.Fprintf(w, "Chi-square           %10.3f  df %d  p %s\n", f.ChiSquare, f.DF, formatP(f.PValue))
	if f.ScalingFactor != 1 {
		fmt.Fprintf(w, "Chi-square (scaled)  %10.3f  df %d  p %s  scaling %.3f\n",
			f.ScaledChiSq, f.DF, formatP(f.ScaledPValue), f.ScalingFactor)
	}
	fmt.Fprintf(w, "RMSEA                %10.3f  90%% CI [%.3f, %.3f]  p-close %s\n",
		f.RMSEA, f.RMSEALower, f.RMSEAUpper, formatP(f.RMSEAPClose))
	fmt.Fprintf(w, "CFI                  %10.3f\n", f.CFI)
	fmt.Fprintf(w, "TLI                  %10.3f\n", f.TLI)
	fmt.Fprintf(w, "SRMR                 %10.3f\n", f.SRMR)
	fmt.Fprintf(w, "Baseline chi-square  %10.3f  df %d\n", f.BaselineChiSq, f.BaselineDF)
	fmt.Fprintln(w)
}

func (r *Report) writeMeasurement(w io.Writer) {
	section(w, "Measurement model (standardized loadings)")
	fmt.Fprintf(w, "%-11s %-11s %8s %7s %8s %8s  %-16s\n",
		"Latent", "Indicator", "Loading", "SE", "z", "p", "95% CI")
	for _, m := range r.Result.Measurement {
		fmt.Fprintf(w, "%-11s %-11s %8.3f %7.3f %8.2f %8s  [%.3f, %.3f] %s\n",
			m.Lhs, m.Rhs, m.Std, m.SE, m.Z, formatP(m.PValue), m.CILower, m.CIUpper, sigMark(m.PValue))
	}
	fmt.Fprintln(w)
}

func (r *Report) writeStructural(w io.Writer) {
	if len(r.Result.Structural) == 0 {
		return
	}
	section(w, "Structural model (standardized coefficients)")
	fmt.Fprintf(w, "%-24s %8s %7s %8s %8s  %-16s\n",
		"Path", "Beta", "SE", "z", "p", "95% CI")
	for _, s := range r.Result.Structural {
		path := fmt.Sprintf("%s -> %s", s.Rhs, s.Lhs)
		fmt.Fprintf(w, "%-24s %8.3f %7.3f %8.2f %8s  [%.3f, %.3f] %s\n",
			path, s.Std, s.SE, s.Z, formatP(s.PValue), s.CILower, s.CIUpper, sigMark(s.PValue))
	}
	fmt.Fprintln(w)
}

func (r *Report) writeRSquared(w io.Writer) {
	section(w, "Variance explained")
	fmt.Fprintf(w, "%-12s %8s\n", "Variable", "R2")
	for _, v := range r.Result.RSquared {
		name := v.Variable
		if v.Latent {
			name += " (latent)"
		}
		fmt.Fprintf(w, "%-12s %8.3f\n", name, v.R2)
	}
	fmt.Fprintln(w)
}

func (r *Report) writeInterpretation(w io.Writer) {
	section(w, "Interpretation")
	for _, line := range interpret(r.Result) {
		fmt.Fprintf(w, "- %s\n", line)
	}
}
