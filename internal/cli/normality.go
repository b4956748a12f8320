package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/normality"
)

// NormalityOptions holds flags for the normality command.
type NormalityOptions struct {
	*RootOptions
	Alpha   float64
	Columns []string
}

// NormalityResult holds the combined assessment for JSON output.
type NormalityResult struct {
	DataFile     string                       `json:"data_file"`
	N            int                          `json:"n"`
	Alpha        float64                      `json:"alpha"`
	Univariate   []normality.UnivariateResult `json:"univariate"`
	Multivariate normality.MardiaResult       `json:"multivariate"`
	RecommendMLM bool                         `json:"recommend_mlm"`
}

// NewNormalityCommand creates the normality command.
func NewNormalityCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalityOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normality <data.csv>",
		Short: "Assess univariate and multivariate normality",
		Long: `Run Shapiro-Wilk tests per column and Mardia's multivariate
skewness and kurtosis tests over the full matrix.

Any rejected test is grounds for robust (MLM) estimation, which the
output recommends explicitly.

Examples:
  semfit normality survey.csv
  semfit normality survey.csv --alpha 0.01 --columns sex.fool,sex.harm`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormality(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Alpha, "alpha", 0.05, "significance level")
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "restrict to these columns")

	return cmd
}

func runNormality(opts *NormalityOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	tbl, err := dataset.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load data", err)
	}
	if len(opts.Columns) > 0 {
		tbl, err = tbl.Select(opts.Columns)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to select columns", err)
		}
	}
	formatter.VerboseLog("Loaded %d rows, %d columns from %s", tbl.N(), len(tbl.Columns()), path)

	univariate, err := normality.AssessUnivariate(tbl, opts.Alpha)
	if err != nil {
		return WrapExitError(ExitCommandError, "univariate assessment failed", err)
	}

	multivariate, err := normality.Mardia(tbl, opts.Alpha)
	if err != nil {
		return WrapExitError(ExitCommandError, "multivariate assessment failed", err)
	}

	result := NormalityResult{
		DataFile:     path,
		N:            tbl.N(),
		Alpha:        opts.Alpha,
		Univariate:   univariate,
		Multivariate: multivariate,
	}
	for _, u := range univariate {
		if !u.Normal {
			result.RecommendMLM = true
		}
	}
	if !multivariate.Normal {
		result.RecommendMLM = true
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}
	return outputNormalityText(formatter, result)
}

func outputNormalityText(formatter *OutputFormatter, result NormalityResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Normality assessment: %s (N = %d, alpha = %g)\n\n", result.DataFile, result.N, result.Alpha)

	fmt.Fprintf(w, "%-12s %10s %10s  %s\n", "variable", "W", "p", "normal")
	fmt.Fprintln(w, strings.Repeat("-", 42))
	for _, u := range result.Univariate {
		fmt.Fprintf(w, "%-12s %10.4f %10s  %v\n", u.Variable, u.W, formatPValue(u.PValue), u.Normal)
	}

	m := result.Multivariate
	fmt.Fprintf(w, "\nMardia skewness: b1p = %.4f, chi2(%d) = %.3f, p = %s\n",
		m.Skewness, m.SkewDF, m.SkewStat, formatPValue(m.SkewP))
	fmt.Fprintf(w, "Mardia kurtosis: b2p = %.4f, z = %.3f, p = %s\n",
		m.Kurtosis, m.KurtZ, formatPValue(m.KurtP))

	if result.RecommendMLM {
		fmt.Fprintln(w, "\nNormality rejected: use robust (MLM) estimation.")
	} else {
		fmt.Fprintln(w, "\nNo evidence against normality at this level.")
	}
	return nil
}

// formatPValue renders p-values the way the results tables do.
func formatPValue(p float64) string {
	if p < 0.001 {
		return "<.001"
	}
	return fmt.Sprintf("%.3f", p)
}
