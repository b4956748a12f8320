package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/normality"
	"github.com/roach88/semfit/internal/report"
	"github.com/roach88/semfit/internal/sem"
	"github.com/roach88/semfit/internal/syntax"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <study.yaml>",
		Short: "Run a full study and render the narrative report",
		Long: `Run the complete analysis a study file describes: dataset
descriptives, normality screening, model estimation, fit assessment and
standardized parameter tables, rendered as one report.

The study file names the data, the model, the estimator and the alpha
level; see examples/attitudes/study.yaml for the layout.

Exit codes:
  0 - Report produced
  1 - Invalid model, non-convergence or inadmissible solution
  2 - Command error (study, data or model file not readable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runReport(opts *RootOptions, studyPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	study, err := LoadStudy(studyPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load study", err)
	}
	estimator, err := parseEstimator(study.Estimator)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid estimator", err)
	}
	slog.Debug("study loaded", "title", study.Title, "data", study.Data, "model", study.Model)

	tbl, err := dataset.Load(study.Data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load data", err)
	}
	if len(study.Columns) > 0 {
		tbl, err = tbl.Select(study.Columns)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to select columns", err)
		}
	}
	formatter.VerboseLog("Loaded %d rows, %d columns from %s", tbl.N(), len(tbl.Columns()), study.Data)

	spec, err := syntax.ParseFile(study.Model)
	if err != nil {
		var parseErr *syntax.ParseError
		if errors.As(err, &parseErr) {
			_ = formatter.Error("PARSE", parseErr.Error(), nil)
			return NewExitError(ExitFailure, parseErr.Error())
		}
		return WrapExitError(ExitCommandError, "failed to read model file", err)
	}

	univariate, err := normality.AssessUnivariate(tbl, study.Alpha)
	if err != nil {
		return WrapExitError(ExitCommandError, "univariate assessment failed", err)
	}
	multivariate, err := normality.Mardia(tbl, study.Alpha)
	if err != nil {
		return WrapExitError(ExitCommandError, "multivariate assessment failed", err)
	}

	res, err := sem.Fit(tbl, spec, sem.Options{Estimator: estimator})
	if err != nil {
		return outputFitError(formatter, err)
	}
	slog.Debug("estimation converged", "iterations", res.Iterations, "chisq", res.Fit.ChiSquare)

	rep := &report.Report{
		Title:        study.Title,
		DataFile:     study.Data,
		N:            tbl.N(),
		Alpha:        study.Alpha,
		Summaries:    tbl.Summaries(),
		Univariate:   univariate,
		Multivariate: &multivariate,
		Result:       res,
	}

	if opts.Format == "json" {
		return rep.WriteJSON(formatter.Writer)
	}
	return rep.WriteText(formatter.Writer)
}
