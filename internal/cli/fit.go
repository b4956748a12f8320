package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/report"
	"github.com/roach88/semfit/internal/sem"
	"github.com/roach88/semfit/internal/store"
	"github.com/roach88/semfit/internal/syntax"
)

// FitOptions holds flags for the fit command.
type FitOptions struct {
	*RootOptions
	Model     string
	Estimator string
	Database  string
}

// NewFitCommand creates the fit command.
func NewFitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fit <data.csv>",
		Short: "Estimate a model against data",
		Long: `Estimate the model by maximum likelihood and print fit statistics
and standardized parameter tables.

The default estimator is MLM: identical point estimates to ML, but with
Satorra-Bentler scaled test statistics and sandwich standard errors, the
appropriate choice for the ordinal survey scales this tool targets.

With --db, the run is recorded to SQLite for later replay verification.

Exit codes:
  0 - Estimation converged to an admissible solution
  1 - Invalid model, non-convergence or inadmissible solution
  2 - Command error (missing files, unreadable database)

Examples:
  semfit fit survey.csv --model attitudes.sem
  semfit fit survey.csv --model attitudes.sem --estimator ml
  semfit fit survey.csv --model attitudes.sem --db runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "path to model file (required)")
	_ = cmd.MarkFlagRequired("model")
	cmd.Flags().StringVar(&opts.Estimator, "estimator", "mlm", "estimator (ml|mlm)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")

	return cmd
}

func runFit(opts *FitOptions, dataPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	estimator, err := parseEstimator(opts.Estimator)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid estimator", err)
	}

	tbl, err := dataset.Load(dataPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load data", err)
	}
	slog.Debug("data loaded", "file", dataPath, "rows", tbl.N(), "digest", tbl.Digest())

	spec, err := syntax.ParseFile(opts.Model)
	if err != nil {
		var parseErr *syntax.ParseError
		if errors.As(err, &parseErr) {
			_ = formatter.Error("PARSE", parseErr.Error(), nil)
			return NewExitError(ExitFailure, parseErr.Error())
		}
		return WrapExitError(ExitCommandError, "failed to read model file", err)
	}

	res, err := sem.Fit(tbl, spec, sem.Options{Estimator: estimator})
	if err != nil {
		return outputFitError(formatter, err)
	}
	slog.Debug("estimation converged",
		"iterations", res.Iterations,
		"discrepancy", res.Discrepancy,
		"chisq", res.Fit.ChiSquare)

	if opts.Database != "" {
		runID, err := recordRun(cmd.Context(), opts.Database, res, dataPath, tbl.Digest())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		formatter.VerboseLog("Run recorded: %s", runID)
		slog.Info("run recorded", "db", opts.Database, "run", runID)
	}

	rep := &report.Report{
		Title:    "Model fit",
		DataFile: dataPath,
		N:        res.N,
		Result:   res,
	}
	if opts.Format == "json" {
		return rep.WriteJSON(formatter.Writer)
	}
	return rep.WriteText(formatter.Writer)
}

// parseEstimator maps the flag value onto an estimator constant.
func parseEstimator(s string) (sem.Estimator, error) {
	switch strings.ToLower(s) {
	case "ml":
		return sem.EstimatorML, nil
	case "mlm", "":
		return sem.EstimatorMLM, nil
	default:
		return "", fmt.Errorf("unknown estimator %q (want ml or mlm)", s)
	}
}

// recordRun persists a fitted result and returns the new run ID.
func recordRun(ctx context.Context, dbPath string, res *sem.Result, dataFile, dataDigest string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	run := store.NewRun(res, dataFile, dataDigest)
	if err := st.WriteRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}

// outputFitError renders an estimation failure with its machine code.
func outputFitError(formatter *OutputFormatter, err error) error {
	var estErr *sem.EstimationError
	if errors.As(err, &estErr) {
		_ = formatter.Error(string(estErr.Code), estErr.Message, estErr.Details)
		return NewExitError(ExitFailure, estErr.Error())
	}
	_ = formatter.Error("ESTIMATION", err.Error(), nil)
	return NewExitError(ExitFailure, err.Error())
}
