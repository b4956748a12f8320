package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/sem"
	"github.com/roach88/semfit/internal/store"
	"github.com/roach88/semfit/internal/syntax"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay outcome for a single run.
type ReplayRunResult struct {
	RunID         string   `json:"run_id"`
	DataFile      string   `json:"data_file"`
	Estimator     string   `json:"estimator"`
	Parameters    int      `json:"parameters"`
	Deterministic bool     `json:"deterministic"`
	DataChanged   bool     `json:"data_changed"`
	ModelChanged  bool     `json:"model_changed"`
	Mismatches    []string `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-fit recorded runs and verify determinism",
		Long: `Re-fit every recorded run against its data file and compare the
estimates bit for bit against the stored values.

Estimation is deterministic for fixed inputs, so any difference means an
input changed (the data file or the model) or the implementation drifted.
Both are reported per run.

Exit codes:
  0 - All runs reproduced exactly
  1 - Determinism verification failed (differences detected)
  2 - Command error (database or data file not readable)

Examples:
  semfit replay --db runs.db
  semfit replay --db runs.db --run 8a2f...
  semfit replay --db runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay a specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []*store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []*store.Run{run}
	} else {
		listed, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		// ListRuns omits estimates; load each run in full
		for _, r := range listed {
			full, err := st.ReadRun(ctx, r.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read run", err)
			}
			runs = append(runs, full)
		}
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: ReplayResult{
				Runs:             []ReplayRunResult{},
				AllDeterministic: true,
			}})
		}
		fmt.Fprintln(formatter.Writer, "No runs found in database.")
		return nil
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	for _, run := range runs {
		runResult, err := replayRun(run, formatter)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		if err := formatter.JSON(CLIResponse{Status: "ok", Data: result}); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayRun re-fits one stored run and verifies the estimates.
func replayRun(run *store.Run, formatter *OutputFormatter) (ReplayRunResult, error) {
	formatter.VerboseLog("Replaying run %s (%s)", run.ID, run.DataFile)

	tbl, err := dataset.Load(run.DataFile)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("load data: %w", err)
	}

	spec, err := syntax.Parse(run.ModelText, run.ID)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("parse stored model: %w", err)
	}

	res, err := sem.Fit(tbl, spec, sem.Options{Estimator: sem.Estimator(run.Estimator)})
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("re-fit: %w", err)
	}

	v := run.Verify(res, tbl.Digest())
	return ReplayRunResult{
		RunID:         run.ID,
		DataFile:      run.DataFile,
		Estimator:     run.Estimator,
		Parameters:    len(run.Estimates),
		Deterministic: v.Deterministic,
		DataChanged:   v.DataChanged,
		ModelChanged:  v.ModelChanged,
		Mismatches:    v.Mismatches,
	}, nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer

	for _, run := range result.Runs {
		mark := "✓"
		if !run.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s  %s  %d parameter(s)\n", mark, run.RunID, run.Estimator, run.DataFile, run.Parameters)
		for _, m := range run.Mismatches {
			fmt.Fprintf(w, "    %s\n", m)
		}
	}

	fmt.Fprintln(w)
	if result.AllDeterministic {
		fmt.Fprintf(w, "All %d run(s) reproduced bit for bit.\n", result.TotalRuns)
	} else {
		fmt.Fprintf(w, "Determinism verification failed.\n")
	}
}
