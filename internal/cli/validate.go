package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/semfit/internal/model"
	"github.com/roach88/semfit/internal/syntax"
)

// ValidationResult holds validation results for one model file.
type ValidationResult struct {
	Valid      bool                    `json:"valid"`
	Latents    int                     `json:"latents"`
	Indicators int                     `json:"indicators"`
	Parameters int                     `json:"parameters"`
	DF         int                     `json:"df,omitempty"`
	Errors     []model.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <model.sem>",
		Short: "Check model syntax and identification",
		Long: `Parse a model file and check it for structural defects.

Reports the free-parameter count and degrees of freedom without touching
any data. Identification problems (more free parameters than sample
moments) are reported as validation errors.

Exit codes:
  0 - Model is valid
  1 - Syntax or validation errors
  2 - Command error (file not readable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	spec, err := syntax.ParseFile(path)
	if err != nil {
		var parseErr *syntax.ParseError
		if errors.As(err, &parseErr) {
			_ = formatter.Error("PARSE", parseErr.Error(), nil)
			return NewExitError(ExitFailure, parseErr.Error())
		}
		return WrapExitError(ExitCommandError, "failed to read model file", err)
	}

	formatter.VerboseLog("Parsed %d latent(s), %d indicator(s)", len(spec.Latents), len(spec.Indicators()))

	result := ValidationResult{
		Latents:    len(spec.Latents),
		Indicators: len(spec.Indicators()),
		Parameters: len(spec.FreeParameters()),
	}

	validationErrors := spec.Validate()
	if len(validationErrors) > 0 {
		result.Errors = validationErrors
		return outputValidationErrors(formatter, result)
	}

	result.Valid = true
	result.DF = spec.DegreesOfFreedom()

	return outputValidateSuccess(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result})
	}

	fmt.Fprintln(formatter.Writer, "✓ Model valid")
	fmt.Fprintf(formatter.Writer, "  latents: %d  indicators: %d  free parameters: %d  df: %d\n",
		result.Latents, result.Indicators, result.Parameters, result.DF)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    result.Errors[0].Code,
				Message: result.Errors[0].Message,
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, verr := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", verr.Code, verr.Field, verr.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
