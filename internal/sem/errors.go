package sem

import (
	"errors"
	"fmt"
)

// EstimationError represents a failure of the estimation procedure.
//
// Estimation errors include:
//   - Under-identification: more free parameters than sample moments
//   - Non-convergence: the optimizer did not reach a stationary point
//   - Non-positive-definite matrices: sample or implied covariance
//   - Inadmissible solution: negative variance estimates (Heywood case)
//
// All are fatal for a run; there is no retry or partial-result policy.
type EstimationError struct {
	// Code identifies the error category.
	Code EstimationErrorCode

	// Message is a human-readable description.
	Message string

	// Parameter names the offending parameter, when one exists.
	Parameter string

	// Details contains additional context.
	Details map[string]string
}

// EstimationErrorCode categorizes estimation errors.
type EstimationErrorCode string

const (
	// ErrCodeUnderIdentified indicates negative degrees of freedom.
	ErrCodeUnderIdentified EstimationErrorCode = "UNDER_IDENTIFIED"

	// ErrCodeNotConverged indicates the optimizer failed to converge.
	ErrCodeNotConverged EstimationErrorCode = "NOT_CONVERGED"

	// ErrCodeNotPositiveDefinite indicates a covariance matrix that is not
	// positive definite (sample or model-implied).
	ErrCodeNotPositiveDefinite EstimationErrorCode = "NOT_POSITIVE_DEFINITE"

	// ErrCodeNegativeVariance indicates an inadmissible solution with a
	// negative variance estimate.
	ErrCodeNegativeVariance EstimationErrorCode = "NEGATIVE_VARIANCE"

	// ErrCodeBadData indicates the data cannot support estimation
	// (missing model columns, too few observations).
	ErrCodeBadData EstimationErrorCode = "BAD_DATA"
)

// Error implements the error interface.
func (e *EstimationError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("%s: %s (parameter %q)", e.Code, e.Message, e.Parameter)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConvergenceError reports whether err is a non-convergence failure.
// Uses errors.As to handle wrapped errors.
func IsConvergenceError(err error) bool {
	var ee *EstimationError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeNotConverged
	}
	return false
}

// IsInadmissible reports whether err marks an inadmissible solution
// (negative variance or non-positive-definite implied covariance).
func IsInadmissible(err error) bool {
	var ee *EstimationError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeNegativeVariance || ee.Code == ErrCodeNotPositiveDefinite
	}
	return false
}

func newUnderIdentifiedError(free, moments int) *EstimationError {
	return &EstimationError{
		Code:    ErrCodeUnderIdentified,
		Message: fmt.Sprintf("%d free parameters exceed %d sample moments", free, moments),
		Details: map[string]string{
			"free_parameters": fmt.Sprintf("%d", free),
			"sample_moments":  fmt.Sprintf("%d", moments),
		},
	}
}

func newNotConvergedError(iterations int, gradNorm float64) *EstimationError {
	return &EstimationError{
		Code:    ErrCodeNotConverged,
		Message: "optimizer did not reach a stationary point",
		Details: map[string]string{
			"iterations":    fmt.Sprintf("%d", iterations),
			"gradient_norm": fmt.Sprintf("%g", gradNorm),
		},
	}
}
