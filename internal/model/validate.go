package model

import "fmt"

// Validation error codes (M100-M199)
const (
	ErrNoLatents           = "M100" // model must define at least one latent
	ErrDuplicateLatent     = "M101" // latent defined twice
	ErrTooFewIndicators    = "M102" // latent needs at least two indicators
	ErrDuplicateIndicator  = "M103" // indicator loads on two latents
	ErrUnknownPathVariable = "M104" // regression references undefined latent
	ErrDuplicatePath       = "M105" // same regression path declared twice
	ErrUnknownCovVariable  = "M106" // covariance references unknown variable
	ErrSelfCovariance      = "M107" // covariance of a variable with itself
	ErrUnderIdentified     = "M108" // more free parameters than sample moments
)

// ValidationError describes one structural defect in a model specification.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a Spec for structural defects.
// Returns all errors found (does not fail-fast).
func (s *Spec) Validate() []ValidationError {
	var errs []ValidationError

	if len(s.Latents) == 0 {
		errs = append(errs, ValidationError{
			Field:   "latents",
			Message: "model must define at least one latent variable",
			Code:    ErrNoLatents,
		})
		return errs
	}

	seenLatent := make(map[string]bool)
	seenIndicator := make(map[string]string)
	for _, l := range s.Latents {
		if seenLatent[l.Name] {
			errs = append(errs, ValidationError{
				Field:   l.Name,
				Message: "latent variable defined more than once",
				Code:    ErrDuplicateLatent,
			})
		}
		seenLatent[l.Name] = true

		if len(l.Indicators) < 2 {
			errs = append(errs, ValidationError{
				Field:   l.Name,
				Message: fmt.Sprintf("latent has %d indicator(s), need at least 2", len(l.Indicators)),
				Code:    ErrTooFewIndicators,
			})
		}
		for _, ind := range l.Indicators {
			if prev, ok := seenIndicator[ind]; ok {
				errs = append(errs, ValidationError{
					Field:   ind,
					Message: fmt.Sprintf("indicator already loads on %q", prev),
					Code:    ErrDuplicateIndicator,
				})
				continue
			}
			seenIndicator[ind] = l.Name
		}
	}

	seenPath := make(map[string]bool)
	for _, p := range s.Paths {
		if !seenLatent[p.Outcome] {
			errs = append(errs, ValidationError{
				Field:   p.Outcome,
				Message: "regression outcome is not a defined latent",
				Code:    ErrUnknownPathVariable,
			})
		}
		if !seenLatent[p.Predictor] {
			errs = append(errs, ValidationError{
				Field:   p.Predictor,
				Message: "regression predictor is not a defined latent",
				Code:    ErrUnknownPathVariable,
			})
		}
		key := p.Outcome + "~" + p.Predictor
		if seenPath[key] {
			errs = append(errs, ValidationError{
				Field:   key,
				Message: "regression path declared more than once",
				Code:    ErrDuplicatePath,
			})
		}
		seenPath[key] = true
	}

	for _, c := range s.Covariances {
		if c.A == c.B {
			errs = append(errs, ValidationError{
				Field:   c.A,
				Message: "covariance of a variable with itself (variances are free by default)",
				Code:    ErrSelfCovariance,
			})
			continue
		}
		for _, v := range []string{c.A, c.B} {
			if !seenLatent[v] && seenIndicator[v] == "" {
				errs = append(errs, ValidationError{
					Field:   v,
					Message: "covariance references a variable that is neither a latent nor an indicator",
					Code:    ErrUnknownCovVariable,
				})
			}
		}
	}

	// Identification is a necessary-condition check only: df >= 0.
	// Empirical identification is left to the estimator.
	if len(errs) == 0 && s.DegreesOfFreedom() < 0 {
		errs = append(errs, ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("under-identified: %d free parameters exceed %d sample moments", len(s.FreeParameters()), s.SampleMoments()),
			Code:    ErrUnderIdentified,
		})
	}

	return errs
}
