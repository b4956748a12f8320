// Package syntax parses lavaan-style model text into the model IR.
//
// The grammar is line-oriented, three operators:
//
//	latent =~ ind1 + ind2   measurement equation
//	eta ~ xi1 + xi2         structural regression
//	a ~~ b                  covariance term
//
// '#' starts a comment (full line or trailing). Blank lines are ignored.
// Repeated '=~' lines for the same latent append indicators.
package syntax

import (
	"fmt"
	"os"
	"strings"

	"github.com/roach88/semfit/internal/model"
)

// ParseError reports a syntax error with source position.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseFile reads and parses a model file.
func ParseFile(path string) (*model.Spec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return Parse(string(src), path)
}

// Parse parses model source text. filename is used in error positions and
// may be empty.
func Parse(src, filename string) (*model.Spec, error) {
	spec := &model.Spec{}

	for i, raw := range strings.Split(src, "\n") {
		line := raw
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Operator precedence in matching: '=~' and '~~' both contain '~',
		// so they must be tried first.
		var err error
		switch {
		case strings.Contains(line, "=~"):
			err = parseMeasurement(spec, line, filename, i+1)
		case strings.Contains(line, "~~"):
			err = parseCovariance(spec, line, filename, i+1)
		case strings.Contains(line, "~"):
			err = parseRegression(spec, line, filename, i+1)
		default:
			err = &ParseError{File: filename, Line: i + 1,
				Message: fmt.Sprintf("expected one of '=~', '~', '~~' in %q", line)}
		}
		if err != nil {
			return nil, err
		}
	}

	if len(spec.Latents) == 0 {
		return nil, &ParseError{File: filename, Line: 1,
			Message: "model defines no measurement equations"}
	}
	return spec, nil
}

func parseMeasurement(spec *model.Spec, line, file string, n int) error {
	lhs, rhs, err := splitOperator(line, "=~", file, n)
	if err != nil {
		return err
	}
	indicators, err := splitTerms(rhs, file, n)
	if err != nil {
		return err
	}

	for i := range spec.Latents {
		if spec.Latents[i].Name == lhs {
			spec.Latents[i].Indicators = append(spec.Latents[i].Indicators, indicators...)
			return nil
		}
	}
	spec.Latents = append(spec.Latents, model.LatentDef{Name: lhs, Indicators: indicators})
	return nil
}

func parseRegression(spec *model.Spec, line, file string, n int) error {
	lhs, rhs, err := splitOperator(line, "~", file, n)
	if err != nil {
		return err
	}
	predictors, err := splitTerms(rhs, file, n)
	if err != nil {
		return err
	}
	for _, p := range predictors {
		spec.Paths = append(spec.Paths, model.Path{Outcome: lhs, Predictor: p})
	}
	return nil
}

func parseCovariance(spec *model.Spec, line, file string, n int) error {
	lhs, rhs, err := splitOperator(line, "~~", file, n)
	if err != nil {
		return err
	}
	terms, err := splitTerms(rhs, file, n)
	if err != nil {
		return err
	}
	if len(terms) != 1 {
		return &ParseError{File: file, Line: n,
			Message: "covariance takes exactly one right-hand variable"}
	}
	spec.Covariances = append(spec.Covariances, model.Covariance{A: lhs, B: terms[0]})
	return nil
}

// splitOperator splits "lhs op rhs" and validates the left-hand identifier.
func splitOperator(line, op, file string, n int) (lhs, rhs string, err error) {
	parts := strings.SplitN(line, op, 2)
	if len(parts) != 2 {
		return "", "", &ParseError{File: file, Line: n,
			Message: fmt.Sprintf("malformed %q equation", op)}
	}
	lhs = strings.TrimSpace(parts[0])
	rhs = strings.TrimSpace(parts[1])
	if !validIdentifier(lhs) {
		return "", "", &ParseError{File: file, Line: n,
			Message: fmt.Sprintf("invalid variable name %q", lhs)}
	}
	if rhs == "" {
		return "", "", &ParseError{File: file, Line: n,
			Message: fmt.Sprintf("empty right-hand side of %q equation", op)}
	}
	return lhs, rhs, nil
}

// splitTerms splits a "+"-separated term list and validates each identifier.
func splitTerms(rhs, file string, n int) ([]string, error) {
	var terms []string
	for _, t := range strings.Split(rhs, "+") {
		t = strings.TrimSpace(t)
		if !validIdentifier(t) {
			return nil, &ParseError{File: file, Line: n,
				Message: fmt.Sprintf("invalid variable name %q", t)}
		}
		terms = append(terms, t)
	}
	return terms, nil
}

// validIdentifier accepts variable names of the form letter followed by
// letters, digits, '.', '_'. Matches the column-name convention of the
// survey datasets this grammar describes (e.g. "sex.fool", "self.cntl").
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '.' || r == '_'):
		default:
			return false
		}
	}
	return true
}
