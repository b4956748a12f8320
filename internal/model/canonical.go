package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Canonical renders the model in canonical text form: measurement equations
// in declaration order, structural equations grouped by outcome, explicit
// covariances last. Canonical text is the stored representation of a model
// (the run store records it, and its digest keys replay comparisons), so the
// rendering must be byte-stable for a given Spec.
func (s *Spec) Canonical() string {
	var b strings.Builder

	for _, l := range s.Latents {
		b.WriteString(l.Name)
		b.WriteString(" =~ ")
		b.WriteString(strings.Join(l.Indicators, " + "))
		b.WriteByte('\n')
	}

	// Group paths by outcome, preserving first-appearance order.
	var outcomes []string
	byOutcome := make(map[string][]string)
	for _, p := range s.Paths {
		if _, ok := byOutcome[p.Outcome]; !ok {
			outcomes = append(outcomes, p.Outcome)
		}
		byOutcome[p.Outcome] = append(byOutcome[p.Outcome], p.Predictor)
	}
	for _, out := range outcomes {
		b.WriteString(out)
		b.WriteString(" ~ ")
		b.WriteString(strings.Join(byOutcome[out], " + "))
		b.WriteByte('\n')
	}

	for _, c := range s.Covariances {
		b.WriteString(c.A)
		b.WriteString(" ~~ ")
		b.WriteString(c.B)
		b.WriteByte('\n')
	}

	return b.String()
}

// Digest returns the hex SHA-256 of the canonical rendering. Two specs with
// the same digest describe the same model.
func (s *Spec) Digest() string {
	sum := sha256.Sum256([]byte(s.Canonical()))
	return hex.EncodeToString(sum[:])
}
