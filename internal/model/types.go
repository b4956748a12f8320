package model

// LatentDef represents one measurement equation: a latent variable defined
// by two or more observed indicators (`latent =~ ind1 + ind2`).
//
// The first indicator is the marker: its loading is fixed to 1 to give the
// latent a scale. All remaining loadings are free parameters.
type LatentDef struct {
	Name       string   `json:"name"`
	Indicators []string `json:"indicators"`
}

// Path represents one structural regression path (`outcome ~ predictor`).
// A source line `eta ~ a + b + c` expands to three Path entries sharing the
// same outcome, in source order.
type Path struct {
	Outcome   string `json:"outcome"`
	Predictor string `json:"predictor"`
}

// Covariance represents an explicit covariance term (`a ~~ b`).
//
// Covariances among exogenous latents are free by default and need not be
// declared; explicit latent-latent terms are accepted as documentation.
// Indicator-indicator terms add a free residual covariance.
type Covariance struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Spec is a compiled model specification.
//
// Order is significant everywhere: latents, indicators within a latent,
// and paths keep their source order, and every derived enumeration
// (FreeParameters, Indicators) is deterministic so that identical model text
// always produces an identical parameter vector layout.
type Spec struct {
	Latents     []LatentDef  `json:"latents"`
	Paths       []Path       `json:"paths"`
	Covariances []Covariance `json:"covariances,omitempty"`
}

// Latent returns the definition for the named latent variable.
func (s *Spec) Latent(name string) (LatentDef, bool) {
	for _, l := range s.Latents {
		if l.Name == name {
			return l, true
		}
	}
	return LatentDef{}, false
}

// IsLatent reports whether name refers to a declared latent variable.
func (s *Spec) IsLatent(name string) bool {
	_, ok := s.Latent(name)
	return ok
}

// Indicators returns all observed indicators in canonical order:
// latents in declaration order, indicators in declaration order within each.
func (s *Spec) Indicators() []string {
	var out []string
	for _, l := range s.Latents {
		out = append(out, l.Indicators...)
	}
	return out
}

// LatentNames returns all latent names in declaration order.
func (s *Spec) LatentNames() []string {
	out := make([]string, len(s.Latents))
	for i, l := range s.Latents {
		out[i] = l.Name
	}
	return out
}

// Endogenous returns latents with at least one incoming regression path,
// in declaration order.
func (s *Spec) Endogenous() []string {
	dep := make(map[string]bool)
	for _, p := range s.Paths {
		dep[p.Outcome] = true
	}
	var out []string
	for _, l := range s.Latents {
		if dep[l.Name] {
			out = append(out, l.Name)
		}
	}
	return out
}

// Exogenous returns latents with no incoming regression path,
// in declaration order.
func (s *Spec) Exogenous() []string {
	dep := make(map[string]bool)
	for _, p := range s.Paths {
		dep[p.Outcome] = true
	}
	var out []string
	for _, l := range s.Latents {
		if !dep[l.Name] {
			out = append(out, l.Name)
		}
	}
	return out
}

// ParentLatent returns the latent a given indicator loads on.
func (s *Spec) ParentLatent(indicator string) (string, bool) {
	for _, l := range s.Latents {
		for _, ind := range l.Indicators {
			if ind == indicator {
				return l.Name, true
			}
		}
	}
	return "", false
}
