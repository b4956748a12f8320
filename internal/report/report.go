// Package report renders the narrative analysis report: dataset
// descriptives, normality assessment, model fit, and parameter tables.
//
// Rendering is a read-only projection of the fitted model object; nothing
// here computes statistics. Text and JSON renderings carry the same
// content.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/roach88/semfit/internal/dataset"
	"github.com/roach88/semfit/internal/normality"
	"github.com/roach88/semfit/internal/sem"
)

// Report aggregates everything one analysis run produced. Sections left nil
// are omitted from the rendering.
type Report struct {
	Title        string                       `json:"title"`
	DataFile     string                       `json:"data_file,omitempty"`
	N            int                          `json:"n"`
	Alpha        float64                      `json:"alpha"`
	Summaries    []dataset.ColumnSummary      `json:"summaries,omitempty"`
	Univariate   []normality.UnivariateResult `json:"univariate,omitempty"`
	Multivariate *normality.MardiaResult      `json:"multivariate,omitempty"`
	Result       *sem.Result                  `json:"result,omitempty"`
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// formatP renders a p-value the way results sections print them: "<.001"
// below that threshold, three decimals otherwise.
func formatP(p float64) string {
	if math.IsNaN(p) {
		return "n/a"
	}
	if p < 0.001 {
		return "<.001"
	}
	return fmt.Sprintf("%.3f", p)
}

func sigMark(p float64) string {
	switch {
	case math.IsNaN(p):
		return ""
	case p < 0.001:
		return "***"
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	default:
		return ""
	}
}
