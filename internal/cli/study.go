package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Study defines a full analysis: where the data and model live, which
// estimator to use, and how to render the report. Relative paths are
// resolved against the study file location.
type Study struct {
	// Title heads the rendered report.
	Title string `yaml:"title"`

	// Data is the path to the CSV data file.
	Data string `yaml:"data"`

	// Model is the path to the model syntax file.
	Model string `yaml:"model"`

	// Estimator is "ml" or "mlm". Defaults to "mlm".
	Estimator string `yaml:"estimator,omitempty"`

	// Alpha is the significance level for the normality tests.
	// Defaults to 0.05.
	Alpha float64 `yaml:"alpha,omitempty"`

	// Columns optionally restricts the analysis to a subset of columns.
	// If empty, every column of the data file is used.
	Columns []string `yaml:"columns,omitempty"`
}

// LoadStudy reads and validates a study file. Unknown YAML fields are
// rejected to catch typos in hand-written configs.
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields

	var study Study
	if err := decoder.Decode(&study); err != nil {
		return nil, fmt.Errorf("parse study file %s: %w", path, err)
	}

	if study.Data == "" {
		return nil, fmt.Errorf("study file %s: missing required field 'data'", path)
	}
	if study.Model == "" {
		return nil, fmt.Errorf("study file %s: missing required field 'model'", path)
	}
	if study.Estimator == "" {
		study.Estimator = "mlm"
	}
	if _, err := parseEstimator(study.Estimator); err != nil {
		return nil, fmt.Errorf("study file %s: %w", path, err)
	}
	if study.Alpha == 0 {
		study.Alpha = 0.05
	}
	if study.Alpha < 0 || study.Alpha >= 1 {
		return nil, fmt.Errorf("study file %s: alpha %g outside (0, 1)", path, study.Alpha)
	}
	if study.Title == "" {
		study.Title = "Structural equation model"
	}

	// Resolve data/model paths relative to the study file
	base := filepath.Dir(path)
	if !filepath.IsAbs(study.Data) {
		study.Data = filepath.Join(base, study.Data)
	}
	if !filepath.IsAbs(study.Model) {
		study.Model = filepath.Join(base, study.Model)
	}

	return &study, nil
}
