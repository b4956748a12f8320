package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStudyFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadStudy_Complete(t *testing.T) {
	dir := t.TempDir()
	path := writeStudyFile(t, dir, `
title: Attitudes toward premarital sex
data: survey.csv
model: attitudes.sem
estimator: mlm
alpha: 0.01
columns:
  - sex.fool
  - sex.harm
`)

	study, err := LoadStudy(path)
	require.NoError(t, err)

	assert.Equal(t, "Attitudes toward premarital sex", study.Title)
	assert.Equal(t, filepath.Join(dir, "survey.csv"), study.Data)
	assert.Equal(t, filepath.Join(dir, "attitudes.sem"), study.Model)
	assert.Equal(t, "mlm", study.Estimator)
	assert.Equal(t, 0.01, study.Alpha)
	assert.Equal(t, []string{"sex.fool", "sex.harm"}, study.Columns)
}

func TestLoadStudy_Defaults(t *testing.T) {
	path := writeStudyFile(t, t.TempDir(), `
data: survey.csv
model: attitudes.sem
`)

	study, err := LoadStudy(path)
	require.NoError(t, err)

	assert.Equal(t, "mlm", study.Estimator)
	assert.Equal(t, 0.05, study.Alpha)
	assert.Equal(t, "Structural equation model", study.Title)
	assert.Empty(t, study.Columns)
}

func TestLoadStudy_RejectsUnknownFields(t *testing.T) {
	path := writeStudyFile(t, t.TempDir(), `
data: survey.csv
model: attitudes.sem
estimater: mlm
`)

	_, err := LoadStudy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimater")
}

func TestLoadStudy_MissingRequiredFields(t *testing.T) {
	for name, content := range map[string]string{
		"data":  "model: attitudes.sem\n",
		"model": "data: survey.csv\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := writeStudyFile(t, t.TempDir(), content)
			_, err := LoadStudy(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoadStudy_BadEstimator(t *testing.T) {
	path := writeStudyFile(t, t.TempDir(), `
data: survey.csv
model: attitudes.sem
estimator: wls
`)

	_, err := LoadStudy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wls")
}

func TestLoadStudy_BadAlpha(t *testing.T) {
	path := writeStudyFile(t, t.TempDir(), `
data: survey.csv
model: attitudes.sem
alpha: 1.5
`)

	_, err := LoadStudy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
}

func TestLoadStudy_FileNotFound(t *testing.T) {
	_, err := LoadStudy(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
