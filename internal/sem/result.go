package sem

import (
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/semfit/internal/model"
)

// Estimator selects the estimation variant.
type Estimator string

const (
	// EstimatorML is plain maximum likelihood: normal-theory standard
	// errors and unscaled test statistic.
	EstimatorML Estimator = "ML"

	// EstimatorMLM is robust maximum likelihood: same point estimates,
	// sandwich standard errors and the Satorra-Bentler scaled test
	// statistic. The default for non-normal continuous data.
	EstimatorMLM Estimator = "MLM"
)

// ParameterEstimate is one free parameter with its sampling information.
// SE, Z, PValue and the confidence bounds use the estimator's standard
// errors (sandwich for MLM, normal-theory for ML).
type ParameterEstimate struct {
	Param   model.Param `json:"param"`
	Est     float64     `json:"est"`
	SE      float64     `json:"se"`
	Z       float64     `json:"z"`
	PValue  float64     `json:"p_value"`
	CILower float64     `json:"ci_lower"`
	CIUpper float64     `json:"ci_upper"`
}

// StdEstimate is one standardized estimate (loading or structural
// coefficient) with delta-method sampling information.
type StdEstimate struct {
	Lhs     string  `json:"lhs"`
	Op      string  `json:"op"`
	Rhs     string  `json:"rhs"`
	Est     float64 `json:"est"` // unstandardized (1.0 for marker loadings)
	Std     float64 `json:"std"`
	SE      float64 `json:"se"` // delta-method SE of the standardized value
	Z       float64 `json:"z"`
	PValue  float64 `json:"p_value"`
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
}

// RSquare is the proportion of variance explained for one dependent
// variable: an indicator, or an endogenous latent.
type RSquare struct {
	Variable string  `json:"variable"`
	Latent   bool    `json:"latent"`
	R2       float64 `json:"r2"`
}

// FitIndices holds the global goodness-of-fit statistics.
//
// The Scaled fields repeat the plain statistic for EstimatorML; for
// EstimatorMLM they carry the Satorra-Bentler corrected values, and
// RMSEA/CFI/TLI are computed from the scaled statistics.
type FitIndices struct {
	ChiSquare     float64 `json:"chisq"`
	DF            int     `json:"df"`
	PValue        float64 `json:"p_value"`
	ScalingFactor float64 `json:"scaling_factor"`
	ScaledChiSq   float64 `json:"chisq_scaled"`
	ScaledPValue  float64 `json:"p_value_scaled"`

	RMSEA       float64 `json:"rmsea"`
	RMSEALower  float64 `json:"rmsea_ci_lower"` // 90% interval
	RMSEAUpper  float64 `json:"rmsea_ci_upper"`
	RMSEAPClose float64 `json:"rmsea_p_close"` // H0: RMSEA <= .05

	CFI  float64 `json:"cfi"`
	TLI  float64 `json:"tli"`
	SRMR float64 `json:"srmr"`

	BaselineChiSq float64 `json:"baseline_chisq"`
	BaselineDF    int     `json:"baseline_df"`
}

// Result is the fitted model object. It is immutable after estimation; all
// reporting is a read-only projection of its fields.
type Result struct {
	Spec      *model.Spec `json:"spec"`
	Estimator Estimator   `json:"estimator"`
	N         int         `json:"n"`

	// Theta holds the free-parameter point estimates in the canonical
	// order of Spec.FreeParameters.
	Theta []float64 `json:"theta"`

	Parameters  []ParameterEstimate `json:"parameters"`
	Measurement []StdEstimate       `json:"measurement"`
	Structural  []StdEstimate       `json:"structural"`
	RSquared    []RSquare           `json:"r_squared"`
	Fit         FitIndices          `json:"fit"`

	Discrepancy float64 `json:"discrepancy"` // minimized F_ML
	Iterations  int     `json:"iterations"`

	sampleCov  *mat.SymDense
	impliedCov *mat.SymDense
}

// SampleCov returns the sample covariance matrix the model was fitted to.
func (r *Result) SampleCov() *mat.SymDense { return r.sampleCov }

// ImpliedCov returns the model-implied covariance matrix at the solution.
func (r *Result) ImpliedCov() *mat.SymDense { return r.impliedCov }
