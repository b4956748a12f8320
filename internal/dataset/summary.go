package dataset

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ColumnSummary holds descriptive statistics for one indicator.
// Skewness and Kurtosis are the sample moment coefficients (kurtosis as
// excess, 0 under normality).
type ColumnSummary struct {
	Name     string  `json:"name"`
	N        int     `json:"n"`
	Mean     float64 `json:"mean"`
	SD       float64 `json:"sd"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// Summaries returns descriptive statistics for every column, in column
// order.
func (t *Table) Summaries() []ColumnSummary {
	out := make([]ColumnSummary, len(t.names))
	buf := make([]float64, t.N())
	for j, name := range t.names {
		mat.Col(buf, j, t.data)
		mean, sd := stat.MeanStdDev(buf, nil)

		min, max := buf[0], buf[0]
		for _, v := range buf[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}

		out[j] = ColumnSummary{
			Name:     name,
			N:        len(buf),
			Mean:     mean,
			SD:       sd,
			Min:      min,
			Max:      max,
			Skewness: stat.Skew(buf, nil),
			Kurtosis: stat.ExKurtosis(buf, nil),
		}
	}
	return out
}

// CovarianceMatrix returns the sample covariance matrix of the table
// (denominator n-1).
func (t *Table) CovarianceMatrix() *mat.SymDense {
	p := len(t.names)
	cov := mat.NewSymDense(p, nil)
	stat.CovarianceMatrix(cov, t.data, nil)
	return cov
}
