package cohort

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// zeroScale is the spread below which a column is treated as constant.
const zeroScale = 10 * 2.220446049250313e-16

// Standardize returns a copy of rows where each column has zero mean and unit
// population variance. Constant columns are only centred.
func Standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	width := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range rows {
		out[i] = make([]float64, width)
	}
	column := make([]float64, len(rows))
	for j := range width {
		for i, row := range rows {
			column[i] = row[j]
		}
		mean, variance := stat.PopMeanVariance(column, nil)
		scale := math.Sqrt(variance)
		if scale < zeroScale || math.IsNaN(scale) {
			scale = 1
		}
		for i, row := range rows {
			out[i][j] = (row[j] - mean) / scale
		}
	}
	return out
}
