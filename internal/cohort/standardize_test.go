package cohort_test

import (
	"math"
	"testing"

	"cohortaudit/internal/cohort"
)

func TestStandardizeColumnsHaveZeroMeanUnitVariance(t *testing.T) {
	rows := [][]float64{{1, 10}, {2, 20}, {3, 30}, {4, 40}}
	out := cohort.Standardize(rows)
	for j := range 2 {
		var sum, sq float64
		for i := range out {
			sum += out[i][j]
		}
		mean := sum / float64(len(out))
		for i := range out {
			sq += (out[i][j] - mean) * (out[i][j] - mean)
		}
		if math.Abs(mean) > 1e-12 {
			t.Fatalf("column %d mean %v", j, mean)
		}
		if math.Abs(sq/float64(len(out))-1) > 1e-12 {
			t.Fatalf("column %d variance %v", j, sq/float64(len(out)))
		}
	}
	if rows[0][0] != 1 {
		t.Fatal("Standardize must not modify its input")
	}
}

func TestStandardizeConstantColumnIsCentredWithoutNaN(t *testing.T) {
	rows := [][]float64{{5, 1}, {5, 2}, {5, 3}}
	out := cohort.Standardize(rows)
	for i := range out {
		if math.IsNaN(out[i][0]) || out[i][0] != 0 {
			t.Fatalf("expected zero for constant column, got %v", out[i][0])
		}
	}
}

func TestStandardizeEmpty(t *testing.T) {
	if out := cohort.Standardize(nil); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}
