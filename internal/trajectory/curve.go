package trajectory

import (
	"gonum.org/v1/gonum/floats"
)

// SessionOffset maps a 0-based delta index onto the 1-based session schedule.
// Session 1 precedes the first observed delta, so delta i closes session i+2.
const SessionOffset = 2

// Curve is one subject's smoothed cumulative progress and detected demand.
type Curve struct {
	Points []float64
	Demand int
}

// MovingAverage applies a centred moving average with the given window.
// Edges are zero padded and the output keeps the input length. Sequences
// shorter than the window, and windows of one or less, are returned unchanged.
func MovingAverage(deltas []float64, window int) []float64 {
	out := make([]float64, len(deltas))
	n := len(deltas)
	if n < window || window <= 1 {
		copy(out, deltas)
		return out
	}
	// even windows lean left, matching a "same" convolution
	left := window / 2
	right := window - 1 - left
	scale := 1 / float64(window)
	for i := range n {
		lo := max(i-left, 0)
		hi := min(i+right, n-1)
		out[i] = floats.Sum(deltas[lo:hi+1]) * scale
	}
	return out
}

// Cumulative returns the running total of values.
func Cumulative(values []float64) []float64 {
	return floats.CumSum(make([]float64, len(values)), values)
}

// DemandIndex returns the first index at which cumulative reaches alpha times
// its final value. An empty curve, or one where no point qualifies, yields 0.
func DemandIndex(cumulative []float64, alpha float64) int {
	if len(cumulative) == 0 {
		return 0
	}
	target := alpha * cumulative[len(cumulative)-1]
	for i, value := range cumulative {
		if value >= target {
			return i
		}
	}
	return 0
}

// Build smooths deltas, accumulates them, and detects the session-space demand.
func Build(deltas []float64, window int, alpha float64) Curve {
	points := Cumulative(MovingAverage(deltas, window))
	return Curve{
		Points: points,
		Demand: DemandIndex(points, alpha) + SessionOffset,
	}
}
