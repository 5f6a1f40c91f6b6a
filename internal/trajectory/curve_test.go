package trajectory_test

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"cohortaudit/internal/trajectory"
)

func TestMovingAverageIdentityCases(t *testing.T) {
	deltas := []float64{1, 4, 2}
	cases := []struct {
		name   string
		window int
	}{
		{"window one", 1},
		{"window zero", 0},
		{"negative window", -3},
		{"shorter than window", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := trajectory.MovingAverage(deltas, tc.window)
			if !slices.Equal(got, deltas) {
				t.Fatalf("expected identity, got %v", got)
			}
			got[0] = 99
			if deltas[0] != 1 {
				t.Fatal("MovingAverage must not alias its input")
			}
		})
	}
}

func TestMovingAverageCentredOddWindow(t *testing.T) {
	got := trajectory.MovingAverage([]float64{3, 3, 3, 3}, 3)
	want := []float64{2, 3, 3, 2}
	assertClose(t, got, want)
}

func TestMovingAverageEvenWindowLeansLeft(t *testing.T) {
	// window 4 averages [i-2, i+1] with zero padding
	got := trajectory.MovingAverage([]float64{1, 2, 3, 4, 5, 6}, 4)
	want := []float64{3.0 / 4, 6.0 / 4, 10.0 / 4, 14.0 / 4, 18.0 / 4, 15.0 / 4}
	assertClose(t, got, want)
}

func TestBuildScenarioWithoutSmoothing(t *testing.T) {
	curve := trajectory.Build([]float64{1, 1, 1, 1, 1, 1}, 1, 0.9)
	assertClose(t, curve.Points, []float64{1, 2, 3, 4, 5, 6})
	if curve.Demand != 7 {
		t.Fatalf("expected demand 7, got %d", curve.Demand)
	}
}

func TestBuildAllZeroDeltasStopsAtEarliestSession(t *testing.T) {
	curve := trajectory.Build([]float64{0, 0, 0, 0, 0}, 3, 0.9)
	for _, p := range curve.Points {
		if p != 0 {
			t.Fatalf("expected flat zero curve, got %v", curve.Points)
		}
	}
	if curve.Demand != trajectory.SessionOffset {
		t.Fatalf("expected demand %d for no progress, got %d", trajectory.SessionOffset, curve.Demand)
	}
}

func TestDemandIndexEmptyCurve(t *testing.T) {
	if idx := trajectory.DemandIndex(nil, 0.9); idx != 0 {
		t.Fatalf("expected 0 for empty curve, got %d", idx)
	}
}

func TestDemandIndexAlphaOneHitsFirstMaximum(t *testing.T) {
	if idx := trajectory.DemandIndex([]float64{1, 3, 3, 3}, 1); idx != 1 {
		t.Fatalf("expected earliest index reaching the final value, got %d", idx)
	}
}

func TestBuildNonNegativeDeltasProduceMonotoneCurvesInRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := range 200 {
		n := 1 + rng.IntN(30)
		deltas := make([]float64, n)
		for i := range deltas {
			if rng.IntN(4) == 0 {
				continue
			}
			deltas[i] = rng.Float64() * 5
		}
		window := rng.IntN(6)
		alpha := 0.05 + 0.95*rng.Float64()
		curve := trajectory.Build(deltas, window, alpha)
		if len(curve.Points) != n {
			t.Fatalf("trial %d: expected %d points, got %d", trial, n, len(curve.Points))
		}
		for i := 1; i < len(curve.Points); i++ {
			if curve.Points[i] < curve.Points[i-1] {
				t.Fatalf("trial %d: curve decreases at %d: %v", trial, i, curve.Points)
			}
		}
		tMax := n + 1
		if curve.Demand < 2 || curve.Demand > tMax {
			t.Fatalf("trial %d: demand %d outside [2, %d]", trial, curve.Demand, tMax)
		}
	}
}

func TestBuildIsReproducible(t *testing.T) {
	deltas := []float64{0.3, 1.7, 0.2, 0.9, 2.4, 0.1, 0.05}
	first := trajectory.Build(deltas, 3, 0.85)
	second := trajectory.Build(deltas, 3, 0.85)
	if first.Demand != second.Demand {
		t.Fatalf("demand differs: %d vs %d", first.Demand, second.Demand)
	}
	for i := range first.Points {
		if math.Float64bits(first.Points[i]) != math.Float64bits(second.Points[i]) {
			t.Fatalf("point %d differs bitwise", i)
		}
	}
}

func assertClose(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v want %v", got, want)
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("index %d: got %v want %v (full %v)", i, got[i], want[i], got)
		}
	}
}
