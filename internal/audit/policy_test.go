package audit_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"cohortaudit/internal/audit"
	"cohortaudit/internal/services"
)

func TestOptimizeScenario(t *testing.T) {
	demands := []float64{3, 3, 3, 5, 5}
	qStar, frontier, ok := audit.Optimize(demands, 6)
	if !ok {
		t.Fatal("expected a policy")
	}
	if qStar != 3 {
		t.Fatalf("expected Q*=3, got %d", qStar)
	}
	if len(frontier) != 6 {
		t.Fatalf("expected frontier over Q=1..6, got %d points", len(frontier))
	}
	want := map[int]struct{ f, e float64 }{
		3: {0.6, 4.2},
		5: {1.0, 5.0},
		6: {1.0, 6.0},
	}
	for _, point := range frontier {
		exp, ok := want[point.Q]
		if !ok {
			continue
		}
		if math.Abs(point.PassFraction-exp.f) > 1e-12 || math.Abs(point.ExpectedDelivered-exp.e) > 1e-12 {
			t.Fatalf("Q=%d: got F=%v E=%v, want F=%v E=%v", point.Q, point.PassFraction, point.ExpectedDelivered, exp.f, exp.e)
		}
	}
}

func TestOptimizeTieBreaksToSmallestQ(t *testing.T) {
	// every Q gives E=T_max when nobody can pass before the end
	qStar, _, ok := audit.Optimize([]float64{4, 4}, 4)
	if !ok {
		t.Fatal("expected a policy")
	}
	// E(1..3)=4 and E(4)=4: the first minimum wins
	if qStar != 1 {
		t.Fatalf("expected tie to resolve to Q=1, got %d", qStar)
	}
}

func TestOptimizeSkipsEmptyCohort(t *testing.T) {
	if _, _, ok := audit.Optimize(nil, 5); ok {
		t.Fatal("expected no policy for empty demands")
	}
	if _, _, ok := audit.Optimize([]float64{math.NaN(), math.Inf(1)}, 5); ok {
		t.Fatal("expected non-finite demands to be discarded")
	}
	if _, ok, err := audit.Solve([]float64{math.NaN()}, 5, audit.RoundHalfEven); ok || err != nil {
		t.Fatalf("expected skipped cohort, got ok=%v err=%v", ok, err)
	}
}

func TestOptimizeIsMinimalAndBeatsBaseline(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := range 300 {
		tMax := 2 + rng.IntN(20)
		n := 1 + rng.IntN(25)
		demands := make([]float64, n)
		for i := range demands {
			demands[i] = float64(2 + rng.IntN(tMax-1))
		}
		policy, ok, err := audit.Solve(demands, tMax, audit.RoundHalfEven)
		if err != nil || !ok {
			t.Fatalf("trial %d: unexpected ok=%v err=%v", trial, ok, err)
		}
		for q := 1; q <= tMax; q++ {
			if e := audit.ExpectedDelivered(demands, q, tMax); policy.Optimal.ExpectedDelivered > e+1e-9 {
				t.Fatalf("trial %d: E(Q*=%d)=%v exceeds E(%d)=%v", trial, policy.Optimal.Q, policy.Optimal.ExpectedDelivered, q, e)
			}
		}
		if policy.Optimal.ExpectedDelivered > policy.Baseline.ExpectedDelivered+1e-9 {
			t.Fatalf("trial %d: optimal %v worse than baseline %v", trial, policy.Optimal.ExpectedDelivered, policy.Baseline.ExpectedDelivered)
		}
		if policy.Baseline.Q < 1 || policy.Baseline.Q > tMax {
			t.Fatalf("trial %d: baseline Q %d outside [1, %d]", trial, policy.Baseline.Q, tMax)
		}
	}
}

func TestBaselineRoundingMethods(t *testing.T) {
	cases := []struct {
		name    string
		demands []float64
		method  audit.RoundingMethod
		tMax    int
		want    int
	}{
		{"round half to even down", []float64{2, 3}, audit.RoundHalfEven, 10, 2},
		{"round half to even up", []float64{3, 4}, audit.RoundHalfEven, 10, 4},
		{"round nearest", []float64{3, 3, 3, 5, 5}, audit.RoundHalfEven, 6, 4},
		{"ceil", []float64{3, 3, 3, 5, 5}, audit.RoundCeil, 6, 4},
		{"floor", []float64{3, 3, 3, 5, 5}, audit.RoundFloor, 6, 3},
		{"clamped to t max", []float64{9, 9}, audit.RoundHalfEven, 6, 6},
		{"empty uses t max", nil, audit.RoundFloor, 6, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := audit.BaselineQ(tc.demands, tc.method, tc.tMax)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestBaselineUnknownMethod(t *testing.T) {
	if _, err := audit.BaselineQ([]float64{3}, audit.RoundingMethod("banker"), 5); !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := audit.ParseRoundingMethod("nearest"); !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if m, err := audit.ParseRoundingMethod(" Ceil"); err != nil || m != audit.RoundCeil {
		t.Fatalf("expected ceil, got %q %v", m, err)
	}
}

func TestEvaluateMetrics(t *testing.T) {
	m := audit.Evaluate([]float64{3, 3, 3, 5, 5}, 3, 6)
	if math.Abs(m.ExpectedDelivered-4.2) > 1e-12 {
		t.Fatalf("expected delivered 4.2, got %v", m.ExpectedDelivered)
	}
	if math.Abs(m.ExpectedSaved-1.8) > 1e-12 {
		t.Fatalf("expected saved 1.8, got %v", m.ExpectedSaved)
	}
	if math.Abs(m.PassProbability-0.6) > 1e-12 {
		t.Fatalf("expected pass probability 0.6, got %v", m.PassProbability)
	}
}

func TestExpectedDeliveredWithoutDemandsIsFullSchedule(t *testing.T) {
	if got := audit.ExpectedDelivered(nil, 2, 7); got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
}
