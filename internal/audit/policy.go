package audit

import (
	"fmt"
	"math"
	"strings"

	"cohortaudit/internal/services"
)

// RoundingMethod selects how the baseline turns a mean demand into a session.
type RoundingMethod string

const (
	RoundHalfEven RoundingMethod = "round"
	RoundCeil     RoundingMethod = "ceil"
	RoundFloor    RoundingMethod = "floor"
)

// ParseRoundingMethod validates a user supplied baseline rounding method.
func ParseRoundingMethod(value string) (RoundingMethod, error) {
	switch method := RoundingMethod(strings.ToLower(strings.TrimSpace(value))); method {
	case RoundHalfEven, RoundCeil, RoundFloor:
		return method, nil
	default:
		return "", services.Wrap(services.ErrInvalidParameter, "audit", "baseline_method", fmt.Sprintf("method must be one of: round, ceil, floor (got %q)", value), nil)
	}
}

// FrontierPoint is one candidate threshold and its expected delivery.
type FrontierPoint struct {
	Q                 int     `json:"Q"`
	ExpectedDelivered float64 `json:"expected_delivered"`
	PassFraction      float64 `json:"pass_fraction"`
}

// PolicyMetrics summarises a single threshold applied to a cohort.
type PolicyMetrics struct {
	Q                 int     `json:"Q"`
	ExpectedDelivered float64 `json:"expected_delivered"`
	ExpectedSaved     float64 `json:"expected_saved"`
	PassProbability   float64 `json:"pass_probability"`
}

// CohortPolicy holds the optimized and baseline policies for one cohort.
type CohortPolicy struct {
	Optimal  PolicyMetrics   `json:"optimal"`
	Baseline PolicyMetrics   `json:"baseline"`
	Frontier []FrontierPoint `json:"frontier"`
	Members  int             `json:"members"`
}

// Finite drops NaN and infinite demands.
func Finite(demands []float64) []float64 {
	out := make([]float64, 0, len(demands))
	for _, d := range demands {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// PassProbability is the fraction of demands met by q.
func PassProbability(demands []float64, q int) float64 {
	demands = Finite(demands)
	if len(demands) == 0 {
		return 0
	}
	met := 0
	for _, d := range demands {
		if d <= float64(q) {
			met++
		}
	}
	return float64(met) / float64(len(demands))
}

// ExpectedDelivered averages the sessions each subject receives under q: q
// when the audit passes, tMax when the demand exceeds q. With no demands the
// full schedule is assumed.
func ExpectedDelivered(demands []float64, q, tMax int) float64 {
	demands = Finite(demands)
	if len(demands) == 0 {
		return float64(tMax)
	}
	total := 0.0
	for _, d := range demands {
		if float64(q) < d {
			total += float64(tMax)
		} else {
			total += float64(q)
		}
	}
	return total / float64(len(demands))
}

// Evaluate computes the metrics of applying q to demands.
func Evaluate(demands []float64, q, tMax int) PolicyMetrics {
	delivered := ExpectedDelivered(demands, q, tMax)
	return PolicyMetrics{
		Q:                 q,
		ExpectedDelivered: delivered,
		ExpectedSaved:     float64(tMax) - delivered,
		PassProbability:   PassProbability(demands, q),
	}
}

// Optimize scans thresholds 1..tMax and returns the first one minimising
// E(Q) = Q*F(Q) + tMax*(1-F(Q)) together with the full frontier. ok is false
// when no finite demand remains.
func Optimize(demands []float64, tMax int) (qStar int, frontier []FrontierPoint, ok bool) {
	demands = Finite(demands)
	if len(demands) == 0 || tMax < 1 {
		return 0, nil, false
	}
	frontier = make([]FrontierPoint, 0, tMax)
	best := math.Inf(1)
	for q := 1; q <= tMax; q++ {
		f := PassProbability(demands, q)
		e := float64(q)*f + float64(tMax)*(1-f)
		frontier = append(frontier, FrontierPoint{Q: q, ExpectedDelivered: e, PassFraction: f})
		if e < best {
			best = e
			qStar = q
		}
	}
	return qStar, frontier, true
}

// BaselineQ rounds the mean demand with method and clamps it to [1, tMax].
// Round uses half-to-even. With no demands the full schedule is returned.
func BaselineQ(demands []float64, method RoundingMethod, tMax int) (int, error) {
	demands = Finite(demands)
	if len(demands) == 0 {
		return tMax, nil
	}
	sum := 0.0
	for _, d := range demands {
		sum += d
	}
	mean := sum / float64(len(demands))
	var q float64
	switch method {
	case RoundHalfEven:
		q = math.RoundToEven(mean)
	case RoundCeil:
		q = math.Ceil(mean)
	case RoundFloor:
		q = math.Floor(mean)
	default:
		return 0, services.Wrap(services.ErrInvalidParameter, "audit", "baseline_method", fmt.Sprintf("method must be one of: round, ceil, floor (got %q)", string(method)), nil)
	}
	return min(max(int(q), 1), tMax), nil
}

// Solve computes both policies for one cohort. ok is false when the cohort has
// no finite demand and should be left out of the results.
func Solve(demands []float64, tMax int, method RoundingMethod) (CohortPolicy, bool, error) {
	finite := Finite(demands)
	qStar, frontier, ok := Optimize(finite, tMax)
	if !ok {
		return CohortPolicy{}, false, nil
	}
	qMean, err := BaselineQ(finite, method, tMax)
	if err != nil {
		return CohortPolicy{}, false, err
	}
	return CohortPolicy{
		Optimal:  Evaluate(finite, qStar, tMax),
		Baseline: Evaluate(finite, qMean, tMax),
		Frontier: frontier,
		Members:  len(finite),
	}, true, nil
}
