package analytics

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"cohortaudit/internal/audit"
	"cohortaudit/internal/cohort"
	"cohortaudit/internal/logging"
	"cohortaudit/internal/services"
	"cohortaudit/internal/trajectory"
)

// sampleStream keeps the curve sample independent of the clustering stream.
const sampleStream = 0x6a09e667f3bcc909

// usable is a subject that survived curve building.
type usable struct {
	subject Subject
	points  []float64
	demand  int
}

// Run executes the full analysis over subjects. Subjects without deltas are
// skipped. The returned Result is never shared with another call.
func Run(ctx context.Context, subjects []Subject, params Params, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(services.WithStage(ctx, "analysis"), logger)
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	lengthMode, err := trajectory.ParseLengthMode(params.LengthMode)
	if err != nil {
		return nil, err
	}
	baseline, err := audit.ParseRoundingMethod(params.BaselineMethod)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	rows := make([]usable, 0, len(subjects))
	for _, subject := range subjects {
		if len(subject.Deltas) == 0 {
			continue
		}
		curve := trajectory.Build(subject.Deltas, params.SmoothWindow, params.Alpha)
		rows = append(rows, usable{subject: subject, points: curve.Points, demand: curve.Demand})
	}
	if len(rows) < params.NClusters {
		return nil, &cohort.InsufficientDataError{Samples: len(rows), Clusters: params.NClusters}
	}

	curves := make([][]float64, len(rows))
	for i, row := range rows {
		curves[i] = row.points
	}
	matrix, err := trajectory.Reconcile(curves, lengthMode)
	if err != nil {
		return nil, err
	}
	if imputed := trajectory.ImputeColumnMeans(matrix); imputed > 0 {
		logger.Debug("imputed missing curve points", logging.Int("imputed", imputed))
	}
	m := len(matrix[0])
	tMax := m + 1
	demands := make([]float64, len(rows))
	for i, row := range rows {
		// a subject longer than the reconciled width cannot need more than T_max
		demands[i] = float64(min(row.demand, tMax))
	}

	fit, err := cohort.KMeans{
		K:             params.NClusters,
		Seed:          params.Seed,
		MaxIterations: params.MaxIterations,
		Tolerance:     params.Tolerance,
	}.Fit(cohort.Standardize(matrix))
	if err != nil {
		return nil, err
	}
	logger.Debug("cohorts fitted",
		logging.Int("subjects", len(rows)),
		logging.Int("width", m),
		logging.Int("iterations", fit.Iterations),
		logging.Float64("inertia", fit.Inertia),
	)

	clusters := newClusters()
	members := groupByLabel(fit.Labels, params.NClusters)
	for label, idx := range members {
		if len(idx) == 0 {
			continue
		}
		clusters.Counts[label] = len(idx)
		clusters.MeanCurves[label] = Downsample(columnMeans(matrix, idx), params.MaxCurvePoints)
	}
	clusters.IndividualCurves = sampleCurves(rows, matrix, fit.Labels, params)

	tLow, tHigh := demandRange(demands)
	for label, idx := range members {
		cohortDemands := make([]float64, len(idx))
		for j, i := range idx {
			cohortDemands[j] = demands[i]
		}
		policy, ok, err := audit.Solve(cohortDemands, tMax, baseline)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		clusters.addPolicy(label, policy, tMax)
		clusters.HistTStar[label] = histogram(cohortDemands, tLow, tHigh)
	}
	clusters.ArchetypesOverall, clusters.ArchetypesByCluster = archetypeCounts(rows, fit.Labels, params.NClusters)

	result := &Result{
		Config: Config{
			NClusters:           params.NClusters,
			SmoothWindow:        params.SmoothWindow,
			Alpha:               params.Alpha,
			LengthMode:          string(lengthMode),
			BaselineMethod:      string(baseline),
			Seed:                params.Seed,
			MaxIndividualCurves: params.MaxIndividualCurves,
			MaxCurvePoints:      params.MaxCurvePoints,
			TMaxSessions:        tMax,
			MDeltas:             m,
		},
		Clusters: clusters,
		Overall:  rollup(clusters, len(rows), params.NClusters, tMax),
		Notes:    Notes{TStarDefinition: tStarDefinition, AuditRule: auditRule},
	}
	logger.Info("analysis complete",
		logging.Int("subjects", len(rows)),
		logging.Int("cohorts", len(clusters.QStar)),
		logging.Int("t_max", tMax),
		logging.Float64("percent_saved", result.Overall.ExpectedPercentSaved),
		logging.Duration("duration", time.Since(started)),
	)
	return result, nil
}

func newClusters() Clusters {
	return Clusters{
		Counts:              map[int]int{},
		MeanCurves:          map[int][]float64{},
		IndividualCurves:    []IndividualCurve{},
		HistTStar:           map[int][]HistogramBin{},
		PolicyFrontier:      map[int][]audit.FrontierPoint{},
		QStar:               map[int]int{},
		EDelivered:          map[int]float64{},
		ESaved:              map[int]float64{},
		QMean:               map[int]int{},
		EDeliveredMean:      map[int]float64{},
		ESavedMean:          map[int]float64{},
		PPassOpt:            map[int]float64{},
		PPassMean:           map[int]float64{},
		ArchetypesOverall:   map[string]int{},
		ArchetypesByCluster: map[int]map[string]int{},
		QStarCurve:          map[int][]CurvePoint{},
	}
}

func (c *Clusters) addPolicy(label int, policy audit.CohortPolicy, tMax int) {
	c.QStar[label] = policy.Optimal.Q
	c.EDelivered[label] = policy.Optimal.ExpectedDelivered
	c.ESaved[label] = policy.Optimal.ExpectedSaved
	c.PPassOpt[label] = policy.Optimal.PassProbability
	c.QMean[label] = policy.Baseline.Q
	c.EDeliveredMean[label] = policy.Baseline.ExpectedDelivered
	c.ESavedMean[label] = policy.Baseline.ExpectedSaved
	c.PPassMean[label] = policy.Baseline.PassProbability
	c.PolicyFrontier[label] = policy.Frontier
	curve := make([]CurvePoint, len(policy.Frontier))
	for i, point := range policy.Frontier {
		curve[i] = CurvePoint{Q: point.Q, EDelivered: point.ExpectedDelivered}
	}
	c.QStarCurve[label] = curve
}

func groupByLabel(labels []int, k int) [][]int {
	groups := make([][]int, k)
	for i, label := range labels {
		groups[label] = append(groups[label], i)
	}
	return groups
}

func columnMeans(matrix [][]float64, idx []int) []float64 {
	means := make([]float64, len(matrix[0]))
	for _, i := range idx {
		for j, v := range matrix[i] {
			means[j] += v
		}
	}
	scale := 1 / float64(len(idx))
	for j := range means {
		means[j] *= scale
	}
	return means
}

// sampleCurves picks at most MaxIndividualCurves subjects without
// replacement using a generator derived from the request seed.
func sampleCurves(rows []usable, matrix [][]float64, labels []int, params Params) []IndividualCurve {
	picked := make([]int, len(rows))
	for i := range picked {
		picked[i] = i
	}
	if len(rows) > params.MaxIndividualCurves {
		rng := rand.New(rand.NewPCG(params.Seed, sampleStream))
		picked = rng.Perm(len(rows))[:params.MaxIndividualCurves]
	}
	out := make([]IndividualCurve, 0, len(picked))
	for _, i := range picked {
		out = append(out, IndividualCurve{
			Label:      labels[i],
			Curve:      Downsample(matrix[i], params.MaxCurvePoints),
			SourceFile: rows[i].subject.SourceFile,
			Archetype:  rows[i].subject.Archetype,
			ChildIndex: rows[i].subject.ChildIndex,
		})
	}
	return out
}

func demandRange(demands []float64) (int, int) {
	return int(slices.Min(demands)), int(slices.Max(demands))
}

func histogram(demands []float64, low, high int) []HistogramBin {
	counts := make(map[int]int, high-low+1)
	for _, d := range demands {
		counts[int(d)]++
	}
	bins := make([]HistogramBin, 0, high-low+1)
	for t := low; t <= high; t++ {
		bins = append(bins, HistogramBin{T: t, Count: counts[t]})
	}
	return bins
}

func archetypeCounts(rows []usable, labels []int, k int) (map[string]int, map[int]map[string]int) {
	overall := map[string]int{}
	byCluster := make(map[int]map[string]int, k)
	for label := range k {
		byCluster[label] = map[string]int{}
	}
	for i, row := range rows {
		if row.subject.Archetype == nil {
			continue
		}
		name := *row.subject.Archetype
		overall[name]++
		byCluster[labels[i]][name]++
	}
	return overall, byCluster
}

// rollup totals both policies over the batch. A cohort without a policy
// delivers the full schedule to each of its members.
func rollup(c Clusters, children, k, tMax int) Overall {
	totalOriginal := children * tMax
	var delivered, deliveredBaseline float64
	for label := range k {
		n := float64(c.Counts[label])
		if e, ok := c.EDelivered[label]; ok {
			delivered += n * e
		} else {
			delivered += n * float64(tMax)
		}
		if e, ok := c.EDeliveredMean[label]; ok {
			deliveredBaseline += n * e
		} else {
			deliveredBaseline += n * float64(tMax)
		}
	}
	original := float64(totalOriginal)
	saved := original - delivered
	savedBaseline := original - deliveredBaseline
	out := Overall{
		TotalChildren:                  children,
		TotalOriginalSessions:          totalOriginal,
		ExpectedTotalDelivered:         delivered,
		ExpectedTotalSaved:             saved,
		ExpectedTotalDeliveredBaseline: deliveredBaseline,
		ExpectedTotalSavedBaseline:     savedBaseline,
		DeltaSavedVsBaseline:           saved - savedBaseline,
	}
	if original > 0 {
		out.ExpectedPercentSaved = saved / original
		out.ExpectedPercentSavedBaseline = savedBaseline / original
	}
	if savedBaseline > 0 {
		out.SavingsImprovementVsBaseline = (saved - savedBaseline) / savedBaseline
	}
	return out
}

// Downsample keeps at most maxPoints evenly spaced entries of values.
func Downsample(values []float64, maxPoints int) []float64 {
	n := len(values)
	if maxPoints <= 0 {
		return []float64{}
	}
	if n <= maxPoints {
		return append(make([]float64, 0, n), values...)
	}
	if maxPoints == 1 {
		return []float64{values[0]}
	}
	out := make([]float64, maxPoints)
	step := float64(n-1) / float64(maxPoints-1)
	for i := range maxPoints - 1 {
		out[i] = values[int(math.Floor(float64(i)*step))]
	}
	out[maxPoints-1] = values[n-1]
	return out
}
