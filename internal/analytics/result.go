package analytics

import "cohortaudit/internal/audit"

// Subject is one record of a batch as seen by the analysis.
type Subject struct {
	ChildIndex *int
	Archetype  *string
	SourceFile string
	Deltas     []float64
}

// Result is the full analysis output for one batch.
type Result struct {
	Config   Config   `json:"config"`
	Clusters Clusters `json:"clusters"`
	Overall  Overall  `json:"overall"`
	Notes    Notes    `json:"notes"`
}

// Config echoes the effective parameters and the reconciled dimensions.
type Config struct {
	NClusters           int     `json:"n_clusters"`
	SmoothWindow        int     `json:"smooth_window"`
	Alpha               float64 `json:"alpha"`
	LengthMode          string  `json:"length_mode"`
	BaselineMethod      string  `json:"baseline_method"`
	Seed                uint64  `json:"seed"`
	MaxIndividualCurves int     `json:"max_individual_curves"`
	MaxCurvePoints      int     `json:"max_curve_points"`
	TMaxSessions        int     `json:"T_max_sessions"`
	MDeltas             int     `json:"M_deltas"`
}

// Clusters holds every per-cohort artifact. Maps are keyed by cohort label
// and only contain cohorts that produced the corresponding artifact.
type Clusters struct {
	Counts              map[int]int                   `json:"counts"`
	MeanCurves          map[int][]float64             `json:"mean_curves"`
	IndividualCurves    []IndividualCurve             `json:"individual_curves"`
	HistTStar           map[int][]HistogramBin        `json:"hist_tstar"`
	PolicyFrontier      map[int][]audit.FrontierPoint `json:"policy_frontier"`
	QStar               map[int]int                   `json:"Qstar"`
	EDelivered          map[int]float64               `json:"E_delivered"`
	ESaved              map[int]float64               `json:"E_saved"`
	QMean               map[int]int                   `json:"Qmean"`
	EDeliveredMean      map[int]float64               `json:"E_delivered_mean"`
	ESavedMean          map[int]float64               `json:"E_saved_mean"`
	PPassOpt            map[int]float64               `json:"p_pass_opt"`
	PPassMean           map[int]float64               `json:"p_pass_mean"`
	ArchetypesOverall   map[string]int                `json:"archetypes_overall"`
	ArchetypesByCluster map[int]map[string]int        `json:"archetypes_by_cluster"`
	QStarCurve          map[int][]CurvePoint          `json:"Qstar_curve"`
}

// IndividualCurve is one sampled subject curve.
type IndividualCurve struct {
	Label      int       `json:"label"`
	Curve      []float64 `json:"curve"`
	SourceFile string    `json:"source_file"`
	Archetype  *string   `json:"archetype"`
	ChildIndex *int      `json:"child_index"`
}

// HistogramBin counts cohort members with a given demand.
type HistogramBin struct {
	T     int `json:"t"`
	Count int `json:"count"`
}

// CurvePoint is the compact frontier form used for plotting.
type CurvePoint struct {
	Q          int     `json:"Q"`
	EDelivered float64 `json:"E_delivered"`
}

// Overall rolls cohort policies up to the whole batch.
type Overall struct {
	TotalChildren                  int     `json:"total_children"`
	TotalOriginalSessions          int     `json:"total_original_sessions"`
	ExpectedTotalDelivered         float64 `json:"expected_total_delivered"`
	ExpectedTotalSaved             float64 `json:"expected_total_saved"`
	ExpectedPercentSaved           float64 `json:"expected_percent_saved"`
	ExpectedTotalDeliveredBaseline float64 `json:"expected_total_delivered_baseline"`
	ExpectedTotalSavedBaseline     float64 `json:"expected_total_saved_baseline"`
	ExpectedPercentSavedBaseline   float64 `json:"expected_percent_saved_baseline"`
	DeltaSavedVsBaseline           float64 `json:"delta_saved_vs_baseline"`
	SavingsImprovementVsBaseline   float64 `json:"savings_improvement_vs_baseline"`
}

// Notes documents how demand and the audit rule are defined.
type Notes struct {
	TStarDefinition string `json:"tstar_definition"`
	AuditRule       string `json:"audit_rule"`
}

const (
	tStarDefinition = "first session where the smoothed cumulative delta reaches alpha times its final value (delta index mapped to sessions via +2)"
	auditRule       = "audit after Q sessions: if Q < demand D the full T_max schedule is delivered, otherwise treatment stops at Q"
)
