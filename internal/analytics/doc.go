// Package analytics runs the cohort audit analysis end to end.
//
// Run takes the subjects of one batch and a validated Params value, builds a
// progress curve and demand per subject, reconciles curve lengths, clusters the
// standardized curves into cohorts, solves the audit policy per cohort, and
// rolls everything up into a Result ready for JSON encoding. Each call is
// independent: randomness comes from generators seeded by Params.Seed, and the
// Result is never mutated after Run returns it.
//
// Cohort-keyed collections in Result are sparse maps. A cohort whose demand
// list is empty after filtering has no policy entry, and callers must not
// assume labels 0..K-1 are all present.
package analytics
