// Package cohort partitions standardized progress curves into behaviourally
// similar cohorts.
//
// Standardize rescales every column of the curve matrix to zero mean and unit
// variance; KMeans then groups the rows around K centroids. All randomness is
// drawn from a generator seeded by the caller, so identical inputs and seeds
// always produce identical labels regardless of what else runs in the
// process.
package cohort
