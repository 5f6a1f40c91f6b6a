// Package audit solves the per-cohort audit threshold problem.
//
// Given the empirical demand distribution of a cohort and the full schedule
// length T_max, an audit at session Q stops delivery for every subject whose
// demand is met by Q and reverts to the full schedule for everyone else. The
// optimizer scans every Q in [1, T_max] and keeps the first minimum of the
// expected sessions delivered. A mean-demand baseline is evaluated alongside
// for comparison.
package audit
