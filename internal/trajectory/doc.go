// Package trajectory turns raw per-subject delta sequences into comparable
// progress curves.
//
// Build smooths a delta sequence with a centred moving average, accumulates it
// into a progress curve, and detects the session at which the subject's
// progress saturates (the demand). Reconcile then aligns a batch of curves of
// differing lengths by truncation, NaN padding, or rejection, and
// ImputeColumnMeans fills any missing markers so the matrix handed to the
// clusterer is dense.
//
// Everything here is a pure function of its inputs; callers own the returned
// slices.
package trajectory
