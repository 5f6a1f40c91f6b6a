package cohort

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"cohortaudit/internal/services"
)

const (
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
)

// seedStream separates the PCG stream from the user seed so seed 0 is usable.
const seedStream = 0x9e3779b97f4a7c15

// KMeans clusters rows by Euclidean distance using k-means++ seeding followed
// by Lloyd iterations.
type KMeans struct {
	K             int
	Seed          uint64
	MaxIterations int
	// Tolerance is relative to the mean column variance of the input.
	Tolerance float64
}

// Result carries the fitted labels and centroids.
type Result struct {
	Labels     []int
	Centroids  [][]float64
	Iterations int
	Inertia    float64
}

// InsufficientDataError is returned when fewer rows than clusters are supplied.
type InsufficientDataError struct {
	Samples  int
	Clusters int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough usable trajectories (%d) for n_clusters=%d", e.Samples, e.Clusters)
}

// Is lets errors.Is match the shared insufficient data marker.
func (e *InsufficientDataError) Is(target error) bool {
	return target == services.ErrInsufficientData
}

// Fit assigns every row a label in [0, K).
func (k KMeans) Fit(rows [][]float64) (Result, error) {
	if k.K < 1 {
		return Result{}, services.Wrap(services.ErrInvalidParameter, "cluster", "n_clusters", fmt.Sprintf("must be at least 1, got %d", k.K), nil)
	}
	if len(rows) < k.K {
		return Result{}, &InsufficientDataError{Samples: len(rows), Clusters: k.K}
	}
	maxIter := k.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := k.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	threshold := tol * meanColumnVariance(rows)

	rng := rand.New(rand.NewPCG(k.Seed, seedStream))
	centroids := seedCentroids(rows, k.K, rng)
	labels := make([]int, len(rows))

	iterations := 0
	for iterations < maxIter {
		iterations++
		assign(rows, centroids, labels)
		next := recompute(rows, centroids, labels)
		shift := 0.0
		for c := range centroids {
			d := floats.Distance(centroids[c], next[c], 2)
			shift += d * d
		}
		centroids = next
		if shift <= threshold {
			break
		}
	}
	inertia := assign(rows, centroids, labels)

	return Result{
		Labels:     labels,
		Centroids:  centroids,
		Iterations: iterations,
		Inertia:    inertia,
	}, nil
}

// seedCentroids implements k-means++: each next centre is drawn with
// probability proportional to its squared distance from the nearest chosen one.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(rows)
	centroids := make([][]float64, 0, k)
	first := rng.IntN(n)
	centroids = append(centroids, clone(rows[first]))

	nearest := make([]float64, n)
	for i, row := range rows {
		d := floats.Distance(row, centroids[0], 2)
		nearest[i] = d * d
	}
	for len(centroids) < k {
		total := floats.Sum(nearest)
		pick := 0
		if total > 0 {
			r := rng.Float64() * total
			acc := 0.0
			pick = -1
			for i, d := range nearest {
				acc += d
				if d > 0 && acc > r {
					pick = i
					break
				}
			}
			if pick < 0 {
				pick = floats.MaxIdx(nearest)
			}
		} else {
			pick = rng.IntN(n)
		}
		centre := clone(rows[pick])
		centroids = append(centroids, centre)
		for i, row := range rows {
			d := floats.Distance(row, centre, 2)
			if d*d < nearest[i] {
				nearest[i] = d * d
			}
		}
	}
	return centroids
}

// assign labels each row with its nearest centroid, ties going to the lowest
// label, and returns the summed squared distances.
func assign(rows, centroids [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, row := range rows {
		best := 0
		bestDist := math.Inf(1)
		for c, centre := range centroids {
			d := floats.Distance(row, centre, 2)
			if d < bestDist {
				best = c
				bestDist = d
			}
		}
		labels[i] = best
		inertia += bestDist * bestDist
	}
	return inertia
}

// recompute returns the mean of each cluster's rows. A cluster left empty
// takes over the row lying farthest from its current centroid, provided the
// donor cluster keeps at least one member.
func recompute(rows, centroids [][]float64, labels []int) [][]float64 {
	k := len(centroids)
	width := len(centroids[0])
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, width)
	}
	counts := make([]int, k)
	for i, row := range rows {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}

	taken := make(map[int]bool)
	for c := range k {
		if counts[c] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, row := range rows {
			if taken[i] || counts[labels[i]] <= 1 {
				continue
			}
			d := floats.Distance(row, centroids[labels[i]], 2)
			if d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue
		}
		donor := labels[far]
		floats.Sub(sums[donor], rows[far])
		counts[donor]--
		labels[far] = c
		copy(sums[c], rows[far])
		counts[c] = 1
		taken[far] = true
	}

	next := make([][]float64, k)
	for c := range k {
		if counts[c] == 0 {
			next[c] = clone(centroids[c])
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		next[c] = sums[c]
	}
	return next
}

func meanColumnVariance(rows [][]float64) float64 {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0
	}
	column := make([]float64, len(rows))
	total := 0.0
	for j := range rows[0] {
		for i, row := range rows {
			column[i] = row[j]
		}
		_, variance := stat.PopMeanVariance(column, nil)
		total += variance
	}
	return total / float64(len(rows[0]))
}

func clone(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	return out
}
