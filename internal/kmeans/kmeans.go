// Package kmeans implements Lloyd's algorithm over dense float32 sample
// matrices. It backs both the coarse quantizer and the per-subspace
// codebooks of the product quantizer.
package kmeans

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Config controls a single training run.
type Config struct {
	K             int   // number of centroids to produce
	MaxIterations int   // upper bound on Lloyd iterations
	Seed          int64 // seed for the independent RNG stream
}

// Result is the trained centroid matrix, K rows of d columns each.
type Result struct {
	Centroids [][]float32
}

// Fit runs Lloyd's algorithm over samples (N rows of d columns) and returns
// K centroids. Initialization draws K distinct row indices uniformly without
// replacement from a seed-derived RNG. A cluster that receives no rows in
// an iteration keeps its previous centroid rather than being reseeded or
// dropped, so the centroid count is always exactly K.
func Fit(samples [][]float32, cfg Config) (*Result, error) {
	n := len(samples)
	if cfg.K < 1 {
		return nil, fmt.Errorf("kmeans: K must be >= 1, got %d", cfg.K)
	}
	if n < cfg.K {
		return nil, fmt.Errorf("kmeans: need at least %d samples for K=%d, got %d", cfg.K, cfg.K, n)
	}
	d := len(samples[0])
	if d < 1 {
		return nil, fmt.Errorf("kmeans: sample dimension must be >= 1")
	}
	for i, s := range samples {
		if len(s) != d {
			return nil, fmt.Errorf("kmeans: sample %d has dimension %d, expected %d", i, len(s), d)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := initCentroids(samples, cfg.K, rng)

	assignments := make([]int32, n)
	prevAssignments := make([]int32, n)
	for i := range prevAssignments {
		prevAssignments[i] = -1
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 1
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	for iter := 0; iter < maxIter; iter++ {
		if err := assignParallel(samples, centroids, assignments, workers); err != nil {
			return nil, err
		}

		changed := false
		for i := range assignments {
			if assignments[i] != prevAssignments[i] {
				changed = true
				break
			}
		}

		updateCentroids(samples, assignments, centroids)

		if !changed {
			break
		}
		copy(prevAssignments, assignments)
	}

	return &Result{Centroids: centroids}, nil
}

// initCentroids draws K distinct row indices uniformly without replacement
// and seeds the centroids from those rows in ascending row order.
func initCentroids(samples [][]float32, k int, rng *rand.Rand) [][]float32 {
	d := len(samples[0])
	perm := rng.Perm(len(samples))
	sort.Ints(perm[:k])
	centroids := make([][]float32, k)
	for i := 0; i < k; i++ {
		row := make([]float32, d)
		copy(row, samples[perm[i]])
		centroids[i] = row
	}
	return centroids
}

// assignParallel assigns each sample to the index of its nearest centroid,
// breaking ties by lowest index, fanning the row range out across a bounded
// worker pool. Results are written directly into per-row slots so the
// output is independent of how work was partitioned.
func assignParallel(samples [][]float32, centroids [][]float32, out []int32, workers int) error {
	n := len(samples)
	if workers <= 1 || n < workers*2 {
		for i, s := range samples {
			out[i] = int32(nearest(s, centroids))
		}
		return nil
	}

	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				out[i] = int32(nearest(samples[i], centroids))
			}
			return nil
		})
	}
	return g.Wait()
}

// nearest returns the index of the centroid closest to v under squared
// Euclidean distance, lowest index winning ties.
func nearest(v []float32, centroids [][]float32) int {
	best := 0
	bestDist := sqDist(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		dist := sqDist(v, centroids[i])
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best
}

// updateCentroids recomputes each centroid as the mean of its assigned
// rows, leaving untouched clusters (zero assignments) at their previous
// value.
func updateCentroids(samples [][]float32, assignments []int32, centroids [][]float32) {
	k := len(centroids)
	d := len(centroids[0])

	sums := make([][]float32, k)
	counts := make([]int, k)
	for i := 0; i < k; i++ {
		sums[i] = make([]float32, d)
	}

	for i, s := range samples {
		c := assignments[i]
		counts[c]++
		row := sums[c]
		for j, v := range s {
			row[j] += v
		}
	}

	for i := 0; i < k; i++ {
		if counts[i] == 0 {
			continue
		}
		inv := 1.0 / float32(counts[i])
		row := centroids[i]
		sum := sums[i]
		for j := range row {
			row[j] = sum[j] * inv
		}
	}
}

func sqDist(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// Nearest exposes the argmin helper for callers that already hold a
// centroid matrix (coarse assignment, PQ encoding) and don't need to run a
// fresh training pass.
func Nearest(v []float32, centroids [][]float32) (int, float32) {
	best := 0
	bestDist := sqDist(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		dist := sqDist(v, centroids[i])
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best, bestDist
}

// SqDist is the squared Euclidean distance between two equal-length
// vectors.
func SqDist(a, b []float32) float32 {
	return sqDist(a, b)
}
