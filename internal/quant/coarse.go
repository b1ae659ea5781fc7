// Package quant implements the two cascaded quantizers used by the IVFADC
// index: a coarse k-means quantizer over the full vector space, and a
// product quantizer over coarse residuals.
package quant

import (
	"fmt"

	"github.com/corvid-labs/ivfadc/internal/kmeans"
)

// CoarseConfig configures the coarse quantizer's k-means training.
type CoarseConfig struct {
	NumCentroids  int // K_c
	MaxIterations int
	Seed          int64
}

// Coarse wraps one k-means model of K_c centroids over the full
// D-dimensional space. It assigns vectors to Voronoi cells and computes
// residuals against the assigned cell's centroid.
type Coarse struct {
	dim       int
	centroids [][]float32
}

// TrainCoarse fits a coarse quantizer on sample (N x dim). Replaces any
// previously trained state.
func TrainCoarse(sample [][]float32, cfg CoarseConfig) (*Coarse, error) {
	if len(sample) == 0 {
		return nil, fmt.Errorf("quant: coarse training requires at least one sample")
	}
	dim := len(sample[0])

	res, err := kmeans.Fit(sample, kmeans.Config{
		K:             cfg.NumCentroids,
		MaxIterations: cfg.MaxIterations,
		Seed:          cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("quant: coarse training: %w", err)
	}

	return &Coarse{dim: dim, centroids: res.Centroids}, nil
}

// NewCoarseFromCentroids rebuilds a coarse quantizer from a previously
// trained centroid matrix, as done when loading a persisted index.
func NewCoarseFromCentroids(centroids [][]float32) *Coarse {
	dim := 0
	if len(centroids) > 0 {
		dim = len(centroids[0])
	}
	return &Coarse{dim: dim, centroids: centroids}
}

// Dim returns the vector dimension this quantizer was trained on.
func (c *Coarse) Dim() int { return c.dim }

// K returns the number of coarse centroids, K_c.
func (c *Coarse) K() int { return len(c.centroids) }

// Centroids returns the read-only centroid matrix, K_c x dim.
func (c *Coarse) Centroids() [][]float32 { return c.centroids }

// Assign returns the index of the centroid nearest to v, squared Euclidean
// distance, lowest index breaking ties.
func (c *Coarse) Assign(v []float32) (int, error) {
	if len(v) != c.dim {
		return 0, fmt.Errorf("quant: vector dimension %d does not match coarse dimension %d", len(v), c.dim)
	}
	idx, _ := kmeans.Nearest(v, c.centroids)
	return idx, nil
}

// AssignMany assigns every row of V, identical per-row to calling Assign.
func (c *Coarse) AssignMany(V [][]float32) ([]int, error) {
	out := make([]int, len(V))
	for i, v := range V {
		id, err := c.Assign(v)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// Residual returns v minus the centroid of its assigned cell.
func (c *Coarse) Residual(v []float32) ([]float32, error) {
	cell, err := c.Assign(v)
	if err != nil {
		return nil, err
	}
	return c.ResidualAgainst(v, cell), nil
}

// ResidualAgainst returns v minus the centroid of the given cell, without
// recomputing the assignment — used during search where the probed cell is
// already known.
func (c *Coarse) ResidualAgainst(v []float32, cell int) []float32 {
	centroid := c.centroids[cell]
	r := make([]float32, len(v))
	for i := range v {
		r[i] = v[i] - centroid[i]
	}
	return r
}

// NearestCells returns the w coarse cell ids whose centroids are nearest to
// v, ordered ascending by distance with lowest-index tie-breaking, along
// with their distances.
func (c *Coarse) NearestCells(v []float32, w int) ([]int, []float32, error) {
	if len(v) != c.dim {
		return nil, nil, fmt.Errorf("quant: vector dimension %d does not match coarse dimension %d", len(v), c.dim)
	}
	if w < 1 || w > len(c.centroids) {
		return nil, nil, fmt.Errorf("quant: w must be between 1 and %d, got %d", len(c.centroids), w)
	}

	type cd struct {
		id   int
		dist float32
	}
	all := make([]cd, len(c.centroids))
	for i, centroid := range c.centroids {
		all[i] = cd{id: i, dist: kmeans.SqDist(v, centroid)}
	}

	// Partial selection sort for the top w: w is typically small relative
	// to K_c, and this keeps ties resolved by lowest index without pulling
	// in a full stable sort.
	for i := 0; i < w; i++ {
		best := i
		for j := i + 1; j < len(all); j++ {
			if all[j].dist < all[best].dist || (all[j].dist == all[best].dist && all[j].id < all[best].id) {
				best = j
			}
		}
		all[i], all[best] = all[best], all[i]
	}

	ids := make([]int, w)
	dists := make([]float32, w)
	for i := 0; i < w; i++ {
		ids[i] = all[i].id
		dists[i] = all[i].dist
	}
	return ids, dists, nil
}
