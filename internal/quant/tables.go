package quant

import (
	"fmt"

	"github.com/corvid-labs/ivfadc/internal/kmeans"
)

// Table holds, for one query residual, the squared distance from each
// subspace slice of the residual to every centroid of that subspace:
// Table[m][k] = ||q_residual[m] - codebook[m][k]||^2.
//
// Building one Table per probed cell and then summing M lookups per
// candidate code is the asymmetric distance computation (ADC) inner loop;
// it amortizes the cost of comparing the query against every code in a
// cell to O(M*K_s) table entries plus O(M) per candidate.
type Table [][]float32

// BuildTables constructs the per-subspace distance table for a query
// residual.
func (p *Product) BuildTables(residual []float32) (Table, error) {
	if len(residual) != p.dim {
		return nil, fmt.Errorf("quant: residual dimension %d does not match product dimension %d", len(residual), p.dim)
	}
	t := make(Table, p.subspaces)
	for m := 0; m < p.subspaces; m++ {
		start := m * p.subDim
		sub := residual[start : start+p.subDim]
		row := make([]float32, len(p.codebooks[m]))
		for k, centroid := range p.codebooks[m] {
			row[k] = kmeans.SqDist(sub, centroid)
		}
		t[m] = row
	}
	return t, nil
}

// Score sums the table entries selected by code: the squared distance
// between the residual the table was built from and decode(code), up to
// floating point rounding.
func (t Table) Score(code []byte) float32 {
	var sum float32
	for m, c := range code {
		sum += t[m][c]
	}
	return sum
}
