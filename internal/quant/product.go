package quant

import (
	"fmt"

	"github.com/corvid-labs/ivfadc/internal/kmeans"
	"golang.org/x/sync/errgroup"
)

// PQConfig configures the product quantizer.
type PQConfig struct {
	NumSubquantizers int // M
	NumCentroids     int // K_s, must be <= 256 for the packed byte-per-subcode layout
	MaxIterations    int
	Seed             int64
}

// Product splits R^D into M equal-width subspaces and holds one k-means
// model of K_s centroids per subspace. Codes are packed one byte per
// subcode.
type Product struct {
	dim       int
	subspaces int // M
	subDim    int // D/M
	codebooks [][][]float32
}

// TrainProduct trains one subquantizer per subspace on X (N x D, typically
// coarse residuals). Subspace m uses seed = cfg.Seed + m so each
// subquantizer has an independent but reproducible stream.
func TrainProduct(X [][]float32, cfg PQConfig) (*Product, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("quant: product training requires at least one sample")
	}
	if cfg.NumCentroids > 256 {
		return nil, fmt.Errorf("quant: K_s must be <= 256 for byte-packed codes, got %d", cfg.NumCentroids)
	}
	dim := len(X[0])
	if cfg.NumSubquantizers < 1 || dim%cfg.NumSubquantizers != 0 {
		return nil, fmt.Errorf("quant: dimension %d must be divisible by M=%d", dim, cfg.NumSubquantizers)
	}
	subDim := dim / cfg.NumSubquantizers

	codebooks := make([][][]float32, cfg.NumSubquantizers)
	var g errgroup.Group
	for m := 0; m < cfg.NumSubquantizers; m++ {
		m := m
		g.Go(func() error {
			sub := make([][]float32, len(X))
			start := m * subDim
			for i, row := range X {
				if len(row) != dim {
					return fmt.Errorf("quant: sample %d has dimension %d, expected %d", i, len(row), dim)
				}
				sub[i] = row[start : start+subDim]
			}

			res, err := kmeans.Fit(sub, kmeans.Config{
				K:             cfg.NumCentroids,
				MaxIterations: cfg.MaxIterations,
				Seed:          cfg.Seed + int64(m),
			})
			if err != nil {
				return fmt.Errorf("quant: subspace %d training: %w", m, err)
			}
			codebooks[m] = res.Centroids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Product{dim: dim, subspaces: cfg.NumSubquantizers, subDim: subDim, codebooks: codebooks}, nil
}

// NewProductFromCodebooks rebuilds a product quantizer from previously
// trained per-subspace centroid matrices, as done when loading a persisted
// index.
func NewProductFromCodebooks(codebooks [][][]float32) *Product {
	m := len(codebooks)
	subDim := 0
	if m > 0 && len(codebooks[0]) > 0 {
		subDim = len(codebooks[0][0])
	}
	return &Product{dim: subDim * m, subspaces: m, subDim: subDim, codebooks: codebooks}
}

// M returns the number of subquantizers.
func (p *Product) M() int { return p.subspaces }

// SubDim returns D/M.
func (p *Product) SubDim() int { return p.subDim }

// Dim returns D.
func (p *Product) Dim() int { return p.dim }

// Codebooks returns the per-subspace centroid matrices, M x K_s x (D/M).
func (p *Product) Codebooks() [][][]float32 { return p.codebooks }

// Encode returns the M-byte code for v: for each subspace, the index of
// its nearest centroid.
func (p *Product) Encode(v []float32) ([]byte, error) {
	if len(v) != p.dim {
		return nil, fmt.Errorf("quant: vector dimension %d does not match product dimension %d", len(v), p.dim)
	}
	code := make([]byte, p.subspaces)
	for m := 0; m < p.subspaces; m++ {
		start := m * p.subDim
		sub := v[start : start+p.subDim]
		idx, _ := kmeans.Nearest(sub, p.codebooks[m])
		code[m] = byte(idx)
	}
	return code, nil
}

// EncodeMany is the vectorized form of Encode.
func (p *Product) EncodeMany(V [][]float32) ([][]byte, error) {
	out := make([][]byte, len(V))
	for i, v := range V {
		c, err := p.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Decode concatenates the M centroids selected by code back into a
// D-vector approximation. Diagnostic only; not used by search.
func (p *Product) Decode(code []byte) ([]float32, error) {
	if len(code) != p.subspaces {
		return nil, fmt.Errorf("quant: code length %d does not match M=%d", len(code), p.subspaces)
	}
	out := make([]float32, p.dim)
	for m, c := range code {
		if int(c) >= len(p.codebooks[m]) {
			return nil, fmt.Errorf("quant: code %d out of range for subspace %d", c, m)
		}
		copy(out[m*p.subDim:(m+1)*p.subDim], p.codebooks[m][c])
	}
	return out, nil
}
