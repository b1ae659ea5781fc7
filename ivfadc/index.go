package ivfadc

import (
	"io"

	"github.com/corvid-labs/ivfadc/internal/engine"
	"github.com/corvid-labs/ivfadc/internal/obs"
)

// Result is one scored candidate returned by Search, ordered ascending by
// (Score, ID).
type Result = engine.Result

// Stats summarizes an Index's current population and memory footprint.
type Stats = engine.Stats

// Index is an IVFADC approximate nearest-neighbor index. The zero value is
// not usable; construct with New.
type Index struct {
	cfg     Config
	engine  *engine.Engine
	metrics *obs.Metrics
}

// New constructs an untrained Index from the given options. WithCoarse and
// WithPQ are required; New fails with InvalidArgument if either is missing.
// A D that is not divisible by M is reported as InvalidArgument by Train,
// since D is only known from the training set.
func New(opts ...Option) (*Index, error) {
	cfg := Config{DefaultK: 10, DefaultW: 1}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, classify("New", err)
		}
	}
	if cfg.Coarse.NumCentroids == 0 {
		return nil, invalidArgument("New", "WithCoarse is required")
	}
	if cfg.PQ.NumSubquantizers == 0 {
		return nil, invalidArgument("New", "WithPQ is required")
	}

	metrics := obs.NewMetrics()
	logger := cfg.logger
	if logger == nil {
		logger = obs.DefaultLogger()
	}
	return &Index{
		cfg:     cfg,
		engine:  engine.New(cfg.toEngineConfig(), metrics, logger),
		metrics: metrics,
	}, nil
}

// Train fits the coarse quantizer on trainSet, then the product quantizer
// on trainSet's residuals against their assigned coarse centroids. Valid
// only from the freshly-constructed state; fails with InvalidState on a
// second call.
func (ix *Index) Train(trainSet [][]float32) error {
	return classify("Train", ix.engine.Train(trainSet))
}

// Add assigns, encodes, and appends every row of baseSet, returning the
// original_id assigned to each row in input order. Fails with InvalidState
// unless the index is Trained or already Populated.
func (ix *Index) Add(baseSet [][]float32) ([]int64, error) {
	ids, err := ix.engine.Add(baseSet)
	if err != nil {
		return nil, classify("Add", err)
	}
	return ids, nil
}

// Search returns the k nearest candidates to q, probing the w coarse cells
// nearest to q. Fails with InvalidState unless the index is Populated.
func (ix *Index) Search(q []float32, k, w int) ([]Result, error) {
	results, err := ix.engine.Search(q, k, w)
	if err != nil {
		return nil, classify("Search", err)
	}
	return results, nil
}

// SearchDefault runs Search using the (k, w) configured via
// WithDefaultSearch (10, 1 if unset).
func (ix *Index) SearchDefault(q []float32) ([]Result, error) {
	return ix.Search(q, ix.cfg.DefaultK, ix.cfg.DefaultW)
}

// SearchMany runs Search for every query, in parallel, preserving query
// order in the returned slice.
func (ix *Index) SearchMany(queries [][]float32, k, w int) ([][]Result, error) {
	results, err := ix.engine.SearchMany(queries, k, w)
	if err != nil {
		return nil, classify("SearchMany", err)
	}
	return results, nil
}

// Save serializes the full Populated index to w. Fails with InvalidState
// unless the index is Populated.
func (ix *Index) Save(w io.Writer) error {
	return classify("Save", ix.engine.Save(w))
}

// Load replaces the index's contents with a previously Saved index read
// from r. Fails with Corrupt if r's contents fail validation, or IOError on
// an underlying read failure.
func (ix *Index) Load(r io.Reader) error {
	return classify("Load", ix.engine.Load(r))
}

// Stats reports the index's current population and a rough memory
// estimate.
func (ix *Index) Stats() Stats {
	return ix.engine.Stats()
}

// Metrics exposes the Prometheus registry this index records into, for a
// caller to serve or scrape.
func (ix *Index) Metrics() *obs.Metrics {
	return ix.metrics
}
