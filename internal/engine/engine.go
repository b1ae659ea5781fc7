// Package engine implements the IVFADC orchestration layer: it owns the
// coarse quantizer, the product quantizer, and the inverted index, and
// drives them through a Train -> Add -> Search lifecycle.
package engine

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/corvid-labs/ivfadc/internal/invidx"
	"github.com/corvid-labs/ivfadc/internal/obs"
	"github.com/corvid-labs/ivfadc/internal/persist"
	"github.com/corvid-labs/ivfadc/internal/quant"
	"github.com/corvid-labs/ivfadc/internal/util"
	"golang.org/x/sync/errgroup"
)

// lifecycle is the engine's state machine: Uninitialized -> CoarseTrained
// (an internal sub-step of Train, never observable from outside this
// package) -> Trained -> Populated.
type lifecycle int

const (
	uninitialized lifecycle = iota
	trained
	populated
)

// Result is one scored candidate returned by Search, ordered ascending by
// (Score, ID).
type Result struct {
	ID    int64
	Score float32
}

// Engine is the IVFADC index: two cascaded quantizers plus the inverted
// list they feed. The zero value is not usable; construct with New.
type Engine struct {
	mu sync.RWMutex

	cfg     Config
	dim     int
	state   lifecycle
	coarse  *quant.Coarse
	pq      *quant.Product
	index   *invidx.Index
	nextID  int64
	metrics *obs.Metrics
	log     obs.Logger
}

// New creates an untrained engine. metrics may be nil, in which case
// observability is a no-op. logger may be nil, in which case logging is a
// no-op.
func New(cfg Config, metrics *obs.Metrics, logger obs.Logger) *Engine {
	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	if logger == nil {
		logger = obs.DefaultLogger()
	}
	return &Engine{cfg: cfg, state: uninitialized, metrics: metrics, log: logger}
}

// Train fits the coarse quantizer on trainSet and the product quantizer on
// the residuals of trainSet against their assigned coarse centroids. Only
// valid from the Uninitialized state; retraining an already-trained engine
// is rejected rather than performed incrementally.
func (e *Engine) Train(trainSet [][]float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != uninitialized {
		return fmt.Errorf("%w: Train requires Uninitialized, engine is %s", ErrInvalidState, e.state)
	}
	if len(trainSet) == 0 {
		return fmt.Errorf("%w: training set must have at least one row", ErrInvalidArgument)
	}

	start := time.Now()

	coarse, err := quant.TrainCoarse(trainSet, e.cfg.Coarse)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	residuals := make([][]float32, len(trainSet))
	for i, v := range trainSet {
		r, err := coarse.Residual(v)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		residuals[i] = r
	}

	pq, err := quant.TrainProduct(residuals, e.cfg.PQ)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	e.coarse = coarse
	e.pq = pq
	e.dim = coarse.Dim()
	e.index = invidx.New(coarse.K(), pq.M())
	e.nextID = 0
	e.state = trained

	e.metrics.TrainingsTotal.Inc()
	e.metrics.TrainingSeconds.Observe(time.Since(start).Seconds())
	e.log.Infof("engine: trained coarse=%d pq=(M=%d,K_s=%d) in %s", coarse.K(), pq.M(), len(pq.Codebooks()[0]), time.Since(start))
	return nil
}

// encoded is one row's coarse cell and PQ code. Add computes these in
// parallel, each worker writing only its own slot, before any row is
// appended to the inverted index.
type encoded struct {
	cell int
	code []byte
}

// Add assigns, residualizes, and encodes every row of baseSet, then commits
// them to the inverted index in input order. original_ids are assigned
// monotonically starting from the count of previously inserted vectors. On
// any encoding failure nothing is committed: the engine's observable state
// is unchanged, satisfying the batch-atomicity requirement.
func (e *Engine) Add(baseSet [][]float32) ([]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != trained && e.state != populated {
		return nil, fmt.Errorf("%w: Add requires Trained or Populated, engine is %s", ErrInvalidState, e.state)
	}
	if len(baseSet) == 0 {
		e.log.Debugf("engine: Add called with zero rows, no-op")
		return []int64{}, nil
	}

	results := make([]encoded, len(baseSet))
	var g errgroup.Group
	for i, v := range baseSet {
		i, v := i, v
		g.Go(func() error {
			if len(v) != e.dim {
				return fmt.Errorf("%w: row %d has dimension %d, expected %d", ErrInvalidArgument, i, len(v), e.dim)
			}
			cell, err := e.coarse.Assign(v)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
			}
			residual := e.coarse.ResidualAgainst(v, cell)
			code, err := e.pq.Encode(residual)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
			}
			results[i] = encoded{cell: cell, code: code}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.metrics.AddErrors.Inc()
		e.log.Warnf("engine: Add batch of %d rows rejected: %v", len(baseSet), err)
		return nil, err
	}

	ids := make([]int64, len(baseSet))
	base := e.nextID
	for i, r := range results {
		id := base + int64(i)
		if err := e.index.Append(r.cell, id, r.code); err != nil {
			// Append fails only for an out-of-range cell or a code of the
			// wrong width, which Assign and Encode above rule out. Rows
			// appended earlier in this loop are not removed on this path.
			e.metrics.AddErrors.Inc()
			return nil, err
		}
		ids[i] = id
	}

	e.nextID += int64(len(baseSet))
	e.state = populated
	e.metrics.VectorsAdded.Add(float64(len(baseSet)))
	e.metrics.AddBatchBytes.Observe(float64(len(baseSet)))
	e.log.Debugf("engine: added %d vectors, nextID now %d", len(baseSet), e.nextID)
	return ids, nil
}

// Search returns the k nearest candidates to q among the entries of the w
// coarse cells nearest to q, scored by asymmetric distance computation.
func (e *Engine) Search(q []float32, k, w int) ([]Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	start := time.Now()
	results, err := e.search(q, k, w)
	if err != nil {
		e.metrics.SearchErrors.Inc()
		e.log.Errorf("engine: Search(k=%d,w=%d) failed: %v", k, w, err)
		return nil, err
	}
	e.metrics.SearchesTotal.Inc()
	e.metrics.SearchLatency.Observe(time.Since(start).Seconds())
	return results, nil
}

func (e *Engine) search(q []float32, k, w int) ([]Result, error) {
	if e.state != populated {
		return nil, fmt.Errorf("%w: Search requires Populated, engine is %s", ErrInvalidState, e.state)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}
	if w < 1 || w > e.coarse.K() {
		return nil, fmt.Errorf("%w: w must be between 1 and %d, got %d", ErrInvalidArgument, e.coarse.K(), w)
	}
	if len(q) != e.dim {
		return nil, fmt.Errorf("%w: query dimension %d does not match engine dimension %d", ErrInvalidArgument, len(q), e.dim)
	}

	cells, _, err := e.coarse.NearestCells(q, w)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	h := util.NewBoundedMaxHeap(k)
	candidatesScored := 0
	for _, cellID := range cells {
		residual := e.coarse.ResidualAgainst(q, cellID)
		table, err := e.pq.BuildTables(residual)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		e.index.Visit(cellID, func(id int64, code []byte) {
			candidatesScored++
			score := table.Score(code)
			h.Offer(util.Candidate{ID: id, Score: score})
		})
	}
	e.metrics.CellsProbed.Observe(float64(len(cells)))
	e.metrics.CandidatesScored.Observe(float64(candidatesScored))

	sorted := h.Sorted()
	out := make([]Result, len(sorted))
	for i, c := range sorted {
		out[i] = Result{ID: c.ID, Score: c.Score}
	}
	return out, nil
}

// SearchMany runs Search for each query in parallel, the batch-search
// region called for at the concurrency-model level; results are returned in
// query order regardless of completion order.
func (e *Engine) SearchMany(queries [][]float32, k, w int) ([][]Result, error) {
	out := make([][]Result, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			r, err := e.Search(q, k, w)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Save serializes the full Populated state. Fails with InvalidState unless
// Populated.
func (e *Engine) Save(w io.Writer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state != populated {
		return fmt.Errorf("%w: Save requires Populated, engine is %s", ErrInvalidState, e.state)
	}

	snap := e.index.Snapshot()
	cells := make([]persist.Cell, len(snap.Cells))
	for i, c := range snap.Cells {
		cells[i] = persist.Cell{IDs: c.IDs, Codes: c.Codes}
	}

	state := persist.State{
		D:               int32(e.dim),
		Kc:              int32(e.coarse.K()),
		M:               int32(e.pq.M()),
		Ks:              int32(len(e.pq.Codebooks()[0])),
		CoarseCentroids: e.coarse.Centroids(),
		PQCodebooks:     e.pq.Codebooks(),
		Cells:           cells,
	}
	return persist.Write(w, state)
}

// Load replaces the engine's state with a previously-Saved index, read from
// r. The loaded engine is Populated and its centroids are immutable, but
// Add may still be called against it (new vectors join existing cells).
func (e *Engine) Load(r io.Reader) error {
	state, err := persist.Read(r)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap := invidx.Snapshot{M: int(state.M)}
	var total int64
	for _, c := range state.Cells {
		snap.Cells = append(snap.Cells, invidx.CellSnapshot{IDs: c.IDs, Codes: c.Codes})
		total += int64(len(c.IDs))
	}

	e.dim = int(state.D)
	e.coarse = quant.NewCoarseFromCentroids(state.CoarseCentroids)
	e.pq = quant.NewProductFromCodebooks(state.PQCodebooks)
	e.index = invidx.FromSnapshot(snap)
	e.nextID = total
	e.state = populated
	e.log.Infof("engine: loaded index with %d cells, %d vectors", e.index.NumCells(), total)
	return nil
}

// Stats summarizes the current population of the index, grounded on the
// same per-cluster reporting a coarse-quantized index traditionally
// exposes.
type Stats struct {
	State       string
	NumCells    int
	TotalVectors int
	CellSizes   []int
	MemoryBytes int64
}

// Stats reports engine population and a rough memory estimate. Valid in any
// state; an Uninitialized engine reports zero cells, and a Trained engine
// reports K_c cells that are all empty.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{State: e.state.String()}
	if e.index == nil {
		return s
	}

	s.NumCells = e.index.NumCells()
	s.CellSizes = make([]int, s.NumCells)
	var mem int64
	mem += int64(e.coarse.K()) * int64(e.dim) * 4
	for m := range e.pq.Codebooks() {
		mem += int64(len(e.pq.Codebooks()[m])) * int64(e.pq.SubDim()) * 4
	}
	for i := 0; i < s.NumCells; i++ {
		n := e.index.Len(i)
		s.CellSizes[i] = n
		s.TotalVectors += n
		mem += int64(n) * 8          // ids
		mem += int64(n) * int64(e.pq.M()) // codes
	}
	s.MemoryBytes = mem
	return s
}

func (l lifecycle) String() string {
	switch l {
	case uninitialized:
		return "Uninitialized"
	case trained:
		return "Trained"
	case populated:
		return "Populated"
	default:
		return "Unknown"
	}
}

