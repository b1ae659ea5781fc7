// Package invidx implements the inverted-list data structure keyed by
// coarse cell id: a dense array of K_c cells, each holding a
// struct-of-arrays of (original_id, code) entries in insertion order.
package invidx

import "fmt"

// cell is one coarse partition's entries, stored as parallel slices
// (struct-of-arrays) rather than an array of (id, code) structs so that the
// inner search scan walks two contiguous buffers instead of chasing
// pointers.
type cell struct {
	ids   []int64
	codes []byte // flattened, stride = M bytes per entry
}

// Index is a dense mapping from coarse cell id in [0, K_c) to an ordered
// sequence of (original_id, code) entries. Insertion order within a cell is
// preserved. There is no removal or update.
type Index struct {
	cells []cell
	m     int // code width (PQ's M), fixed for the index's lifetime
}

// New creates an empty inverted index with kc cells, each entry code being
// m bytes wide.
func New(kc, m int) *Index {
	return &Index{cells: make([]cell, kc), m: m}
}

// Append adds one entry to the given cell. O(1) amortized.
func (idx *Index) Append(cellID int, originalID int64, code []byte) error {
	if cellID < 0 || cellID >= len(idx.cells) {
		return fmt.Errorf("invidx: cell id %d out of range [0,%d)", cellID, len(idx.cells))
	}
	if len(code) != idx.m {
		return fmt.Errorf("invidx: code length %d does not match index width %d", len(code), idx.m)
	}
	c := &idx.cells[cellID]
	c.ids = append(c.ids, originalID)
	c.codes = append(c.codes, code...)
	return nil
}

// Len returns the number of entries in a cell.
func (idx *Index) Len(cellID int) int {
	if cellID < 0 || cellID >= len(idx.cells) {
		return 0
	}
	return len(idx.cells[cellID].ids)
}

// TotalSize returns the total number of entries across all cells.
func (idx *Index) TotalSize() int {
	total := 0
	for i := range idx.cells {
		total += len(idx.cells[i].ids)
	}
	return total
}

// NumCells returns K_c.
func (idx *Index) NumCells() int { return len(idx.cells) }

// Entries returns the raw id and code buffers for a cell, in insertion
// order. The code buffer is flattened with stride M; entry i's code is
// codes[i*M : (i+1)*M]. Callers must not mutate the returned slices.
func (idx *Index) Entries(cellID int) (ids []int64, codes []byte) {
	if cellID < 0 || cellID >= len(idx.cells) {
		return nil, nil
	}
	c := &idx.cells[cellID]
	return c.ids, c.codes
}

// Visit calls fn once per entry in cellID, in insertion order, without
// allocating a per-entry code slice copy — fn's code argument aliases the
// cell's backing buffer and must not be retained past the call.
func (idx *Index) Visit(cellID int, fn func(originalID int64, code []byte)) {
	if cellID < 0 || cellID >= len(idx.cells) {
		return
	}
	c := &idx.cells[cellID]
	m := idx.m
	for i, id := range c.ids {
		fn(id, c.codes[i*m:(i+1)*m])
	}
}

// Snapshot captures the full index contents for serialization.
type Snapshot struct {
	M     int
	Cells []CellSnapshot
}

// CellSnapshot is one cell's entries for serialization.
type CellSnapshot struct {
	IDs   []int64
	Codes []byte
}

// Snapshot returns a serializable view of the index.
func (idx *Index) Snapshot() Snapshot {
	cells := make([]CellSnapshot, len(idx.cells))
	for i := range idx.cells {
		cells[i] = CellSnapshot{IDs: idx.cells[i].ids, Codes: idx.cells[i].codes}
	}
	return Snapshot{M: idx.m, Cells: cells}
}

// FromSnapshot rebuilds an index from a Snapshot, as done when loading a
// persisted index.
func FromSnapshot(s Snapshot) *Index {
	idx := &Index{cells: make([]cell, len(s.Cells)), m: s.M}
	for i, c := range s.Cells {
		idx.cells[i] = cell{ids: c.IDs, codes: c.Codes}
	}
	return idx
}
