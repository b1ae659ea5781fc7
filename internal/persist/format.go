// Package persist implements the on-disk binary layout for a trained and
// populated IVFADC index: a fixed little-endian header followed by the
// coarse and product quantizer centroid matrices and the inverted lists,
// framed with the same length-prefixed encoding/binary idiom the rest of
// this codebase's lineage uses for its write-ahead log.
package persist

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic identifies the file format; the last byte is the format version.
var Magic = [8]byte{'I', 'V', 'F', 'A', 'D', 'C', 0, 1}

// ErrCorrupt is wrapped by every error Read returns because of a failed
// magic/version/size-consistency check, as opposed to an underlying I/O
// failure from r itself.
var ErrCorrupt = errors.New("persist: corrupt index file")

// State is the full persisted content of a Populated engine.
type State struct {
	D  int32 // vector dimension
	Kc int32 // number of coarse centroids
	M  int32 // number of PQ subquantizers
	Ks int32 // number of PQ centroids per subquantizer

	CoarseCentroids [][]float32   // Kc x D
	PQCodebooks     [][][]float32 // M x Ks x (D/M)

	// Cells holds one entry per coarse cell, in cell-id order.
	Cells []Cell
}

// Cell is one coarse cell's inverted list.
type Cell struct {
	IDs   []int64
	Codes []byte // len == len(IDs) * M
}

// NTotal returns the sum of all cell sizes.
func (s State) NTotal() int64 {
	var n int64
	for _, c := range s.Cells {
		n += int64(len(c.IDs))
	}
	return n
}

// Write serializes state to w in the format documented above.
func Write(w io.Writer, state State) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.Write(Magic[:]); err != nil {
		return fmt.Errorf("persist: write magic: %w", err)
	}

	header := []int32{state.D, state.Kc, state.M, state.Ks}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("persist: write header: %w", err)
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, state.NTotal()); err != nil {
		return fmt.Errorf("persist: write N_total: %w", err)
	}

	for i, row := range state.CoarseCentroids {
		if len(row) != int(state.D) {
			return fmt.Errorf("persist: coarse centroid %d has width %d, expected %d", i, len(row), state.D)
		}
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return fmt.Errorf("persist: write coarse centroids: %w", err)
		}
	}

	subDim := 0
	if state.M > 0 {
		subDim = int(state.D) / int(state.M)
	}
	for m, book := range state.PQCodebooks {
		for k, centroid := range book {
			if len(centroid) != subDim {
				return fmt.Errorf("persist: pq centroid [%d][%d] has width %d, expected %d", m, k, len(centroid), subDim)
			}
			if err := binary.Write(bw, binary.LittleEndian, centroid); err != nil {
				return fmt.Errorf("persist: write pq centroids: %w", err)
			}
		}
	}

	for _, c := range state.Cells {
		if err := binary.Write(bw, binary.LittleEndian, int64(len(c.IDs))); err != nil {
			return fmt.Errorf("persist: write cell size: %w", err)
		}
	}

	for i, c := range state.Cells {
		if len(c.Codes) != len(c.IDs)*int(state.M) {
			return fmt.Errorf("persist: cell %d code buffer length %d does not match %d ids * M=%d", i, len(c.Codes), len(c.IDs), state.M)
		}
		if err := binary.Write(bw, binary.LittleEndian, c.IDs); err != nil {
			return fmt.Errorf("persist: write cell %d ids: %w", i, err)
		}
		if _, err := bw.Write(c.Codes); err != nil {
			return fmt.Errorf("persist: write cell %d codes: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("persist: flush: %w", err)
	}
	return nil
}

// Read deserializes a State from r, validating the magic/version and
// cross-checking that the sum of cell sizes equals the recorded N_total.
func Read(r io.Reader) (State, error) {
	br := bufio.NewReader(r)

	var magic [8]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return State{}, fmt.Errorf("persist: read magic: %w", err)
	}
	if magic != Magic {
		return State{}, fmt.Errorf("%w: bad magic %v", ErrCorrupt, magic)
	}

	var state State
	fields := []*int32{&state.D, &state.Kc, &state.M, &state.Ks}
	for _, f := range fields {
		if err := binary.Read(br, binary.LittleEndian, f); err != nil {
			return State{}, fmt.Errorf("persist: read header: %w", err)
		}
	}
	var nTotal int64
	if err := binary.Read(br, binary.LittleEndian, &nTotal); err != nil {
		return State{}, fmt.Errorf("persist: read N_total: %w", err)
	}

	if state.D <= 0 || state.Kc <= 0 || state.M <= 0 || state.Ks <= 0 {
		return State{}, fmt.Errorf("%w: non-positive header field %+v", ErrCorrupt, state)
	}
	if state.D%state.M != 0 {
		return State{}, fmt.Errorf("%w: D=%d not divisible by M=%d", ErrCorrupt, state.D, state.M)
	}

	state.CoarseCentroids = make([][]float32, state.Kc)
	for i := range state.CoarseCentroids {
		row := make([]float32, state.D)
		if err := binary.Read(br, binary.LittleEndian, row); err != nil {
			return State{}, fmt.Errorf("persist: read coarse centroid %d: %w", i, err)
		}
		state.CoarseCentroids[i] = row
	}

	subDim := int(state.D) / int(state.M)
	state.PQCodebooks = make([][][]float32, state.M)
	for m := range state.PQCodebooks {
		book := make([][]float32, state.Ks)
		for k := range book {
			centroid := make([]float32, subDim)
			if err := binary.Read(br, binary.LittleEndian, centroid); err != nil {
				return State{}, fmt.Errorf("persist: read pq centroid [%d][%d]: %w", m, k, err)
			}
			book[k] = centroid
		}
		state.PQCodebooks[m] = book
	}

	sizes := make([]int64, state.Kc)
	for i := range sizes {
		if err := binary.Read(br, binary.LittleEndian, &sizes[i]); err != nil {
			return State{}, fmt.Errorf("persist: read cell size %d: %w", i, err)
		}
	}

	var sumSizes int64
	state.Cells = make([]Cell, state.Kc)
	for i, size := range sizes {
		sumSizes += size
		ids := make([]int64, size)
		if err := binary.Read(br, binary.LittleEndian, ids); err != nil {
			return State{}, fmt.Errorf("persist: read cell %d ids: %w", i, err)
		}
		codes := make([]byte, size*int64(state.M))
		if _, err := io.ReadFull(br, codes); err != nil {
			return State{}, fmt.Errorf("persist: read cell %d codes: %w", i, err)
		}
		state.Cells[i] = Cell{IDs: ids, Codes: codes}
	}

	if sumSizes != nTotal {
		return State{}, fmt.Errorf("%w: cell sizes sum to %d, header says N_total=%d", ErrCorrupt, sumSizes, nTotal)
	}

	return state, nil
}
