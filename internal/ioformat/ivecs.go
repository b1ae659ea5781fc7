package ioformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// IvecsReader reads the ivecs format: the same length-prefixed layout as
// fvecs, with int32 payloads instead of float32. Used for ground-truth
// files; values are widened to float32 so callers share one matrix type
// with FvecsReader.
type IvecsReader struct {
	file *os.File
	dim  int
	n    int
}

// Open reports the shared dimension and record count.
func (r *IvecsReader) Open(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("ioformat: open %s: %w", path, err)
	}
	r.file = f

	dim, n, err := scanRecords(f, 4)
	if err != nil {
		f.Close()
		return 0, 0, err
	}
	r.dim, r.n = dim, n
	return dim, n, nil
}

// ReadAll reads every record into a dense N x dim matrix of widened int32
// payloads.
func (r *IvecsReader) ReadAll() ([][]float32, error) {
	if r.file == nil {
		return nil, fmt.Errorf("ioformat: ReadAll called before Open")
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ioformat: seek: %w", err)
	}
	br := bufio.NewReader(r.file)

	rows := make([][]float32, 0, r.n)
	for {
		row, dim, ok, err := readIntRecord(br)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if dim != r.dim {
			return nil, fmt.Errorf("ioformat: record dimension %d does not match file dimension %d", dim, r.dim)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadAllInt reads every record as raw int32 values, the natural type for
// ground-truth neighbor-id files.
func (r *IvecsReader) ReadAllInt() ([][]int32, error) {
	if r.file == nil {
		return nil, fmt.Errorf("ioformat: ReadAllInt called before Open")
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ioformat: seek: %w", err)
	}
	br := bufio.NewReader(r.file)

	rows := make([][]int32, 0, r.n)
	for {
		var dim32 int32
		if err := binary.Read(br, binary.LittleEndian, &dim32); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("ioformat: read record header: %w", err)
		}
		if int(dim32) != r.dim {
			return nil, fmt.Errorf("ioformat: record dimension %d does not match file dimension %d", dim32, r.dim)
		}
		row := make([]int32, dim32)
		if err := binary.Read(br, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("ioformat: read record payload: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close releases the underlying file handle.
func (r *IvecsReader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func readIntRecord(br *bufio.Reader) (row []float32, dim int, ok bool, err error) {
	var dim32 int32
	if readErr := binary.Read(br, binary.LittleEndian, &dim32); readErr != nil {
		if readErr == io.EOF {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("ioformat: read record header: %w", readErr)
	}
	dim = int(dim32)
	if dim < 0 {
		return nil, 0, false, fmt.Errorf("ioformat: negative record dimension %d", dim)
	}

	raw := make([]int32, dim)
	if err := binary.Read(br, binary.LittleEndian, raw); err != nil {
		return nil, 0, false, fmt.Errorf("ioformat: read record payload: %w", err)
	}
	row = make([]float32, dim)
	for i, v := range raw {
		row[i] = float32(v)
	}
	return row, dim, true, nil
}
