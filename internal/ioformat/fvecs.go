package ioformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// FvecsReader reads the fvecs format: repeated records of a little-endian
// int32 dimension followed by that many little-endian float32 values.
type FvecsReader struct {
	file *os.File
	dim  int
	n    int
}

// Open reports the dimension and record count without materializing the
// matrix, from the first record header and the file size.
func (r *FvecsReader) Open(path string) (int, int, error) {
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

// ReadAll reads every record into a dense N x dim float32 matrix.
func (r *FvecsReader) ReadAll() ([][]float32, error) {
	if r.file == nil {
		return nil, fmt.Errorf("ioformat: ReadAll called before Open")
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ioformat: seek: %w", err)
	}
	br := bufio.NewReader(r.file)

	rows := make([][]float32, 0, r.n)
	for {
		row, dim, ok, err := readFloatRecord(br)
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

// Close releases the underlying file handle.
func (r *FvecsReader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

func readFloatRecord(br *bufio.Reader) (row []float32, dim int, ok bool, err error) {
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

	row = make([]float32, dim)
	if err := binary.Read(br, binary.LittleEndian, row); err != nil {
		return nil, 0, false, fmt.Errorf("ioformat: read record payload: %w", err)
	}
	return row, dim, true, nil
}

// scanRecords reads just enough of the file to determine (dim, n): the
// first record's dimension, and the file size divided by that record's
// size. It checks only that the file size is a whole number of such
// records; per-record dimensions are checked by ReadAll. elemSize is 4 for
// both fvecs and ivecs, since both pack float32/int32 payloads.
func scanRecords(f *os.File, elemSize int64) (dim int, n int, err error) {
	stat, err := f.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("ioformat: stat: %w", err)
	}

	br := bufio.NewReader(f)
	var dim32 int32
	if readErr := binary.Read(br, binary.LittleEndian, &dim32); readErr != nil {
		if readErr == io.EOF {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("ioformat: read header: %w", readErr)
	}
	dim = int(dim32)
	if dim <= 0 {
		return 0, 0, fmt.Errorf("ioformat: invalid record dimension %d", dim)
	}

	recordSize := int64(4) + int64(dim)*elemSize
	if stat.Size()%recordSize != 0 {
		return 0, 0, fmt.Errorf("ioformat: file size %d is not a multiple of record size %d", stat.Size(), recordSize)
	}
	n = int(stat.Size() / recordSize)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, 0, fmt.Errorf("ioformat: seek: %w", err)
	}
	return dim, n, nil
}
