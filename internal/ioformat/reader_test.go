package ioformat

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeFvecs(t *testing.T, path string, rows [][]float32) {
	t.Helper()
	var buf bytes.Buffer
	for _, row := range rows {
		if err := binary.Write(&buf, binary.LittleEndian, int32(len(row))); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, row); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func writeIvecs(t *testing.T, path string, rows [][]int32) {
	t.Helper()
	var buf bytes.Buffer
	for _, row := range rows {
		if err := binary.Write(&buf, binary.LittleEndian, int32(len(row))); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, row); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestFvecsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "base.fvecs")
	want := [][]float32{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{9, 10, 11, 12},
	}
	writeFvecs(t, path, want)

	r := &FvecsReader{}
	dim, n, err := r.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if dim != 4 || n != 3 {
		t.Fatalf("Open = (%d, %d), want (4, 3)", dim, n)
	}

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("row %d mismatch: got %v want %v", i, got[i], want[i])
			}
		}
	}
}

func TestIvecsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gt.ivecs")
	want := [][]int32{{100, 200}, {300, 400}}
	writeIvecs(t, path, want)

	r := &IvecsReader{}
	dim, n, err := r.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	if dim != 2 || n != 2 {
		t.Fatalf("Open = (%d, %d), want (2, 2)", dim, n)
	}

	got, err := r.ReadAllInt()
	if err != nil {
		t.Fatalf("ReadAllInt: %v", err)
	}
	for i := range want {
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Fatalf("row %d mismatch: got %v want %v", i, got[i], want[i])
			}
		}
	}
}

func TestDimensionMismatchAcrossRecordsFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.fvecs")
	// Hand-craft a file whose records disagree on dim so scanRecords'
	// size-based record count is wrong and ReadAll must catch it.
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(2))
	binary.Write(&buf, binary.LittleEndian, []float32{1, 2})
	binary.Write(&buf, binary.LittleEndian, int32(3))
	binary.Write(&buf, binary.LittleEndian, []float32{1, 2, 3})
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := &FvecsReader{}
	if _, _, err := r.Open(path); err != nil {
		// A size-based scan may already reject this; either failure mode
		// (Open or ReadAll) satisfies the invariant that mismatched files
		// are rejected rather than silently truncated.
		return
	}
	defer r.Close()
	if _, err := r.ReadAll(); err == nil {
		t.Fatalf("expected error for inconsistent record dimensions")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	if !reg.Supports("fvecs") || !reg.Supports("ivecs") {
		t.Fatalf("expected fvecs and ivecs to be registered by default")
	}
	if reg.Supports("parquet") {
		t.Fatalf("did not expect parquet to be registered")
	}
	r, err := reg.New("fvecs")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := r.(*FvecsReader); !ok {
		t.Fatalf("expected *FvecsReader, got %T", r)
	}
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("fvecs", func() Reader { return &FvecsReader{} }); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := reg.Register("fvecs", func() Reader { return &FvecsReader{} }); err == nil {
		t.Fatalf("expected error registering duplicate tag")
	}
}
