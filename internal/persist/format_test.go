package persist

import (
	"bytes"
	"errors"
	"testing"
)

func sampleState() State {
	return State{
		D:  4,
		Kc: 2,
		M:  2,
		Ks: 2,
		CoarseCentroids: [][]float32{
			{0, 0, 0, 0},
			{10, 10, 10, 10},
		},
		PQCodebooks: [][][]float32{
			{{0, 0}, {10, 10}},
			{{0, 0}, {10, 10}},
		},
		Cells: []Cell{
			{IDs: []int64{0, 2}, Codes: []byte{0, 0, 1, 1}},
			{IDs: []int64{1}, Codes: []byte{1, 1}},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	want := sampleState()
	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.D != want.D || got.Kc != want.Kc || got.M != want.M || got.Ks != want.Ks {
		t.Fatalf("header mismatch: got %+v, want header of %+v", got, want)
	}
	if len(got.Cells) != len(want.Cells) {
		t.Fatalf("cell count mismatch: got %d, want %d", len(got.Cells), len(want.Cells))
	}
	for i := range want.Cells {
		if !int64sEqual(got.Cells[i].IDs, want.Cells[i].IDs) {
			t.Fatalf("cell %d ids: got %v, want %v", i, got.Cells[i].IDs, want.Cells[i].IDs)
		}
		if !bytes.Equal(got.Cells[i].Codes, want.Cells[i].Codes) {
			t.Fatalf("cell %d codes: got %v, want %v", i, got.Cells[i].Codes, want.Cells[i].Codes)
		}
	}
}

func TestDeterministicBytes(t *testing.T) {
	state := sampleState()
	var a, b bytes.Buffer
	if err := Write(&a, state); err != nil {
		t.Fatalf("Write a: %v", err)
	}
	if err := Write(&b, state); err != nil {
		t.Fatalf("Write b: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("two writes of the same state produced different bytes")
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b := buf.Bytes()
	b[0] ^= 0xff

	_, err := Read(bytes.NewReader(b))
	if err == nil || !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestReadRejectsSizeMismatch(t *testing.T) {
	var buf bytes.Buffer
	state := sampleState()
	if err := Write(&buf, state); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b := buf.Bytes()

	// N_total sits right after the 8-byte magic and 4 int32 header fields.
	offset := 8 + 4*4
	b[offset] ^= 0xff

	_, err := Read(bytes.NewReader(b))
	if err == nil || !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for N_total mismatch, got %v", err)
	}
}

func TestReadRejectsTruncatedFile(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]

	if _, err := Read(bytes.NewReader(truncated)); err == nil {
		t.Fatalf("expected an error reading a truncated file")
	}
}

func int64sEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
