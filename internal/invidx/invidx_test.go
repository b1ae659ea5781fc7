package invidx

import "testing"

func TestAppendAndVisitPreservesInsertionOrder(t *testing.T) {
	idx := New(3, 2)
	entries := []struct {
		id   int64
		code []byte
	}{
		{10, []byte{1, 2}},
		{20, []byte{3, 4}},
		{30, []byte{5, 6}},
	}
	for _, e := range entries {
		if err := idx.Append(1, e.id, e.code); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var gotIDs []int64
	var gotCodes [][]byte
	idx.Visit(1, func(id int64, code []byte) {
		gotIDs = append(gotIDs, id)
		cp := make([]byte, len(code))
		copy(cp, code)
		gotCodes = append(gotCodes, cp)
	})

	for i, e := range entries {
		if gotIDs[i] != e.id {
			t.Errorf("entry %d id = %d, want %d", i, gotIDs[i], e.id)
		}
		if string(gotCodes[i]) != string(e.code) {
			t.Errorf("entry %d code = %v, want %v", i, gotCodes[i], e.code)
		}
	}
}

func TestLenAndTotalSize(t *testing.T) {
	idx := New(2, 1)
	if idx.TotalSize() != 0 {
		t.Fatalf("expected empty index")
	}
	idx.Append(0, 1, []byte{9})
	idx.Append(0, 2, []byte{9})
	idx.Append(1, 3, []byte{9})

	if idx.Len(0) != 2 {
		t.Errorf("Len(0) = %d, want 2", idx.Len(0))
	}
	if idx.Len(1) != 1 {
		t.Errorf("Len(1) = %d, want 1", idx.Len(1))
	}
	if idx.TotalSize() != 3 {
		t.Errorf("TotalSize() = %d, want 3", idx.TotalSize())
	}
}

func TestEmptyCellDoesNotError(t *testing.T) {
	idx := New(2, 1)
	visited := false
	idx.Visit(0, func(int64, []byte) { visited = true })
	if visited {
		t.Fatalf("expected no entries visited in empty cell")
	}
	if idx.Len(0) != 0 {
		t.Fatalf("expected Len(0) == 0")
	}
}

func TestAppendRejectsOutOfRangeCellAndWrongCodeWidth(t *testing.T) {
	idx := New(2, 3)
	if err := idx.Append(5, 1, []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for out-of-range cell")
	}
	if err := idx.Append(0, 1, []byte{1, 2}); err == nil {
		t.Fatalf("expected error for wrong code width")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := New(2, 2)
	idx.Append(0, 100, []byte{1, 2})
	idx.Append(1, 200, []byte{3, 4})

	snap := idx.Snapshot()
	idx2 := FromSnapshot(snap)

	if idx2.TotalSize() != idx.TotalSize() {
		t.Fatalf("TotalSize mismatch after snapshot round trip")
	}
	ids, codes := idx2.Entries(0)
	if len(ids) != 1 || ids[0] != 100 || string(codes) != string([]byte{1, 2}) {
		t.Fatalf("cell 0 mismatch after round trip: ids=%v codes=%v", ids, codes)
	}
}
