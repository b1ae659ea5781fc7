// Package util holds small data-structure helpers shared across the index.
package util

import "container/heap"

// Candidate is one scored search result: a PQ-coded entry's asymmetric
// distance to the query, paired with its original_id.
type Candidate struct {
	ID    int64
	Score float32
}

// BoundedMaxHeap keeps the k candidates with the lowest Score seen so far.
// Its root is the current worst admitted candidate — highest Score, ties
// broken toward the higher ID — the one evicted first when a better
// candidate arrives.
type BoundedMaxHeap struct {
	candidates []Candidate
	k          int
}

// NewBoundedMaxHeap creates a heap that retains at most k candidates.
func NewBoundedMaxHeap(k int) *BoundedMaxHeap {
	return &BoundedMaxHeap{candidates: make([]Candidate, 0, k), k: k}
}

func (h *BoundedMaxHeap) Len() int { return len(h.candidates) }
func (h *BoundedMaxHeap) Less(i, j int) bool {
	if h.candidates[i].Score != h.candidates[j].Score {
		return h.candidates[i].Score > h.candidates[j].Score
	}
	return h.candidates[i].ID > h.candidates[j].ID
}
func (h *BoundedMaxHeap) Swap(i, j int) {
	h.candidates[i], h.candidates[j] = h.candidates[j], h.candidates[i]
}
func (h *BoundedMaxHeap) Push(x any) { h.candidates = append(h.candidates, x.(Candidate)) }
func (h *BoundedMaxHeap) Pop() any {
	old := h.candidates
	n := len(old)
	item := old[n-1]
	h.candidates = old[:n-1]
	return item
}

// Offer admits c if the heap has fewer than k elements, or replaces the
// current worst element if c is strictly better under (Score, ID) order.
func (h *BoundedMaxHeap) Offer(c Candidate) {
	if h.Len() < h.k {
		heap.Push(h, c)
		return
	}
	worst := h.candidates[0]
	if c.Score < worst.Score || (c.Score == worst.Score && c.ID < worst.ID) {
		h.candidates[0] = c
		heap.Fix(h, 0)
	}
}

// Sorted returns the heap's candidates in ascending (Score, ID) order. It
// sorts a copy, so the heap itself is left unchanged.
func (h *BoundedMaxHeap) Sorted() []Candidate {
	out := make([]Candidate, len(h.candidates))
	copy(out, h.candidates)
	// Simple insertion sort: k is small (bounded by the caller's top-k),
	// so this avoids pulling in sort.Slice for what's typically a few tens
	// of elements.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID < b.ID
}
