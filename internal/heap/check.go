package heap

import "github.com/plasma-lang/pzvm/internal/word"

// CheckHeap walks base..wilderness word by word and asserts that every
// cell-start word carries VALID and every other word's bits are zero,
// and that every free-list entry carries exactly VALID (spec.md §4.C,
// "Heap check"). It panics on the first inconsistency found; callers
// normally only invoke it via WithSlowAsserts.
func (h *Heap) CheckHeap() {
	heapAssert(h.base != 0, "check_heap: heap not initialised")
	heapAssert(h.wilderness >= h.base, "check_heap: wilderness before base")

	cell := h.base.Add(int64(h.w))
	for cell < h.wilderness {
		heapAssert(*h.bits(cell)&bitValid != 0, "check_heap: %#x missing VALID", cell)
		size := h.sizeWord(cell)
		heapAssert(size > 0, "check_heap: %#x has non-positive size", cell)
		sizeWordAddr := cell.Add(-int64(h.w))
		heapAssert(*h.bits(sizeWordAddr) == 0, "check_heap: size word %#x not zero", sizeWordAddr)

		for i := int64(1); i < size; i++ {
			interior := cell.Add(i * int64(h.w))
			heapAssert(*h.bits(interior) == 0, "check_heap: interior word %#x not zero", interior)
		}

		next := cell.Add((size + 1) * int64(h.w))
		heapAssert(next <= h.wilderness, "check_heap: cell at %#x runs past wilderness", cell)
		cell = next
	}

	seen := map[word.Address]bool{}
	for cell := h.freeList; cell != 0; cell = h.nextFree(cell) {
		heapAssert(!seen[cell], "check_heap: free list cycle at %#x", cell)
		seen[cell] = true
		heapAssert(*h.bits(cell) == bitValid, "check_heap: free cell %#x has bits %#x, want VALID only", cell, *h.bits(cell))
	}
}
