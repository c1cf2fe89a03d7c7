package heap

import "github.com/plasma-lang/pzvm/internal/word"

// Alloc implements spec.md §4.B: try the free list and wilderness bump
// first, trigger a synchronous collection on failure, then retry once
// before giving up as a fatal out-of-memory condition.
func (h *Heap) Alloc(sizeInWords int64, traceThreadRoots TraceFunc, traceData any) word.Address {
	heapAssert(sizeInWords > 0, "alloc: size must be positive, got %d", sizeInWords)

	var cell word.Address
	if h.opts.zealous && h.wilderness > h.base {
		// GC-zealous: force a collection before every non-initial
		// allocation rather than trying the fast path first.
		cell = 0
	} else {
		cell = h.tryAllocate(sizeInWords)
	}
	if cell == 0 {
		h.Collect(traceThreadRoots, traceData)
		cell = h.tryAllocate(sizeInWords)
		if cell == 0 {
			abortf("out of memory, tried to allocate %d bytes", sizeInWords*int64(h.w))
		}
	}
	return cell
}

// AllocBytes rounds n up to a whole number of words and delegates to
// Alloc.
func (h *Heap) AllocBytes(n int64, traceThreadRoots TraceFunc, traceData any) word.Address {
	words := (n + int64(h.w) - 1) / int64(h.w)
	return h.Alloc(words, traceThreadRoots, traceData)
}

// tryAllocate implements the best-fit-then-bump policy of spec.md
// §4.B. It never triggers a collection; it returns 0 on failure and
// lets Alloc decide.
func (h *Heap) tryAllocate(n int64) word.Address {
	if best, prevBest := h.findBestFit(n); best != 0 {
		return h.allocateFromFreeList(best, prevBest, n)
	}
	return h.bumpAllocate(n)
}

// findBestFit walks the free list for the smallest cell whose size is
// >= n, returning it and its predecessor (0 if it is the list head).
func (h *Heap) findBestFit(n int64) (best, prevBest word.Address) {
	var prev word.Address
	for cell := h.freeList; cell != 0; cell = h.nextFree(cell) {
		heapAssert(*h.bits(cell) == bitValid, "free cell %#x has bad bits %#x", cell, *h.bits(cell))
		heapAssert(h.sizeWord(cell) != 0, "free cell %#x has zero size", cell)
		size := h.sizeWord(cell)
		if size >= n && (best == 0 || size < h.sizeWord(best)) {
			prevBest = prev
			best = cell
		}
		prev = cell
	}
	return best, prevBest
}

func (h *Heap) nextFree(cell word.Address) word.Address {
	return word.Address(h.readWord(cell))
}

func (h *Heap) setNextFree(cell, next word.Address) {
	h.writeWord(cell, int64(next))
}

func (h *Heap) allocateFromFreeList(best, prevBest word.Address, n int64) word.Address {
	// Unlink best from the free list.
	if prevBest == 0 {
		heapAssert(h.freeList == best, "free list head mismatch")
		h.freeList = h.nextFree(best)
	} else {
		h.setNextFree(prevBest, h.nextFree(best))
	}

	heapAssert(*h.bits(best) == bitValid, "allocateFromFreeList: bad bits")
	*h.bits(best) = bitValid | bitAllocated

	oldSize := h.sizeWord(best)
	if oldSize >= n+2 {
		// Split: shrink to exactly n words and form a new free cell
		// from the remainder.
		h.setSizeWord(best, n)
		next := best.Add((n + 1) * int64(h.w))
		h.setSizeWord(next, oldSize-(n+1))
		*h.bits(next) = bitValid
		h.setNextFree(next, h.freeList)
		h.freeList = next
		h.opts.tracef("split cell %#x from %d into %d and %d", best, oldSize, n, oldSize-(n+1))
	}
	h.opts.trace2f("allocated %#x from free list", best)
	return best
}

func (h *Heap) bumpAllocate(n int64) word.Address {
	cell := h.wilderness.Add(int64(h.w))
	newWilderness := h.wilderness.Add((n + 1) * int64(h.w))
	if newWilderness.Sub(h.base) > h.heapSize {
		return 0
	}
	h.wilderness = newWilderness
	h.setSizeWord(cell, n)
	*h.bits(cell) = bitValid | bitAllocated
	h.opts.trace2f("allocated %#x from the wilderness", cell)
	return cell
}
