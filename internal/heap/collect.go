package heap

import "github.com/plasma-lang/pzvm/internal/word"

// Marker is the mark-phase state a collection threads through the
// caller-supplied tracer callbacks (spec.md §4.C). It is opaque to
// tracers; they only call the MarkRoot* entry points on it.
type Marker struct {
	numMarked      int
	numRootsMarked int
	heap           *Heap
}

// Collect runs one synchronous mark-then-sweep collection: it invokes
// the global-roots tracer, then (if provided) the thread-roots tracer,
// then sweeps. It never retries or runs concurrently with the mutator.
func (h *Heap) Collect(traceThreadRoots TraceFunc, traceData any) {
	if h.opts.slowAsserts {
		h.CheckHeap()
	}

	m := &Marker{heap: h}

	h.opts.tracef("tracing from global roots")
	h.traceGlobalRoots(m, h.traceGlobalData)
	h.opts.tracef("done tracing from global roots")

	if traceThreadRoots != nil {
		h.opts.tracef("tracing from thread roots (eg stacks)")
		traceThreadRoots(m, traceData)
		h.opts.tracef("done tracing from stack")
	}

	h.opts.tracef("marked %d root pointers, marked %d pointers total", m.numRootsMarked, m.numMarked)

	h.sweep()

	if h.opts.slowAsserts {
		h.CheckHeap()
	}
}

// mark is the fundamental mark primitive of spec.md §4.C: it sets the
// mark bit, counts one, then recursively marks every tag-masked word
// of the cell's payload that is itself a valid, unmarked object.
//
// Recursion here mirrors original_source/runtime/pz_gc.cpp's Heap::mark
// directly, but spec.md §9 prefers an explicit work list over native
// recursion to bound stack growth; we use one.
func (h *Heap) mark(root word.Address) int {
	n := 0
	stack := []word.Address{root}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if *h.bits(p)&bitMarked != 0 {
			continue
		}
		*h.bits(p) |= bitMarked
		n++

		size := h.sizeWord(p)
		for i := int64(0); i < size*int64(h.w); i += int64(h.w) {
			cur := word.RemoveTag(word.Address(h.readWord(p.Add(i))), h.w)
			if h.IsValidObject(cur) && *h.bits(cur)&bitMarked == 0 {
				stack = append(stack, cur)
			}
		}
	}
	return n
}

// MarkRoot is the exact-root entry point: v holds a single heap
// pointer. If it (tag-masked) is a valid, unmarked object, mark it.
func (m *Marker) MarkRoot(v word.Address) {
	p := word.RemoveTag(v, m.heap.w)
	if m.heap.IsValidObject(p) && *m.heap.bits(p)&bitMarked == 0 {
		m.numMarked += m.heap.mark(p)
		m.numRootsMarked++
	}
}

// MarkRootConservative scans values word by word; any slot whose
// tag-masked value is a valid object start is marked. No
// interior-pointer discovery is attempted.
//
// spec.md §4.C models this entry point as a (base, length_in_bytes)
// byte range, since the reference runtime scans its C stack through a
// raw pointer. A tracer here has no such raw pointer to caller memory
// to begin with: the interpreter's own expression and return stacks
// are already typed word.Address/word.StackValue slices (internal/vm),
// so the faithful Go shape of the same contract is "walk this slice of
// candidate words", not "walk this byte range" — the scan semantics
// are identical, only the vessel changes.
func (m *Marker) MarkRootConservative(values []word.Address) {
	h := m.heap
	for _, raw := range values {
		cur := word.RemoveTag(raw, h.w)
		if h.IsValidObject(cur) && *h.bits(cur)&bitMarked == 0 {
			m.numMarked += h.mark(cur)
			m.numRootsMarked++
		}
	}
}

// MarkRootConservativeInterior is like MarkRootConservative, but a
// slot that lands inside a heap region without being at a cell start
// is walked backward, one word at a time, until a VALID-bit word is
// found (spec.md §4.C, "Conservative interior range").
func (m *Marker) MarkRootConservativeInterior(values []word.Address) {
	h := m.heap
	for _, raw := range values {
		cur := word.RemoveTag(raw, h.w)
		if !h.IsHeapAddress(cur) {
			continue
		}
		// The bound check must precede the bits() read on every
		// iteration, not follow it: cur can reach base-W (one word
		// below the heap) after the last decrement, and bits() indexes
		// the bitmap by (cur-base)/W with no slice bounds of its own.
		for cur >= h.base && *h.bits(cur)&bitValid == 0 {
			cur = cur.Add(-int64(h.w))
		}
		if cur < h.base {
			continue
		}
		if h.IsValidObject(cur) && *h.bits(cur)&bitMarked == 0 {
			m.numMarked += h.mark(cur)
			m.numRootsMarked++
		}
	}
}

// sweep implements spec.md §4.C's linear coalescing sweep: the free
// list is rebuilt from scratch by walking every cell from base+W to
// wilderness, reclaiming unmarked runs and clearing mark bits on
// survivors.
func (h *Heap) sweep() {
	h.freeList = 0
	numChecked, numSwept, numMerged := 0, 0, 0

	cell := h.base.Add(int64(h.w))
	var runHead word.Address // 0 means no run open

	for cell < h.wilderness {
		heapAssert(h.IsHeapAddress(cell), "sweep: %#x not a heap address", cell)
		oldSize := h.sizeWord(cell)
		heapAssert(oldSize != 0, "sweep: zero size word at %#x", cell)
		heapAssert(*h.bits(cell)&bitValid != 0, "sweep: %#x missing VALID bit", cell)

		numChecked++
		if *h.bits(cell)&bitMarked == 0 {
			// Dead.
			if h.opts.poison {
				h.poisonPayload(cell, oldSize)
			}
			if runHead == 0 {
				h.setNextFree(cell, h.freeList)
				h.freeList = cell
				*h.bits(cell) &^= bitAllocated
				runHead = cell
			} else {
				*h.bits(cell) = 0
				if h.opts.poison {
					h.poisonSizeWord(cell)
				}
				numMerged++
			}
			h.opts.trace2f("swept %#x", cell)
			numSwept++
		} else {
			heapAssert(*h.bits(cell)&bitAllocated != 0, "sweep: marked cell %#x not allocated", cell)
			*h.bits(cell) &^= bitMarked
			if runHead != 0 {
				h.setSizeWord(runHead, cell.Sub(runHead)/int64(h.w)-1)
				runHead = 0
			}
		}

		cell = cell.Add((oldSize + 1) * int64(h.w))
	}

	if runHead != 0 {
		// Unlike the live-cell close above, there is no following size
		// word to exclude here: wilderness itself bounds the run, so the
		// free cell's size is the whole remaining span.
		h.setSizeWord(runHead, h.wilderness.Sub(runHead)/int64(h.w))
	}

	h.opts.tracef("%d/%d cells swept (%d merged)", numSwept, numChecked, numMerged)
}

func (h *Heap) poisonPayload(cell word.Address, sizeWords int64) {
	b := h.ReadRegion(cell, int(sizeWords*int64(h.w)))
	for i := range b {
		b[i] = 0x77
	}
}

func (h *Heap) poisonSizeWord(cell word.Address) {
	b := h.ReadRegion(cell.Add(-int64(h.w)), int(h.w))
	for i := range b {
		b[i] = 0x77
	}
}
