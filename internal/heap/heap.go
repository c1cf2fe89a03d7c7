// Package heap implements the conservative mark-sweep heap of spec.md
// §3-§4: a per-word metadata bitmap, a best-fit-then-bump allocator,
// and a collector driven by caller-supplied root-tracing callbacks.
//
// Grounded on internal/gocore/object.go's span/bitmap/root-walking
// design (generalized from "scan a foreign Go process's heap" down to
// spec.md's flat per-word byte bitmap over a single owned region) and
// cross-checked against original_source/runtime/pz_gc.cpp.
package heap

import (
	"fmt"
	"os"

	"github.com/plasma-lang/pzvm/internal/word"
)

// nominalBase is the heap's base address as exposed to callers. Heap
// "pointers" are word.Address values, not real Go pointers: the region
// backing them is a plain byte slice (internal/heap/region*.go), and
// every address is nominalBase plus a byte offset into that slice. A
// nonzero base keeps the zero value distinguishable from a valid
// pointer, mirroring a real OS mmap base that is never the zero page.
const nominalBase word.Address = 0x10000

// Heap is a single, non-moving, conservatively-scanned mark-sweep
// heap. Its bitmap, free list, wilderness pointer, and backing region
// are owned exclusively by this instance for its lifetime (spec.md §5,
// "Shared resources") — no locking is needed because the interpreter
// is single-threaded and cooperative.
type Heap struct {
	opts Options
	w    word.Width

	region *region
	bitmap []byte // indexed by word offset from base

	base       word.Address
	wilderness word.Address
	heapSize   int64 // logical, adjustable cap; <= len(region.bytes)

	freeList word.Address // 0 is the terminator

	traceGlobalRoots TraceFunc
	traceGlobalData  any

	finalised bool
}

// TraceFunc is a root tracer: trace_global_roots/trace_thread_roots of
// spec.md §4.D. It is handed a *Marker and calls back into the marking
// entry points on its own storage; the heap never inspects the tracer's
// state directly.
type TraceFunc func(m *Marker, data any)

// New constructs a heap with the given word width and options. It does
// not map any memory; call Init before use (spec.md §5, "Lifecycle").
func New(w word.Width, traceGlobalRoots TraceFunc, traceGlobalData any, opts ...Option) *Heap {
	o := newOptions(opts)
	h := &Heap{
		opts:             o,
		w:                w,
		heapSize:         int64(o.heapSize),
		traceGlobalRoots: traceGlobalRoots,
		traceGlobalData:  traceGlobalData,
	}
	// The bitmap covers the maximum heap size regardless of the
	// current cap — original_source/runtime/pz_gc.cpp acknowledges
	// this as a TODO rather than a bug; we carry it forward as-is
	// (spec.md §9).
	h.bitmap = make([]byte, o.maxHeapSize/int(w))
	return h
}

// Init maps the backing OS region and readies the heap for allocation.
func (h *Heap) Init() (bool, error) {
	r, err := mapRegion(h.opts.maxHeapSize)
	if err != nil {
		return false, err
	}
	h.region = r
	h.base = nominalBase
	h.wilderness = h.base
	return true, nil
}

// Finalise unmaps the backing region. Calling any operation other than
// Finalise on a finalised heap is a contract violation.
func (h *Heap) Finalise() (bool, error) {
	if h.finalised {
		return true, nil
	}
	if h.region == nil {
		h.finalised = true
		return true, nil
	}
	err := h.region.unmap()
	h.region = nil
	h.base = 0
	h.wilderness = 0
	h.finalised = true
	return err == nil, err
}

// SetHeapSize adjusts the logical cap. It rejects sizes below one OS
// page, sizes above the maximum heap size, or sizes that would
// invalidate the current wilderness.
func (h *Heap) SetHeapSize(newSize int64) bool {
	if newSize < int64(pageSize()) {
		return false
	}
	if newSize > int64(h.opts.maxHeapSize) {
		return false
	}
	if h.base.Add(newSize) < h.wilderness {
		return false
	}
	h.opts.tracef("new heap size: %d", newSize)
	h.heapSize = newSize
	return true
}

// WordWidth returns the machine word width this heap was constructed
// with.
func (h *Heap) WordWidth() word.Width { return h.w }

// wordIndex returns the bitmap index for address p: (p-base)/W.
func (h *Heap) wordIndex(p word.Address) int {
	return int(p.Sub(h.base) / int64(h.w))
}

// bits returns a mutable reference to p's metadata byte.
func (h *Heap) bits(p word.Address) *byte {
	return &h.bitmap[h.wordIndex(p)]
}

// offset translates a heap address into a byte offset in the backing
// region, for the region-read/write helpers below.
func (h *Heap) offset(p word.Address) int64 {
	return p.Sub(h.base)
}

// ReadWord reads a machine-word-sized value at p, e.g. a closure's
// code/data field or a free-list link — exposed for collaborators
// (internal/vm) that need word-granular, not just byte-granular,
// access to a cell's payload.
func (h *Heap) ReadWord(p word.Address) int64 { return h.readWord(p) }

// WriteWord writes a machine-word-sized value at p.
func (h *Heap) WriteWord(p word.Address, v int64) { h.writeWord(p, v) }

func (h *Heap) readWord(p word.Address) int64 {
	off := h.offset(p)
	return int64(readUint(h.region.bytes[off:off+int64(h.w)], h.w))
}

func (h *Heap) writeWord(p word.Address, v int64) {
	off := h.offset(p)
	writeUint(h.region.bytes[off:off+int64(h.w)], h.w, uint64(v))
}

func readUint(b []byte, w word.Width) uint64 {
	switch w {
	case word.Width32:
		return uint64(word.Order.Uint32(b[:4]))
	case word.Width64:
		return word.Order.Uint64(b[:8])
	default:
		panic("heap: bad word width")
	}
}

func writeUint(b []byte, w word.Width, v uint64) {
	switch w {
	case word.Width32:
		word.Order.PutUint32(b[:4], uint32(v))
	case word.Width64:
		word.Order.PutUint64(b[:8], v)
	default:
		panic("heap: bad word width")
	}
}

// sizeWord returns the size word stored immediately before p's payload.
func (h *Heap) sizeWord(p word.Address) int64 {
	return h.readWord(p.Add(-int64(h.w)))
}

func (h *Heap) setSizeWord(p word.Address, size int64) {
	h.writeWord(p.Add(-int64(h.w)), size)
}

// IsHeapAddress reports whether p lies in [base, wilderness).
func (h *Heap) IsHeapAddress(p word.Address) bool {
	return p >= h.base && p < h.wilderness
}

// IsValidObject reports whether p is the start of a live, allocated
// cell (spec.md §4.A).
func (h *Heap) IsValidObject(p word.Address) bool {
	if !h.IsHeapAddress(p) {
		return false
	}
	valid := *h.bits(p)&(bitValid|bitAllocated) == bitValid|bitAllocated
	if valid {
		heapAssert(h.sizeWord(p) > 0, "is_valid_object: zero size word at %#x", p)
	}
	return valid
}

// Base returns the heap's base address.
func (h *Heap) Base() word.Address { return h.base }

// Wilderness returns the current wilderness boundary.
func (h *Heap) Wilderness() word.Address { return h.wilderness }

// ReadRegion reads n bytes starting at p. p need not be word-aligned;
// used by LOAD_k/STORE_k opcodes for raw memory access within a cell.
func (h *Heap) ReadRegion(p word.Address, n int) []byte {
	off := h.offset(p)
	return h.region.bytes[off : off+int64(n)]
}

// WriteRegion writes data starting at p.
func (h *Heap) WriteRegion(p word.Address, data []byte) {
	off := h.offset(p)
	copy(h.region.bytes[off:off+int64(len(data))], data)
}

func heapAssert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("heap: assertion failed: "+format, args...))
	}
}

// Abort reports a fatal, process-terminating condition (spec.md §7):
// out of memory after a collection. It is a package variable, in the
// style of testing hooks elsewhere in the pack (e.g. the indirection
// ogle/program/server/server.go uses around its channel-based call
// dispatch), so tests can substitute a panic-and-recover instead of
// actually exiting the test binary.
var Abort = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

func abortf(format string, args ...any) {
	Abort(format, args...)
}
