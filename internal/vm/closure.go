package vm

import (
	"github.com/plasma-lang/pzvm/internal/heap"
	"github.com/plasma-lang/pzvm/internal/word"
)

// Closure is a {code, data} pair (spec.md §4.G): code is an
// instruction offset into a VM's Code, data is the opaque environment
// pointer GET_ENV pushes and LOAD/STORE dereference through. The entry
// closure handed to Run need not itself live on the heap; closures
// built by MAKE_CLOSURE do, as two-word cells read back with
// ReadClosure.
type Closure struct {
	Code int64
	Data word.Address
}

// AllocClosure allocates the two-word cell alloc_closure describes:
// no metadata beyond the two fields (spec.md §4.G).
func AllocClosure(h *heap.Heap, traceThreadRoots heap.TraceFunc, traceData any) word.Address {
	return h.Alloc(2, traceThreadRoots, traceData)
}

// InitClosure writes code and data into a cell obtained from
// AllocClosure.
func InitClosure(h *heap.Heap, c word.Address, code int64, data word.Address) {
	h.WriteWord(c, code)
	h.WriteWord(c.Add(int64(h.WordWidth())), int64(data))
}

// ReadClosure reads back a closure built with AllocClosure+InitClosure
// (or any equivalently laid out cell) — the CALL_CLOSURE/CALL_IND
// operand shape.
func ReadClosure(h *heap.Heap, c word.Address) Closure {
	return Closure{
		Code: h.ReadWord(c),
		Data: word.Address(h.ReadWord(c.Add(int64(h.WordWidth())))),
	}
}
