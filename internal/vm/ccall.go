package vm

import (
	"github.com/plasma-lang/pzvm/internal/heap"
	"github.com/plasma-lang/pzvm/internal/word"
)

// CFunc is a foreign CCALL target (spec.md §4.F): it may mutate the
// expression stack arbitrarily and returns the new esp. It never
// touches the return stack. SPEC_FULL.md §5 excludes any built-in
// library of these — tests register their own; cmd/pvmrun registers none.
type CFunc func(expr []word.StackValue, esp int64) int64

// CAllocFunc is a foreign CCALL_ALLOC target: like CFunc, but may also
// allocate, so it receives the heap and the stack-tracing callback to
// pass through to any Alloc call it makes.
type CAllocFunc func(expr []word.StackValue, esp int64, h *heap.Heap, traceThreadRoots heap.TraceFunc, traceData any) int64
