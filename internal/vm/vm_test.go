package vm

import (
	"testing"

	"github.com/plasma-lang/pzvm/internal/heap"
	"github.com/plasma-lang/pzvm/internal/op"
	"github.com/plasma-lang/pzvm/internal/word"
)

// asm is a hand-rolled, test-only byte emitter: there is no
// compiler/assembler toolchain to generate fixtures with, so tests
// build bytecode the same way a human would hand-assemble a small
// program, one opcode and aligned immediate at a time.
type asm struct {
	buf []byte
}

func (a *asm) op(o op.Opcode) *asm {
	a.buf = append(a.buf, byte(o))
	return a
}

func (a *asm) u8(v byte) *asm {
	a.buf = append(a.buf, v)
	return a
}

func (a *asm) align(k int64) {
	for int64(len(a.buf))%k != 0 {
		a.buf = append(a.buf, 0)
	}
}

func (a *asm) u32(v uint32) *asm {
	a.align(4)
	b := make([]byte, 4)
	op.Order.PutUint32(b, v)
	a.buf = append(a.buf, b...)
	return a
}

// u16 emits an aligned 2-byte immediate, the operand width LOAD_k and
// STORE_k use for their cell-relative byte offset.
func (a *asm) u16(v uint16) *asm {
	a.align(2)
	b := make([]byte, 2)
	op.Order.PutUint16(b, v)
	a.buf = append(a.buf, b...)
	return a
}

// word emits an aligned word-width immediate and returns its byte
// offset, for later patching once a forward label's address is known.
func (a *asm) word(w int64, v uint64) int {
	a.align(w)
	pos := len(a.buf)
	b := make([]byte, w)
	if w == 4 {
		op.Order.PutUint32(b, uint32(v))
	} else {
		op.Order.PutUint64(b, v)
	}
	a.buf = append(a.buf, b...)
	return pos
}

func (a *asm) patchWord(pos int, w int64, v uint64) {
	if w == 4 {
		op.Order.PutUint32(a.buf[pos:pos+4], uint32(v))
	} else {
		op.Order.PutUint64(a.buf[pos:pos+8], v)
	}
}

func (a *asm) here() int64 { return int64(len(a.buf)) }

func newTestHeap(t *testing.T, opts ...heap.Option) *heap.Heap {
	t.Helper()
	h := heap.New(word.Width64, func(*heap.Marker, any) {}, nil, opts...)
	if _, err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { h.Finalise() })
	return h
}

func TestTrivialReturn(t *testing.T) {
	h := newTestHeap(t)
	var a asm
	a.op(op.OpLoadImmediate32).u32(42)
	a.op(op.OpEnd)

	m := New(h, a.buf)
	stacks := NewStacks(16, 16)
	got := m.Run(stacks, Closure{Code: 0, Data: 0})
	if got != 42 {
		t.Fatalf("Run returned %d, want 42", got)
	}
}

func TestArithmeticAdd(t *testing.T) {
	h := newTestHeap(t)
	var a asm
	a.op(op.OpLoadImmediate32).u32(3)
	a.op(op.OpLoadImmediate32).u32(4)
	a.op(op.OpArith(op.ArithAdd, op.Width32))
	a.op(op.OpEnd)

	m := New(h, a.buf)
	stacks := NewStacks(16, 16)
	got := m.Run(stacks, Closure{Code: 0, Data: 0})
	if got != 7 {
		t.Fatalf("Run returned %d, want 7", got)
	}
}

func TestCallReturn(t *testing.T) {
	h := newTestHeap(t)
	var a asm
	a.op(op.OpCall)
	callTarget := a.word(8, 0) // patched below
	a.op(op.OpEnd)

	procB := a.here()
	a.op(op.OpLoadImmediate32).u32(5)
	a.op(op.OpRet)

	a.patchWord(callTarget, 8, uint64(procB))

	m := New(h, a.buf)
	stacks := NewStacks(16, 16)
	got := m.Run(stacks, Closure{Code: 0, Data: 0})
	if got != 5 {
		t.Fatalf("Run returned %d, want 5", got)
	}
}

func TestClosureRoundTrip(t *testing.T) {
	h := newTestHeap(t)
	var a asm

	a.op(op.OpAlloc)
	a.word(8, 8) // allocate one 8-byte cell
	a.op(op.OpLoadImmediate32).u32(11)
	a.op(op.OpPick).u8(2)
	a.op(op.OpStore(op.Width32)).u16(0)
	a.op(op.OpDrop)
	a.op(op.OpMakeClosure)
	closureTarget := a.word(8, 0)
	a.op(op.OpCallInd)
	a.op(op.OpEnd)

	procC := a.here()
	a.op(op.OpGetEnv)
	a.op(op.OpLoad(op.Width32)).u16(0)
	a.op(op.OpDrop)
	a.op(op.OpRet)

	a.patchWord(closureTarget, 8, uint64(procC))

	m := New(h, a.buf)
	stacks := NewStacks(16, 16)
	got := m.Run(stacks, Closure{Code: 0, Data: 0})
	if got != 11 {
		t.Fatalf("Run returned %d, want 11", got)
	}
}

func TestCCallDoublesTopOfStack(t *testing.T) {
	h := newTestHeap(t)
	var a asm
	a.op(op.OpLoadImmediate32).u32(21)
	a.op(op.OpCCall)
	a.word(8, 1) // ccall target id 1
	a.op(op.OpEnd)

	m := New(h, a.buf)
	m.RegisterCCall(1, func(expr []word.StackValue, esp int64) int64 {
		expr[esp].SetU32(expr[esp].U32() * 2)
		return esp
	})

	stacks := NewStacks(16, 16)
	got := m.Run(stacks, Closure{Code: 0, Data: 0})
	if got != 42 {
		t.Fatalf("Run returned %d, want 42", got)
	}
}

func TestCCallAllocWritesThroughHeap(t *testing.T) {
	h := newTestHeap(t)
	var a asm
	a.op(op.OpLoadImmediate32).u32(99)
	a.op(op.OpCCallAlloc)
	a.word(8, 2) // ccall_alloc target id 2
	a.op(op.OpLoad(op.Width32)).u16(0)
	a.op(op.OpDrop)
	a.op(op.OpEnd)

	m := New(h, a.buf)
	m.RegisterCCallAlloc(2, func(expr []word.StackValue, esp int64, h *heap.Heap, traceThreadRoots heap.TraceFunc, traceData any) int64 {
		v := expr[esp].U32()
		addr := h.AllocBytes(4, traceThreadRoots, traceData)
		writeWidth(h, addr, 4, uint64(v))
		expr[esp].SetPtr(addr)
		return esp
	})

	stacks := NewStacks(16, 16)
	got := m.Run(stacks, Closure{Code: 0, Data: 0})
	if got != 99 {
		t.Fatalf("Run returned %d, want 99", got)
	}
}

func TestGCPreservesReachableAcrossAlloc(t *testing.T) {
	h := newTestHeap(t, heap.WithZealousGC())
	var a asm

	a.op(op.OpAlloc)
	a.word(8, 8) // P: first cell, rooted on the expr stack throughout
	a.op(op.OpLoadImmediate32).u32(0xDEADBEEF)
	a.op(op.OpPick).u8(2)
	a.op(op.OpStore(op.Width32)).u16(0)
	a.op(op.OpDrop) // esp=1, top = P

	a.op(op.OpAlloc)
	a.word(8, 8) // forces a zealous collection while P is still live
	a.op(op.OpDrop) // discard the throwaway cell, top = P again

	a.op(op.OpLoad(op.Width32)).u16(0) // read P's payload back
	a.op(op.OpDrop)                             // drop the duplicated pointer
	a.op(op.OpEnd)

	m := New(h, a.buf)
	stacks := NewStacks(16, 16)
	got := m.Run(stacks, Closure{Code: 0, Data: 0})
	if uint32(got) != 0xDEADBEEF {
		t.Fatalf("Run returned %#x, want 0xdeadbeef", uint32(got))
	}
}
