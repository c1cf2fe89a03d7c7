package vm

import (
	"fmt"
	"os"

	"github.com/plasma-lang/pzvm/internal/heap"
	"github.com/plasma-lang/pzvm/internal/op"
	"github.com/plasma-lang/pzvm/internal/word"
)

// Abort reports a fatal, process-terminating condition (spec.md §7):
// an unrecognized or poisoned opcode, ROLL 0, or END with esp != 1. A
// package variable in the same style as heap.Abort, so tests can
// substitute a panic-and-recover instead of exiting the test binary.
var Abort = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}

func abortf(format string, args ...any) {
	Abort(format, args...)
}

// VM is one loaded bytecode image bound to a heap. It is not
// reentrant: Run drives the single cooperative mutator thread spec.md
// §5 describes.
type VM struct {
	Heap *heap.Heap
	Code []byte

	wordWidth int64 // bytes; h.WordWidth() widened for arithmetic on ip

	ccall      map[uint64]CFunc
	ccallAlloc map[uint64]CAllocFunc
}

// New binds code to h. code is produced by internal/module's loader
// (or directly by a test); the VM never parses or validates it beyond
// decoding one opcode at a time.
func New(h *heap.Heap, code []byte) *VM {
	return &VM{
		Heap:       h,
		Code:       code,
		wordWidth:  int64(h.WordWidth()),
		ccall:      make(map[uint64]CFunc),
		ccallAlloc: make(map[uint64]CAllocFunc),
	}
}

// RegisterCCall binds a foreign function to a CCALL target id, the
// value bytecode encodes as CCALL's aligned immediate.
func (m *VM) RegisterCCall(id uint64, fn CFunc) { m.ccall[id] = fn }

// RegisterCCallAlloc binds a foreign function to a CCALL_ALLOC target id.
func (m *VM) RegisterCCallAlloc(id uint64, fn CAllocFunc) { m.ccallAlloc[id] = fn }

// traceStacks is the stack-tracing callback handed to every Alloc call
// made during Run (spec.md §4.F, "The stack-tracing callback"): the
// expression stack's live slots are scanned conservatively with no
// interior-pointer discovery, the return stack's with it, since return
// addresses may point into the middle of a bytecode cell.
//
// original_source/runtime/pz_generic_run.cpp's trace_stacks scans
// starting at array index 0 for esp/rsp slots — off by one against
// this runtime's pre-increment push convention (the live slots are
// 1..esp, not 0..esp-1), which would both scan an always-unused
// sentinel and silently drop the top live slot from every collection.
// That would violate spec.md §8's "GC preserves reachable" invariant,
// so the live range scanned here is corrected to 1..esp inclusive.
func traceStacks(mk *heap.Marker, data any) {
	s := data.(*Stacks)

	exprWords := make([]word.Address, s.ESP)
	for i := int64(1); i <= s.ESP; i++ {
		exprWords[i-1] = s.Expr[i].Ptr()
	}
	mk.MarkRootConservative(exprWords)

	retWords := make([]word.Address, s.RSP)
	for i := int64(1); i <= s.RSP; i++ {
		retWords[i-1] = s.Return[i]
	}
	mk.MarkRootConservativeInterior(retWords)
}

// Run executes entry to completion and returns the exit code END
// leaves on the expression stack (spec.md §6, "Interpreter entry").
func (m *VM) Run(stacks *Stacks, entry Closure) int32 {
	stacks.ESP = 0
	stacks.RSP = 0
	env := entry.Data
	d := &op.Decoder{Code: m.Code, IP: entry.Code}
	h := m.Heap
	w := m.wordWidth

	for {
		o := d.ReadOpcode()

		if a, aw, ok := op.DecodeArith(o); ok {
			m.runArith(stacks, a, aw)
			continue
		}
		if nw, ok := op.DecodeNot(o); ok {
			m.runNot(stacks, nw)
			continue
		}
		if sw, ok := op.DecodeLshift(o); ok {
			m.runShift(stacks, true, sw)
			continue
		}
		if sw, ok := op.DecodeRshift(o); ok {
			m.runShift(stacks, false, sw)
			continue
		}
		if from, to, ok := op.DecodeZe(o); ok {
			m.runZe(stacks, from, to)
			continue
		}
		if from, to, ok := op.DecodeSe(o); ok {
			m.runSe(stacks, from, to)
			continue
		}
		if from, to, ok := op.DecodeTrunc(o); ok {
			m.runTrunc(stacks, from, to)
			continue
		}

		switch o {
		case op.OpDup:
			stacks.ESP++
			stacks.Expr[stacks.ESP] = stacks.Expr[stacks.ESP-1]

		case op.OpDrop:
			stacks.ESP--

		case op.OpSwap:
			stacks.Expr[stacks.ESP], stacks.Expr[stacks.ESP-1] =
				stacks.Expr[stacks.ESP-1], stacks.Expr[stacks.ESP]

		case op.OpRoll:
			depth := int64(d.ReadU8())
			switch depth {
			case 0:
				abortf("illegal roll depth 0")
			case 1:
				// No-op: the element already on top stays there.
			default:
				depth--
				temp := stacks.Expr[stacks.ESP-depth]
				for i := depth; i > 0; i-- {
					stacks.Expr[stacks.ESP-i] = stacks.Expr[stacks.ESP-(i-1)]
				}
				stacks.Expr[stacks.ESP] = temp
			}

		case op.OpPick:
			depth := int64(d.ReadU8())
			stacks.ESP++
			stacks.Expr[stacks.ESP] = stacks.Expr[stacks.ESP-depth]

		case op.OpLoadImmediate8:
			v := d.ReadU8()
			stacks.ESP++
			stacks.Expr[stacks.ESP].SetU8(v)

		case op.OpLoadImmediate16:
			v := d.ReadU16()
			stacks.ESP++
			stacks.Expr[stacks.ESP].SetU16(v)

		case op.OpLoadImmediate32:
			v := d.ReadU32()
			stacks.ESP++
			stacks.Expr[stacks.ESP].SetU32(v)

		case op.OpLoadImmediate64:
			v := d.ReadU64()
			stacks.ESP++
			stacks.Expr[stacks.ESP].SetU64(v)

		case op.OpCall:
			d.IP = op.AlignUp(d.IP, w)
			pushReturn(stacks, env)
			pushReturn(stacks, word.Address(d.IP+w))
			target := int64(d.ReadWord(w))
			d.IP = target

		case op.OpTCall:
			d.IP = op.AlignUp(d.IP, w)
			target := int64(d.ReadWord(w))
			d.IP = target

		case op.OpCallClosure:
			d.IP = op.AlignUp(d.IP, w)
			pushReturn(stacks, env)
			pushReturn(stacks, word.Address(d.IP+w))
			closurePtr := word.Address(d.ReadWord(w))
			cl := ReadClosure(h, closurePtr)
			d.IP = cl.Code
			env = cl.Data

		case op.OpCallInd:
			pushReturn(stacks, env)
			pushReturn(stacks, word.Address(d.IP))
			closurePtr := stacks.Expr[stacks.ESP].Ptr()
			stacks.ESP--
			cl := ReadClosure(h, closurePtr)
			d.IP = cl.Code
			env = cl.Data

		case op.OpJmp:
			d.IP = op.AlignUp(d.IP, w)
			target := int64(d.ReadWord(w))
			d.IP = target

		case op.OpRet:
			ip := popReturn(stacks)
			env = popReturn(stacks)
			d.IP = int64(ip)

		case op.OpEnd:
			if stacks.ESP != 1 {
				abortf("stack misaligned, esp: %d should be 1", stacks.ESP)
			}
			return stacks.Expr[stacks.ESP].S32()

		case op.OpAlloc:
			d.IP = op.AlignUp(d.IP, w)
			size := int64(d.ReadWord(w))
			addr := h.AllocBytes(size, traceStacks, stacks)
			stacks.ESP++
			stacks.Expr[stacks.ESP].SetPtr(addr)

		case op.OpMakeClosure:
			d.IP = op.AlignUp(d.IP, w)
			code := int64(d.ReadWord(w))
			data := stacks.Expr[stacks.ESP].Ptr()
			c := AllocClosure(h, traceStacks, stacks)
			InitClosure(h, c, code, data)
			stacks.Expr[stacks.ESP].SetPtr(c)

		case op.OpGetEnv:
			stacks.ESP++
			stacks.Expr[stacks.ESP].SetPtr(env)

		case op.OpCCall:
			d.IP = op.AlignUp(d.IP, w)
			id := d.ReadWord(w)
			fn, ok := m.ccall[id]
			if !ok {
				abortf("unregistered ccall target %#x", id)
			}
			stacks.ESP = fn(stacks.Expr, stacks.ESP)

		case op.OpCCallAlloc:
			d.IP = op.AlignUp(d.IP, w)
			id := d.ReadWord(w)
			fn, ok := m.ccallAlloc[id]
			if !ok {
				abortf("unregistered ccall_alloc target %#x", id)
			}
			stacks.ESP = fn(stacks.Expr, stacks.ESP, h, traceStacks, stacks)

		case op.OpLoadPtr:
			old := stacks.ESP
			offset := d.ReadU16()
			ptr := stacks.Expr[old].Ptr()
			addr := ptr.Add(int64(offset))
			loaded := word.Address(h.ReadWord(addr))
			stacks.Expr[old+1].SetPtr(ptr)
			stacks.Expr[old].SetPtr(loaded)
			stacks.ESP = old + 1

		case op.OpInvalidToken:
			abortf("attempt to execute poisoned memory")

		default:
			if lw, ok := op.DecodeLoad(o); ok {
				old := stacks.ESP
				offset := d.ReadU16()
				ptr := stacks.Expr[old].Ptr()
				addr := ptr.Add(int64(offset))
				v := readWidth(h, addr, int(lw))
				stacks.Expr[old+1].SetPtr(ptr)
				stacks.Expr[old].SetUint(int(lw), v)
				stacks.ESP = old + 1
				continue
			}
			if sw, ok := op.DecodeStore(o); ok {
				old := stacks.ESP
				offset := d.ReadU16()
				ptr := stacks.Expr[old].Ptr()
				addr := ptr.Add(int64(offset))
				val := stacks.Expr[old-1].Uint(int(sw))
				writeWidth(h, addr, int(sw), val)
				stacks.Expr[old-1].SetPtr(ptr)
				stacks.ESP = old - 1
				continue
			}
			if cw, ok := op.DecodeCjmp(o); ok {
				d.IP = op.AlignUp(d.IP, w)
				val := stacks.Expr[stacks.ESP].Uint(int(cw))
				stacks.ESP--
				if val != 0 {
					target := int64(d.ReadWord(w))
					d.IP = target
				} else {
					d.IP += w
				}
				continue
			}
			abortf("unknown opcode %d", o)
		}
	}
}

func pushReturn(stacks *Stacks, v word.Address) {
	stacks.RSP++
	stacks.Return[stacks.RSP] = v
}

func popReturn(stacks *Stacks) word.Address {
	v := stacks.Return[stacks.RSP]
	stacks.RSP--
	return v
}
