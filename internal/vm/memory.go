package vm

import (
	"github.com/plasma-lang/pzvm/internal/heap"
	"github.com/plasma-lang/pzvm/internal/word"
)

// readWidth reads a widthBytes-wide value out of the heap at addr, for
// LOAD_k/LOAD_PTR (spec.md §4.F). Unlike heap.Heap.ReadWord, the width
// here is the opcode's data width, not the heap's own machine word
// width — LOAD_8 can read a single byte out of a heap built with
// 64-bit words.
func readWidth(h *heap.Heap, addr word.Address, widthBytes int) uint64 {
	b := h.ReadRegion(addr, widthBytes)
	switch widthBytes {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(word.Order.Uint16(b))
	case 4:
		return uint64(word.Order.Uint32(b))
	case 8:
		return word.Order.Uint64(b)
	default:
		panic("vm: bad load width")
	}
}

// writeWidth writes v, truncated to widthBytes, into the heap at addr.
func writeWidth(h *heap.Heap, addr word.Address, widthBytes int, v uint64) {
	var buf [8]byte
	switch widthBytes {
	case 1:
		buf[0] = byte(v)
	case 2:
		word.Order.PutUint16(buf[:2], uint16(v))
	case 4:
		word.Order.PutUint32(buf[:4], uint32(v))
	case 8:
		word.Order.PutUint64(buf[:8], v)
	default:
		panic("vm: bad store width")
	}
	h.WriteRegion(addr, buf[:widthBytes])
}
