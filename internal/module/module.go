// Package module implements the minimal bytecode record loader
// supplemented in SPEC_FULL.md §3.1: a flat, length-prefixed sequence
// of procedure bodies that cmd/pvmrun's run/disasm/repl subcommands
// consume. It is deliberately not the excluded compiler/assembler
// toolchain (spec.md §1's "out of scope" list) — it parses no source
// or symbolic assembly, only resolves a fixed binary record format
// that already encodes raw instruction bytes, one procedure at a time.
//
// Grounded on cmd/viewcore/main.go's file-arg handling
// (core.Core(file, *base)), generalized from "open and map a core
// dump" to "open and link a bytecode record stream".
package module

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/plasma-lang/pzvm/internal/op"
	"github.com/plasma-lang/pzvm/internal/vm"
	"github.com/plasma-lang/pzvm/internal/word"
)

// wireOrder is the module file's own on-disk byte order. It is fixed
// (not host-endian) since, unlike the in-memory bytecode immediates
// internal/op decodes, a module file is meant to be portable between
// machines; only the procedure bodies' own immediates follow the
// host-endian rule of spec.md §9 once loaded into memory.
var wireOrder = binary.LittleEndian

// Module is a linked bytecode image: a flat code region (the
// concatenation of every procedure's body, each padded to start on an
// 8-byte boundary so a procedure body authored against its own
// offset-0 start aligns identically once concatenated) plus the entry
// closure the loader resolved CALL/TCALL/JMP/CJMP_k/MAKE_CLOSURE
// targets against.
type Module struct {
	Code  []byte
	Entry vm.Closure

	// ProcOffsets is the absolute flat-code offset of each procedure,
	// indexed by its position in the file; exposed for disassembly and
	// tests that want to name procedures by index.
	ProcOffsets []int64
}

const procAlign = 8

// resolvable reports whether o is one of the opcodes whose aligned
// word-sized immediate is a direct procedure index (not a runtime heap value) and
// therefore needs load-time resolution to an absolute code offset.
func resolvable(o op.Opcode) bool {
	switch o {
	case op.OpCall, op.OpTCall, op.OpJmp, op.OpMakeClosure:
		return true
	}
	_, ok := op.DecodeCjmp(o)
	return ok
}

// Load reads a module file and returns the linked image. The file
// format: uint32 procedure count; per procedure, a uint32 byte length
// followed by that many raw instruction bytes (immediates encoding
// procedure indices, not offsets, wherever resolvable reports true);
// finally a uint32 entry procedure index.
func Load(r io.Reader, wordWidth word.Width) (*Module, error) {
	var numProcs uint32
	if err := binary.Read(r, wireOrder, &numProcs); err != nil {
		return nil, fmt.Errorf("module: reading procedure count: %w", err)
	}

	bodies := make([][]byte, numProcs)
	for i := range bodies {
		var n uint32
		if err := binary.Read(r, wireOrder, &n); err != nil {
			return nil, fmt.Errorf("module: reading procedure %d length: %w", i, err)
		}
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("module: reading procedure %d body: %w", i, err)
		}
		bodies[i] = body
	}

	var entryIdx uint32
	if err := binary.Read(r, wireOrder, &entryIdx); err != nil {
		return nil, fmt.Errorf("module: reading entry index: %w", err)
	}
	if int(entryIdx) >= len(bodies) {
		return nil, fmt.Errorf("module: entry index %d out of range (%d procedures)", entryIdx, len(bodies))
	}

	code, offsets := link(bodies)
	if err := resolve(code, offsets, wordWidth); err != nil {
		return nil, err
	}

	return &Module{
		Code:        code,
		Entry:       vm.Closure{Code: offsets[entryIdx], Data: 0},
		ProcOffsets: offsets,
	}, nil
}

// link concatenates procedure bodies into one flat code region, each
// starting on a procAlign boundary, and records their start offsets.
func link(bodies [][]byte) ([]byte, []int64) {
	var code []byte
	offsets := make([]int64, len(bodies))
	for i, body := range bodies {
		for len(code)%procAlign != 0 {
			code = append(code, byte(op.OpInvalidToken))
		}
		offsets[i] = int64(len(code))
		code = append(code, body...)
	}
	return code, offsets
}

// resolve walks the flat code one instruction at a time (the same
// alignment/decode rules internal/op's Disassemble uses) and patches
// every resolvable opcode's immediate from a procedure index to that
// procedure's absolute offset.
func resolve(code []byte, offsets []int64, wordWidth word.Width) error {
	w := int64(wordWidth)
	d := &op.Decoder{Code: code}
	for d.IP < int64(len(code)) {
		o := d.ReadOpcode()
		if !resolvable(o) {
			skipOperand(d, o, w)
			continue
		}
		d.IP = op.AlignUp(d.IP, w)
		if d.IP+w > int64(len(code)) {
			return fmt.Errorf("module: truncated operand for opcode %s at %d", op.Name(o), d.IP)
		}
		idx := d.ReadWord(w)
		if int(idx) >= len(offsets) {
			return fmt.Errorf("module: opcode %s references out-of-range procedure %d", op.Name(o), idx)
		}
		patchWord(code[d.IP-w:d.IP], uint64(offsets[idx]))
	}
	return nil
}

// patchWord overwrites a decoded word-sized immediate in place. It
// must use op.Order, not wireOrder: these bytes live inside the flat
// code region and will be read back by op.Decoder at run time, which
// decodes immediates host-endian (spec.md §9) regardless of how the
// module file itself was framed on disk.
func patchWord(dst []byte, v uint64) {
	switch len(dst) {
	case 2:
		op.Order.PutUint16(dst, uint16(v))
	case 4:
		op.Order.PutUint32(dst, uint32(v))
	case 8:
		op.Order.PutUint64(dst, v)
	default:
		panic("module: bad word width")
	}
}

// skipOperand advances past o's operand without decoding its value,
// for opcodes resolve doesn't need to patch.
func skipOperand(d *op.Decoder, o op.Opcode, wordWidth int64) {
	switch o {
	case op.OpRoll, op.OpPick:
		d.ReadU8()
	case op.OpLoadImmediate8:
		d.ReadU8()
	case op.OpLoadImmediate16:
		d.ReadU16()
	case op.OpLoadImmediate32:
		d.ReadU32()
	case op.OpLoadImmediate64:
		d.ReadU64()
	case op.OpCallClosure, op.OpAlloc, op.OpCCall, op.OpCCallAlloc:
		d.ReadWord(wordWidth)
	case op.OpLoadPtr:
		d.ReadU16()
	default:
		if _, ok := op.DecodeLoad(o); ok {
			d.ReadU16()
		} else if _, ok := op.DecodeStore(o); ok {
			d.ReadU16()
		}
	}
}
