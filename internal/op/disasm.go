package op

import "fmt"

// Disassemble decodes code from ip 0 to len(code), one instruction per
// line, using the same alignment/immediate rules the interpreter
// applies at run time. It performs no control-flow analysis — it is a
// straight-line dump, the read-only complement to the excluded
// compiler/assembler toolchain (SPEC_FULL.md §3.1), grounded on
// cmd/viewcore/main.go's "read"/"objects" raw dump commands.
func Disassemble(code []byte, wordWidth int64) []string {
	var lines []string
	d := &Decoder{Code: code}
	for d.IP < int64(len(code)) {
		start := d.IP
		o := d.ReadOpcode()
		text := disasmOne(d, o, wordWidth)
		lines = append(lines, fmt.Sprintf("%6d: %s", start, text))
	}
	return lines
}

func disasmOne(d *Decoder, o Opcode, wordWidth int64) string {
	name := Name(o)
	switch o {
	case OpRoll, OpPick:
		return fmt.Sprintf("%s %d", name, d.ReadU8())
	case OpLoadImmediate8:
		return fmt.Sprintf("%s %#x", name, d.ReadU8())
	case OpLoadImmediate16:
		return fmt.Sprintf("%s %#x", name, d.ReadU16())
	case OpLoadImmediate32:
		return fmt.Sprintf("%s %#x", name, d.ReadU32())
	case OpLoadImmediate64:
		return fmt.Sprintf("%s %#x", name, d.ReadU64())
	case opLoad8, opLoad16, opLoad32, opLoad64, OpLoadPtr,
		opStore8, opStore16, opStore32, opStore64:
		return fmt.Sprintf("%s +%d", name, d.ReadU16())
	case OpCall, OpTCall, OpCallClosure, OpJmp,
		opCjmp8, opCjmp16, opCjmp32, opCjmp64,
		OpMakeClosure, OpCCall, OpCCallAlloc:
		return fmt.Sprintf("%s %#x", name, d.ReadWord(wordWidth))
	case OpAlloc:
		return fmt.Sprintf("%s %d", name, d.ReadWord(wordWidth))
	default:
		return name
	}
}
