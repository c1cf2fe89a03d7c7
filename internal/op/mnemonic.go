package op

import "fmt"

// Name returns the mnemonic for o, used by tracing and disassembly.
func Name(o Opcode) string {
	if a, w, ok := DecodeArith(o); ok {
		return fmt.Sprintf("%s:%d", a, w.Bits())
	}
	if name, ok := simpleNames[o]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", o)
}

var simpleNames = map[Opcode]string{
	opNot8:  "not:8",
	opNot16: "not:16",
	// Note: the original Plasma runtime's NOT opcodes for widths 32
	// and 64 both carry the trace label "not:16" — a copy-paste error
	// in the diagnostic string that spec.md §9 flags as "almost
	// certainly a copy-paste error" but not one to silently fix, since
	// behaviour (not trace text) is what's specified. Carried forward.
	opNot32: "not:16",
	opNot64: "not:16",

	opLshift8:  "lshift:8",
	opLshift16: "lshift:16",
	opLshift32: "lshift:32",
	opLshift64: "lshift:64",
	opRshift8:  "rshift:8",
	opRshift16: "rshift:16",
	opRshift32: "rshift:32",
	opRshift64: "rshift:64",

	opZe8to16:  "ze:8:16",
	opZe8to32:  "ze:8:32",
	opZe8to64:  "ze:8:64",
	opZe16to32: "ze:16:32",
	opZe16to64: "ze:16:64",
	opZe32to64: "ze:32:64",
	opSe8to16:  "se:8:16",
	opSe8to32:  "se:8:32",
	opSe8to64:  "se:8:64",
	opSe16to32: "se:16:32",
	opSe16to64: "se:16:64",
	opSe32to64: "se:32:64",

	opTrunc64to32: "trunc:64:32",
	opTrunc64to16: "trunc:64:16",
	opTrunc64to8:  "trunc:64:8",
	opTrunc32to16: "trunc:32:16",
	opTrunc32to8:  "trunc:32:8",
	opTrunc16to8:  "trunc:16:8",

	OpDup:  "dup",
	OpDrop: "drop",
	OpSwap: "swap",
	OpRoll: "roll",
	OpPick: "pick",

	OpLoadImmediate8:  "load_imm:8",
	OpLoadImmediate16: "load_imm:16",
	OpLoadImmediate32: "load_imm:32",
	OpLoadImmediate64: "load_imm:64",

	opLoad8:   "load:8",
	opLoad16:  "load:16",
	opLoad32:  "load:32",
	opLoad64:  "load:64",
	OpLoadPtr: "load:ptr",
	opStore8:  "store:8",
	opStore16: "store:16",
	opStore32: "store:32",
	opStore64: "store:64",

	OpCall:        "call",
	OpTCall:       "tcall",
	OpCallClosure: "call_closure",
	OpCallInd:     "call_ind",
	opCjmp8:       "cjmp:8",
	opCjmp16:      "cjmp:16",
	opCjmp32:      "cjmp:32",
	opCjmp64:      "cjmp:64",
	OpJmp:         "jmp",
	OpRet:         "ret",
	OpEnd:         "end",

	OpAlloc:       "alloc",
	OpMakeClosure: "make_closure",
	OpGetEnv:      "get_env",

	OpCCall:      "ccall",
	OpCCallAlloc: "ccall_alloc",

	OpInvalidToken: "invalid_token",
}
