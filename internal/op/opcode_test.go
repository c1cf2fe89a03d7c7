package op

import "testing"

func TestArithRoundTrip(t *testing.T) {
	ops := []ArithOp{ArithAdd, ArithSub, ArithMul, ArithDiv, ArithMod,
		ArithAnd, ArithOr, ArithXor, ArithLtU, ArithLtS, ArithGtU, ArithGtS, ArithEq}
	widths := []Width{Width8, Width16, Width32, Width64}

	seen := map[Opcode]bool{}
	for _, a := range ops {
		for _, w := range widths {
			o := OpArith(a, w)
			if seen[o] {
				t.Fatalf("opcode %d reused by (%v, %v)", o, a, w)
			}
			seen[o] = true

			gotA, gotW, ok := DecodeArith(o)
			if !ok {
				t.Fatalf("DecodeArith(%d) ok=false for (%v,%v)", o, a, w)
			}
			if gotA != a || gotW != w {
				t.Errorf("DecodeArith(OpArith(%v,%v)) = (%v,%v)", a, w, gotA, gotW)
			}
		}
	}
}

func TestNotShiftRoundTrip(t *testing.T) {
	widths := []Width{Width8, Width16, Width32, Width64}
	for _, w := range widths {
		if got, ok := DecodeNot(OpNot(w)); !ok || got != w {
			t.Errorf("DecodeNot(OpNot(%v)) = (%v, %v)", w, got, ok)
		}
		if got, ok := DecodeLshift(OpLshift(w)); !ok || got != w {
			t.Errorf("DecodeLshift(OpLshift(%v)) = (%v, %v)", w, got, ok)
		}
		if got, ok := DecodeRshift(OpRshift(w)); !ok || got != w {
			t.Errorf("DecodeRshift(OpRshift(%v)) = (%v, %v)", w, got, ok)
		}
	}
}

func TestConversionRoundTrip(t *testing.T) {
	zePairs := [][2]Width{{Width8, Width16}, {Width8, Width32}, {Width8, Width64},
		{Width16, Width32}, {Width16, Width64}, {Width32, Width64}}
	for _, p := range zePairs {
		if from, to, ok := DecodeZe(OpZe(p[0], p[1])); !ok || from != p[0] || to != p[1] {
			t.Errorf("DecodeZe(OpZe(%v,%v)) = (%v,%v,%v)", p[0], p[1], from, to, ok)
		}
		if from, to, ok := DecodeSe(OpSe(p[0], p[1])); !ok || from != p[0] || to != p[1] {
			t.Errorf("DecodeSe(OpSe(%v,%v)) = (%v,%v,%v)", p[0], p[1], from, to, ok)
		}
	}

	truncPairs := [][2]Width{{Width64, Width32}, {Width64, Width16}, {Width64, Width8},
		{Width32, Width16}, {Width32, Width8}, {Width16, Width8}}
	for _, p := range truncPairs {
		if from, to, ok := DecodeTrunc(OpTrunc(p[0], p[1])); !ok || from != p[0] || to != p[1] {
			t.Errorf("DecodeTrunc(OpTrunc(%v,%v)) = (%v,%v,%v)", p[0], p[1], from, to, ok)
		}
	}
}

func TestLoadStoreCjmpRoundTrip(t *testing.T) {
	widths := []Width{Width8, Width16, Width32, Width64}
	for _, w := range widths {
		if got, ok := DecodeLoad(OpLoad(w)); !ok || got != w {
			t.Errorf("DecodeLoad(OpLoad(%v)) = (%v,%v)", w, got, ok)
		}
		if got, ok := DecodeStore(OpStore(w)); !ok || got != w {
			t.Errorf("DecodeStore(OpStore(%v)) = (%v,%v)", w, got, ok)
		}
		if got, ok := DecodeCjmp(OpCjmp(w)); !ok || got != w {
			t.Errorf("DecodeCjmp(OpCjmp(%v)) = (%v,%v)", w, got, ok)
		}
	}
}

func TestDecodeRejectsUnrelatedOpcodes(t *testing.T) {
	if _, ok := DecodeNot(OpDup); ok {
		t.Errorf("DecodeNot(OpDup) should fail")
	}
	if _, _, ok := DecodeArith(OpRoll); ok {
		t.Errorf("DecodeArith(OpRoll) should fail")
	}
	if _, ok := DecodeCjmp(OpJmp); ok {
		t.Errorf("DecodeCjmp(OpJmp) should fail")
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ ip, k, want int64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{3, 4, 4},
		{4, 4, 4},
		{1, 2, 2},
	}
	for _, c := range cases {
		if got := AlignUp(c.ip, c.k); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.ip, c.k, got, c.want)
		}
	}
}

func TestDecoderAlignsBeforeImmediate(t *testing.T) {
	// One unaligned opcode byte, one pad byte, then a u16 immediate.
	code := []byte{0xAA, 0x00, 0x34, 0x12}
	d := &Decoder{Code: code}
	d.ReadOpcode()
	if d.IP != 1 {
		t.Fatalf("after ReadOpcode, IP = %d, want 1", d.IP)
	}
	v := d.ReadU16()
	if v != 0x1234 {
		t.Fatalf("ReadU16 = %#x, want 0x1234", v)
	}
	if d.IP != 4 {
		t.Fatalf("after ReadU16, IP = %d, want 4", d.IP)
	}
}

func TestDisassembleSmoke(t *testing.T) {
	// DUP ; LOAD_IMMEDIATE_8 5 ; DROP
	code := []byte{byte(OpDup), byte(OpLoadImmediate8), 5, byte(OpDrop)}
	lines := Disassemble(code, 8)
	if len(lines) != 3 {
		t.Fatalf("Disassemble returned %d lines, want 3: %v", len(lines), lines)
	}
}
