package module

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/plasma-lang/pzvm/internal/heap"
	"github.com/plasma-lang/pzvm/internal/op"
	"github.com/plasma-lang/pzvm/internal/vm"
	"github.com/plasma-lang/pzvm/internal/word"
)

// buildProc emits: opcode bytes interspersed with a word-sized
// procedure-index placeholder wherever resolve() is expected to patch
// one, encoded with op.Order (the same order the loaded code is read
// back with at run time).
func buildProc(t *testing.T, emit func(w func(op.Opcode), idx func(procIndex uint64), u32 func(uint32))) []byte {
	t.Helper()
	var buf []byte
	align := func(k int) {
		for len(buf)%k != 0 {
			buf = append(buf, 0)
		}
	}
	w := func(o op.Opcode) { buf = append(buf, byte(o)) }
	idx := func(procIndex uint64) {
		align(8)
		b := make([]byte, 8)
		op.Order.PutUint64(b, procIndex)
		buf = append(buf, b...)
	}
	u32 := func(v uint32) {
		align(4)
		b := make([]byte, 4)
		op.Order.PutUint32(b, v)
		buf = append(buf, b...)
	}
	emit(w, idx, u32)
	return buf
}

func buildModuleFile(t *testing.T, procs [][]byte, entryIdx uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, wireOrder, uint32(len(procs))); err != nil {
		t.Fatalf("write count: %v", err)
	}
	for _, p := range procs {
		if err := binary.Write(&buf, wireOrder, uint32(len(p))); err != nil {
			t.Fatalf("write len: %v", err)
		}
		buf.Write(p)
	}
	if err := binary.Write(&buf, wireOrder, entryIdx); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	return buf.Bytes()
}

func TestLoadLinksCallToAbsoluteOffset(t *testing.T) {
	entry := buildProc(t, func(w func(op.Opcode), idx func(uint64), u32 func(uint32)) {
		w(op.OpCall)
		idx(1) // call procedure 1
		w(op.OpEnd)
	})
	proc1 := buildProc(t, func(w func(op.Opcode), idx func(uint64), u32 func(uint32)) {
		w(op.OpLoadImmediate32)
		u32(9)
		w(op.OpRet)
	})

	file := buildModuleFile(t, [][]byte{entry, proc1}, 0)

	m, err := Load(bytes.NewReader(file), word.Width64)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.ProcOffsets) != 2 {
		t.Fatalf("ProcOffsets = %v, want 2 entries", m.ProcOffsets)
	}
	if m.Entry.Code != m.ProcOffsets[0] {
		t.Fatalf("entry code = %d, want proc 0's offset %d", m.Entry.Code, m.ProcOffsets[0])
	}

	// The CALL immediate, at byte offset 8 (opcode + 7 pad bytes, a
	// word-width-aligned), should now hold proc1's absolute offset.
	got := int64(op.Order.Uint64(m.Code[8:16]))
	if got != m.ProcOffsets[1] {
		t.Fatalf("patched CALL target = %d, want %d", got, m.ProcOffsets[1])
	}
}

func TestLoadedModuleRuns(t *testing.T) {
	entry := buildProc(t, func(w func(op.Opcode), idx func(uint64), u32 func(uint32)) {
		w(op.OpCall)
		idx(1)
		w(op.OpEnd)
	})
	proc1 := buildProc(t, func(w func(op.Opcode), idx func(uint64), u32 func(uint32)) {
		w(op.OpLoadImmediate32)
		u32(9)
		w(op.OpRet)
	})
	file := buildModuleFile(t, [][]byte{entry, proc1}, 0)

	m, err := Load(bytes.NewReader(file), word.Width64)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	h := heap.New(word.Width64, func(*heap.Marker, any) {}, nil)
	if _, err := h.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer h.Finalise()

	mach := vm.New(h, m.Code)
	stacks := vm.NewStacks(16, 16)
	got := mach.Run(stacks, m.Entry)
	if got != 9 {
		t.Fatalf("Run returned %d, want 9", got)
	}
}

func TestLoadRejectsOutOfRangeEntry(t *testing.T) {
	proc0 := buildProc(t, func(w func(op.Opcode), idx func(uint64), u32 func(uint32)) {
		w(op.OpEnd)
	})
	file := buildModuleFile(t, [][]byte{proc0}, 5)

	if _, err := Load(bytes.NewReader(file), word.Width64); err == nil {
		t.Fatalf("Load should have rejected an out-of-range entry index")
	}
}
