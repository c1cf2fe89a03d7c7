package word

// StackValue is a single expression-stack slot: a fixed-width raw bit
// pattern that opcodes reinterpret at widths 8/16/32/64 and as a
// pointer without any conversion. Per spec.md §9 ("Tagged stack
// values"), this must not be a sum/variant type — LOAD_IMMEDIATE_8
// followed by ZE_8_64 assumes the same underlying bits, so StackValue
// is modeled as raw storage with width-specific read/write accessors,
// mirroring how arch.Architecture (arch/arch.go) reads a target's
// native int/pointer width out of a raw byte buffer.
type StackValue [8]byte

func (v *StackValue) U8() uint8  { return v[0] }
func (v *StackValue) S8() int8   { return int8(v[0]) }
func (v *StackValue) SetU8(x uint8) {
	v[0] = x
}
func (v *StackValue) SetS8(x int8) { v.SetU8(uint8(x)) }

func (v *StackValue) U16() uint16 { return Order.Uint16(v[:2]) }
func (v *StackValue) S16() int16  { return int16(v.U16()) }
func (v *StackValue) SetU16(x uint16) {
	Order.PutUint16(v[:2], x)
}
func (v *StackValue) SetS16(x int16) { v.SetU16(uint16(x)) }

func (v *StackValue) U32() uint32 { return Order.Uint32(v[:4]) }
func (v *StackValue) S32() int32  { return int32(v.U32()) }
func (v *StackValue) SetU32(x uint32) {
	Order.PutUint32(v[:4], x)
}
func (v *StackValue) SetS32(x int32) { v.SetU32(uint32(x)) }

func (v *StackValue) U64() uint64 { return Order.Uint64(v[:8]) }
func (v *StackValue) S64() int64  { return int64(v.U64()) }
func (v *StackValue) SetU64(x uint64) {
	Order.PutUint64(v[:8], x)
}
func (v *StackValue) SetS64(x int64) { v.SetU64(uint64(x)) }

func (v *StackValue) Ptr() Address { return Address(v.U64()) }
func (v *StackValue) SetPtr(a Address) {
	v.SetU64(uint64(a))
}

// Uint reads the value at the given width (in bytes: 1, 2, 4, or 8) as
// an unsigned integer.
func (v *StackValue) Uint(widthBytes int) uint64 {
	switch widthBytes {
	case 1:
		return uint64(v.U8())
	case 2:
		return uint64(v.U16())
	case 4:
		return uint64(v.U32())
	case 8:
		return v.U64()
	default:
		panic("word: bad stack value width")
	}
}

// SetUint writes x, truncated to the given width (in bytes), to v.
func (v *StackValue) SetUint(widthBytes int, x uint64) {
	switch widthBytes {
	case 1:
		v.SetU8(uint8(x))
	case 2:
		v.SetU16(uint16(x))
	case 4:
		v.SetU32(uint32(x))
	case 8:
		v.SetU64(x)
	default:
		panic("word: bad stack value width")
	}
}
