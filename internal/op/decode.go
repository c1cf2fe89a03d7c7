package op

import "encoding/binary"

// Order is the byte order immediates are decoded in. The bytecode wire
// format is host-endian (spec.md §9); see internal/word.Order for the
// matching choice used by the interpreter's stack values.
var Order binary.ByteOrder = binary.NativeEndian

// AlignUp rounds ip up to the next multiple of k, spec.md §4.E's rule
// that "ip is rounded up to a multiple of k before the read."
func AlignUp(ip int64, k int64) int64 {
	return (ip + k - 1) &^ (k - 1)
}

// Decoder reads opcodes and aligned immediates out of an immutable
// bytecode region, advancing ip exactly the way spec.md §4.E and §4.F
// specify: the opcode byte is unaligned and advances ip by one; every
// immediate of width k is read only after rounding ip up to a multiple
// of k, and then advances ip by k.
type Decoder struct {
	Code []byte
	IP   int64
}

// ReadOpcode reads the one-byte, unaligned opcode at IP and advances
// IP by one.
func (d *Decoder) ReadOpcode() Opcode {
	o := Opcode(d.Code[d.IP])
	d.IP++
	return o
}

// align rounds IP up to a multiple of k bytes before an immediate read.
func (d *Decoder) align(k int64) {
	d.IP = AlignUp(d.IP, k)
}

// ReadU8 reads an unaligned byte immediate (k=1 never needs alignment).
func (d *Decoder) ReadU8() uint8 {
	v := d.Code[d.IP]
	d.IP++
	return v
}

// ReadU16 reads a 2-byte immediate, aligned to 2.
func (d *Decoder) ReadU16() uint16 {
	d.align(2)
	v := Order.Uint16(d.Code[d.IP : d.IP+2])
	d.IP += 2
	return v
}

// ReadU32 reads a 4-byte immediate, aligned to 4.
func (d *Decoder) ReadU32() uint32 {
	d.align(4)
	v := Order.Uint32(d.Code[d.IP : d.IP+4])
	d.IP += 4
	return v
}

// ReadU64 reads an 8-byte immediate, aligned to 8.
func (d *Decoder) ReadU64() uint64 {
	d.align(8)
	v := Order.Uint64(d.Code[d.IP : d.IP+8])
	d.IP += 8
	return v
}

// ReadWord reads a machine-word-sized immediate (used for addresses,
// pointers, and ALLOC's byte count), aligned to the word width k.
func (d *Decoder) ReadWord(k int64) uint64 {
	switch k {
	case 4:
		return uint64(d.ReadU32())
	case 8:
		return d.ReadU64()
	default:
		panic("op: bad word width")
	}
}

// ReadImmediate reads an immediate of the given Width, aligned
// accordingly, and returns it widened to uint64.
func (d *Decoder) ReadImmediate(w Width) uint64 {
	switch w {
	case Width8:
		return uint64(d.ReadU8())
	case Width16:
		return uint64(d.ReadU16())
	case Width32:
		return uint64(d.ReadU32())
	case Width64:
		return d.ReadU64()
	default:
		panic("op: bad immediate width")
	}
}
