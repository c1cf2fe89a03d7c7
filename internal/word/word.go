// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package word defines the machine word model the interpreter and heap
// share: word width, tag-bit masking, and the raw stack-value slot that
// opcodes reinterpret at different widths without conversion.
package word

import "encoding/binary"

// Width is the size of the machine word, in bytes. Only 4 (32-bit) and
// 8 (64-bit) are supported, matching spec.md's "native-sized unsigned
// integer W (either 32 or 64 bits)".
type Width int

const (
	Width32 Width = 4
	Width64 Width = 8
)

// LogBytes is log2(W), the number of low pointer bits reserved for tags.
func (w Width) LogBytes() uint {
	switch w {
	case Width32:
		return 2
	case Width64:
		return 3
	default:
		panic("word: bad width")
	}
}

// TagMask covers the low tag bits of a pointer of this width.
func (w Width) TagMask() Address {
	return Address(1)<<w.LogBytes() - 1
}

// Order is the byte order of stack-value slots and of words and
// LOAD/STORE values in heap memory. Like op.Order, which decodes
// bytecode immediates, it is host-endian (spec.md §9); NativeEndian pins
// it to whatever order this binary was built for rather than guessing
// at runtime, which would require an unsafe, non-portable probe.
var Order binary.ByteOrder = binary.NativeEndian

// Address is a heap address: internal/heap's nonzero nominal base plus
// a byte offset into its backing region. It is a plain integer, never
// converted to a Go pointer; the heap translates it back to a region
// offset on every access.
type Address uintptr

// Add returns a+n.
func (a Address) Add(n int64) Address {
	return Address(int64(a) + n)
}

// Sub returns a-b in bytes.
func (a Address) Sub(b Address) int64 {
	return int64(a) - int64(b)
}

// RemoveTag masks off the low tag bits of a, as spec.md §3's
// "Tag bits ... must be masked off before any pointer comparison or
// dereference against the heap" requires.
func RemoveTag(a Address, w Width) Address {
	return a &^ w.TagMask()
}
