package heap

// Per-word metadata flags (spec.md §3, "Metadata bitmap"). These are
// the direct translation of original_source/runtime/pz_gc.cpp's
// GC_BITS_ALLOCATED/GC_BITS_MARKED/GC_BITS_VALID.
const (
	bitAllocated byte = 0x01
	bitMarked    byte = 0x02
	bitValid     byte = 0x04
)
