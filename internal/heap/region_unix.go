//go:build unix

package heap

import "golang.org/x/sys/unix"

// region is the heap's single contiguous, page-aligned virtual memory
// mapping, obtained directly from the OS. This is the direct Go
// translation of original_source/runtime/pz_gc.cpp's
// mmap(NULL, PZ_GC_MAX_HEAP_SIZE, PROT_READ|PROT_WRITE,
// MAP_PRIVATE|MAP_ANONYMOUS, -1, 0) / munmap pair.
type region struct {
	bytes []byte
}

func pageSize() int {
	return unix.Getpagesize()
}

func mapRegion(size int) (*region, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return &region{bytes: b}, nil
}

func (r *region) unmap() error {
	if r.bytes == nil {
		return nil
	}
	err := unix.Munmap(r.bytes)
	r.bytes = nil
	return err
}
