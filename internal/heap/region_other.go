//go:build !unix

package heap

// region falls back to a plain heap-allocated Go byte slice on
// non-unix targets (the pack's only OS-memory dependency,
// golang.org/x/sys/unix, has no portable Windows mmap equivalent
// wired into it). The slice is never resized or moved once allocated,
// so it provides the same "single contiguous, page-aligned-enough"
// backing store the rest of the package depends on; only the true
// OS-page-aligned guarantee is lost.
type region struct {
	bytes []byte
}

func pageSize() int {
	return 4096
}

func mapRegion(size int) (*region, error) {
	return &region{bytes: make([]byte, size)}, nil
}

func (r *region) unmap() error {
	r.bytes = nil
	return nil
}
