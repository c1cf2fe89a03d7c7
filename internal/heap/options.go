package heap

import (
	"io"
	"log"
)

const (
	defaultHeapSize    = 4096 * 2
	defaultMaxHeapSize = 1024 * 1024
)

// Options holds the heap configuration knobs from spec.md §6:
// gc_zealous, gc_trace, gc_trace2, gc_slow_asserts, gc_poison, plus the
// initial/maximum heap size. Constructed with functional options in the
// style the pack favors for small, rarely-changed configuration structs
// (see cmd/viewcore/main.go's flag-per-concern setup, generalized here
// to an options struct since the heap is a library, not a CLI).
type Options struct {
	heapSize    int
	maxHeapSize int

	zealous     bool
	slowAsserts bool
	poison      bool

	trace  bool
	trace2 bool
	logger *log.Logger
}

// Option configures a Heap at construction time.
type Option func(*Options)

// WithHeapSize sets the initial logical heap_size limit, in bytes.
func WithHeapSize(n int) Option {
	return func(o *Options) { o.heapSize = n }
}

// WithMaxHeapSize sets the fixed maximum backing region size, in bytes.
func WithMaxHeapSize(n int) Option {
	return func(o *Options) { o.maxHeapSize = n }
}

// WithZealousGC forces a collection before every non-initial
// allocation, for shaking out root-tracing bugs.
func WithZealousGC() Option {
	return func(o *Options) { o.zealous = true }
}

// WithSlowAsserts runs the full heap consistency check before and
// after every collection.
func WithSlowAsserts() Option {
	return func(o *Options) { o.slowAsserts = true }
}

// WithPoison overwrites dead cell payloads with a marker byte during
// sweep, to surface use-after-free.
func WithPoison() Option {
	return func(o *Options) { o.poison = true }
}

// WithTrace emits high-level collection progress lines to w.
func WithTrace(w io.Writer) Option {
	return func(o *Options) {
		o.trace = true
		o.logger = log.New(w, "gc: ", 0)
	}
}

// WithTrace2 emits per-cell allocation/sweep lines to w (implies
// WithTrace).
func WithTrace2(w io.Writer) Option {
	return func(o *Options) {
		o.trace = true
		o.trace2 = true
		o.logger = log.New(w, "gc: ", 0)
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		heapSize:    defaultHeapSize,
		maxHeapSize: defaultMaxHeapSize,
		logger:      log.New(io.Discard, "gc: ", 0),
	}
	for _, f := range opts {
		f(&o)
	}
	return o
}

func (o *Options) tracef(format string, args ...any) {
	if o.trace {
		o.logger.Printf(format, args...)
	}
}

func (o *Options) trace2f(format string, args ...any) {
	if o.trace2 {
		o.logger.Printf(format, args...)
	}
}
