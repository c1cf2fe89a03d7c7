// Command pvmrun loads a linked bytecode module (internal/module) and
// runs, disassembles, or interactively drives it (internal/vm).
//
// Grounded on cmd/viewcore/main.go's command-and-corefile argument
// shape (here: command-and-module-file) and ogleproxy/main.go's
// log.SetFlags/log.SetPrefix logging convention, generalized from a
// flag.FlagSet dispatch to Cobra subcommands the way cmd/viewcore's
// objref.go already pulls in github.com/spf13/cobra for one command.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/plasma-lang/pzvm/internal/heap"
	"github.com/plasma-lang/pzvm/internal/module"
	"github.com/plasma-lang/pzvm/internal/op"
	"github.com/plasma-lang/pzvm/internal/vm"
	"github.com/plasma-lang/pzvm/internal/word"
)

var (
	heapSize    int
	maxHeapSize int
	zealousGC   bool
	slowAsserts bool
	poison      bool
	traceGC     bool
	trace2GC    bool
	wordWidth64 bool
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("pvmrun: ")

	root := &cobra.Command{
		Use:           "pvmrun",
		Short:         "run and inspect linked bytecode modules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&heapSize, "heap-size", 8192, "initial logical heap size, in bytes")
	root.PersistentFlags().IntVar(&maxHeapSize, "max-heap-size", 1<<20, "fixed backing region size, in bytes")
	root.PersistentFlags().BoolVar(&zealousGC, "gc-zealous", false, "collect before every allocation except the first")
	root.PersistentFlags().BoolVar(&slowAsserts, "gc-slow-asserts", false, "run expensive heap consistency checks")
	root.PersistentFlags().BoolVar(&poison, "gc-poison", false, "poison freed memory")
	root.PersistentFlags().BoolVar(&traceGC, "gc-trace", false, "log collection summaries")
	root.PersistentFlags().BoolVar(&trace2GC, "gc-trace2", false, "log per-cell allocation/sweep detail")
	root.PersistentFlags().BoolVar(&wordWidth64, "w64", true, "64-bit machine word width (false selects 32-bit)")

	root.AddCommand(runCmd(), disasmCmd(), replCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <module>",
		Short: "run a module to completion and print its exit code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, h, err := loadModule(args[0])
			if err != nil {
				return err
			}
			defer h.Finalise()

			mach := vm.New(h, m.Code)
			stacks := vm.NewStacks(1024, 1024)
			code := mach.Run(stacks, m.Entry)
			fmt.Println(code)
			return nil
		},
	}
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <module>",
		Short: "disassemble a module's linked code region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, h, err := loadModule(args[0])
			if err != nil {
				return err
			}
			defer h.Finalise()

			for i, off := range m.ProcOffsets {
				marker := ""
				if off == m.Entry.Code {
					marker = " (entry)"
				}
				fmt.Printf("proc %d at %#x%s:\n", i, off, marker)
			}
			for _, line := range op.Disassemble(m.Code, int64(h.WordWidth())) {
				fmt.Println(line)
			}
			return nil
		},
	}
}

// loadModule opens path, builds a heap sized from the persistent
// flags, and links the module file against it. The caller owns the
// returned heap and must Finalise it.
func loadModule(path string) (*module.Module, *heap.Heap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("pvmrun: %w", err)
	}
	defer f.Close()

	w := word.Width64
	if !wordWidth64 {
		w = word.Width32
	}

	opts := []heap.Option{
		heap.WithHeapSize(heapSize),
		heap.WithMaxHeapSize(maxHeapSize),
	}
	if zealousGC {
		opts = append(opts, heap.WithZealousGC())
	}
	if slowAsserts {
		opts = append(opts, heap.WithSlowAsserts())
	}
	if poison {
		opts = append(opts, heap.WithPoison())
	}
	if traceGC {
		opts = append(opts, heap.WithTrace(os.Stderr))
	}
	if trace2GC {
		opts = append(opts, heap.WithTrace2(os.Stderr))
	}

	h := heap.New(w, func(*heap.Marker, any) {}, nil, opts...)
	if _, err := h.Init(); err != nil {
		return nil, nil, fmt.Errorf("pvmrun: %w", err)
	}

	m, err := module.Load(f, w)
	if err != nil {
		h.Finalise()
		return nil, nil, err
	}
	return m, h, nil
}
