package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/plasma-lang/pzvm/internal/op"
	"github.com/plasma-lang/pzvm/internal/vm"
)

// replCmd opens an interactive prompt over a loaded module with the
// commands run, disasm and quit (or exit); it offers no single-stepping
// and no stack or heap inspection. Grounded on ogleproxy/main.go's read-a-command,
// serve-a-command loop, with github.com/chzyer/readline standing in
// for ogleproxy's raw stdin/stdout RPC pipe.
func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl <module>",
		Short: "interactively run and inspect a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, h, err := loadModule(args[0])
			if err != nil {
				return err
			}
			defer h.Finalise()

			rl, err := readline.New("pvmrun> ")
			if err != nil {
				return fmt.Errorf("pvmrun: %w", err)
			}
			defer rl.Close()

			mach := vm.New(h, m.Code)
			fmt.Printf("loaded %s: %d procedures, entry at %#x\n", args[0], len(m.ProcOffsets), m.Entry.Code)

			for {
				line, err := rl.Readline()
				if err == io.EOF || err == readline.ErrInterrupt {
					return nil
				}
				if err != nil {
					return fmt.Errorf("pvmrun: %w", err)
				}

				fields := strings.Fields(line)
				if len(fields) == 0 {
					continue
				}
				switch fields[0] {
				case "run":
					stacks := vm.NewStacks(1024, 1024)
					code := mach.Run(stacks, m.Entry)
					fmt.Println(code)
				case "disasm":
					for _, l := range op.Disassemble(m.Code, int64(h.WordWidth())) {
						fmt.Println(l)
					}
				case "quit", "exit":
					return nil
				default:
					fmt.Printf("unknown command %q; try run, disasm, quit\n", fields[0])
				}
			}
		},
	}
}
