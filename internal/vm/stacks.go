// Package vm implements the interpreter loop of spec.md §4.F-§4.G: the
// expression/return stacks, closures, and the dispatch of every opcode
// family over internal/heap and internal/op.
//
// Grounded on ogle/program/server/server.go's loop/dispatch pair
// (structure only: a synchronous opcode-dispatch for loop replaces the
// channel-multiplexed RPC command loop, since this runtime's
// concurrency model is single-threaded and cooperative) and
// ogle/program/program.go's Frame/value model for the call-frame
// shape. Opcode-by-opcode behaviour is checked line for line against
// original_source/runtime/pz_generic_run.cpp.
package vm

import "github.com/plasma-lang/pzvm/internal/word"

// Stacks holds the interpreter's two preallocated arrays and their
// live-slot counts (spec.md §6: "stacks provides two preallocated
// arrays and their indices"). Slot 0 of each array is never written:
// ESP/RSP follow the reference runtime's pre-increment push
// convention, where the first pushed value lands at index 1.
type Stacks struct {
	Expr []word.StackValue
	ESP  int64

	Return []word.Address
	RSP    int64
}

// NewStacks preallocates an expression stack holding up to exprDepth
// live values and a return stack holding up to returnDepth live
// frames-halves, plus the unused slot 0 in each.
func NewStacks(exprDepth, returnDepth int) *Stacks {
	return &Stacks{
		Expr:   make([]word.StackValue, exprDepth+1),
		Return: make([]word.Address, returnDepth+1),
	}
}
