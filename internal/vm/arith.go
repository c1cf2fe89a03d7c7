package vm

import "github.com/plasma-lang/pzvm/internal/op"

// maskWidth truncates v to w's bit width.
func maskWidth(v uint64, w op.Width) uint64 {
	switch w {
	case op.Width8:
		return v & 0xff
	case op.Width16:
		return v & 0xffff
	case op.Width32:
		return v & 0xffffffff
	case op.Width64:
		return v
	default:
		panic("vm: bad width")
	}
}

// signExtend reinterprets the low w bytes of v as a signed integer.
func signExtend(v uint64, w op.Width) int64 {
	switch w {
	case op.Width8:
		return int64(int8(v))
	case op.Width16:
		return int64(int16(v))
	case op.Width32:
		return int64(int32(v))
	case op.Width64:
		return int64(v)
	default:
		panic("vm: bad width")
	}
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// runArith executes one stack-arithmetic instruction (spec.md §4.F):
// pop two operands of width w, push one. Grounded on
// pz_generic_run.cpp's PZ_RUN_ARITHMETIC macro expansion — operand
// order is expr[esp-1] OP expr[esp], result replaces expr[esp-1].
func (m *VM) runArith(stacks *Stacks, a op.ArithOp, w op.Width) {
	wb := int(w)
	rhs := stacks.Expr[stacks.ESP].Uint(wb)
	lhs := stacks.Expr[stacks.ESP-1].Uint(wb)

	var result uint64
	switch a {
	case op.ArithAdd:
		result = maskWidth(lhs+rhs, w)
	case op.ArithSub:
		result = maskWidth(lhs-rhs, w)
	case op.ArithMul:
		result = maskWidth(lhs*rhs, w)
	case op.ArithDiv:
		if rhs == 0 {
			abortf("division by zero")
		}
		result = maskWidth(uint64(signExtend(lhs, w)/signExtend(rhs, w)), w)
	case op.ArithMod:
		if rhs == 0 {
			abortf("division by zero")
		}
		result = maskWidth(uint64(signExtend(lhs, w)%signExtend(rhs, w)), w)
	case op.ArithAnd:
		result = maskWidth(lhs&rhs, w)
	case op.ArithOr:
		result = maskWidth(lhs|rhs, w)
	case op.ArithXor:
		result = maskWidth(lhs^rhs, w)
	case op.ArithLtU:
		result = boolWord(lhs < rhs)
	case op.ArithLtS:
		result = boolWord(signExtend(lhs, w) < signExtend(rhs, w))
	case op.ArithGtU:
		result = boolWord(lhs > rhs)
	case op.ArithGtS:
		result = boolWord(signExtend(lhs, w) > signExtend(rhs, w))
	case op.ArithEq:
		result = boolWord(lhs == rhs)
	default:
		abortf("unknown arithmetic operator %v", a)
	}

	stacks.Expr[stacks.ESP-1].SetUint(wb, result)
	stacks.ESP--
}

// runNot executes unary NOT in place. Per pz_generic_run.cpp (the `!`
// operator, not a bitwise complement despite "negates" in spec.md
// §4.F's prose), the result is 1 if the operand is zero, else 0.
func (m *VM) runNot(stacks *Stacks, w op.Width) {
	wb := int(w)
	v := stacks.Expr[stacks.ESP].Uint(wb)
	stacks.Expr[stacks.ESP].SetUint(wb, boolWord(v == 0))
}

// runShift executes LSHIFT/RSHIFT: the amount is always a u8 on top,
// the value below is of width w; both popped as one, one pushed.
func (m *VM) runShift(stacks *Stacks, left bool, w op.Width) {
	wb := int(w)
	amount := stacks.Expr[stacks.ESP].Uint(1)
	val := stacks.Expr[stacks.ESP-1].Uint(wb)

	var result uint64
	if left {
		result = maskWidth(val<<amount, w)
	} else {
		result = maskWidth(val>>amount, w)
	}
	stacks.Expr[stacks.ESP-1].SetUint(wb, result)
	stacks.ESP--
}

// runZe zero-extends the top slot from width `from` to width `to`.
func (m *VM) runZe(stacks *Stacks, from, to op.Width) {
	v := stacks.Expr[stacks.ESP].Uint(int(from))
	stacks.Expr[stacks.ESP].SetUint(int(to), v)
}

// runSe sign-extends the top slot from width `from` to width `to`.
func (m *VM) runSe(stacks *Stacks, from, to op.Width) {
	v := uint64(signExtend(stacks.Expr[stacks.ESP].Uint(int(from)), from))
	stacks.Expr[stacks.ESP].SetUint(int(to), maskWidth(v, to))
}

// runTrunc truncates the top slot from width `from` down to `to`.
func (m *VM) runTrunc(stacks *Stacks, from, to op.Width) {
	v := stacks.Expr[stacks.ESP].Uint(int(from))
	stacks.Expr[stacks.ESP].SetUint(int(to), maskWidth(v, to))
}
