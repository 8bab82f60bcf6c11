package interp

import (
	"fmt"
	"math"

	"github.com/suprax-systems/csp-proc/param"
	"github.com/suprax-systems/csp-proc/proc"
)

// IfElseFlag is the interpreter-local register controlling single
// instruction skip of if- and else-clauses.
type IfElseFlag uint8

const (
	IfElseNone IfElseFlag = iota
	IfElseTrue
	IfElseFalse
	IfElseErr
	IfElseErrType
)

// compare evaluates "a op b" for two operands already confirmed
// to share a category. Floating equality and inequality use an absolute
// tolerance; ordering comparisons do not.
func compare(a, b param.Value, op proc.ComparisonOp, epsilon float64) (bool, error) {
	switch a.Type {
	case param.TypeUint64:
		return compareOrdered(a.U, b.U, op)
	case param.TypeInt64:
		return compareOrdered(a.I, b.I, op)
	case param.TypeFloat64:
		return compareFloat(a.F, b.F, op, epsilon)
	case param.TypeString:
		return compareOrdered(a.S, b.S, op)
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, a.Type)
	}
}

func compareOrdered[T uint64 | int64 | string](a, b T, op proc.ComparisonOp) (bool, error) {
	switch op {
	case proc.CmpEq:
		return a == b, nil
	case proc.CmpNeq:
		return a != b, nil
	case proc.CmpLt:
		return a < b, nil
	case proc.CmpGt:
		return a > b, nil
	case proc.CmpLte:
		return a <= b, nil
	case proc.CmpGte:
		return a >= b, nil
	default:
		return false, fmt.Errorf("%w: comparison %s", ErrUnknownOperator, op)
	}
}

func compareFloat(a, b float64, op proc.ComparisonOp, epsilon float64) (bool, error) {
	switch op {
	case proc.CmpEq:
		return math.Abs(a-b) <= epsilon, nil
	case proc.CmpNeq:
		return math.Abs(a-b) > epsilon, nil
	case proc.CmpLt:
		return a < b, nil
	case proc.CmpGt:
		return a > b, nil
	case proc.CmpLte:
		return a <= b, nil
	case proc.CmpGte:
		return a >= b, nil
	default:
		return false, fmt.Errorf("%w: comparison %s", ErrUnknownOperator, op)
	}
}

type unopKey struct {
	op proc.UnaryOp
	t  param.ValueType
}

// unopTable is the tagged-operand dispatch matrix for UNOP, keyed by
// operator and operand category. idt/rmt are identity at the value
// level (their locality swap is handled by the engine before/after
// this table) and so are not listed here.
var unopTable = map[unopKey]func(param.Value) (param.Value, error){
	{proc.UnopInc, param.TypeUint64}:  func(v param.Value) (param.Value, error) { return param.Uint64(v.U + 1), nil },
	{proc.UnopInc, param.TypeInt64}:   func(v param.Value) (param.Value, error) { return param.Int64(v.I + 1), nil },
	{proc.UnopInc, param.TypeFloat64}: func(v param.Value) (param.Value, error) { return param.Float64(v.F + 1), nil },

	{proc.UnopDec, param.TypeUint64}:  func(v param.Value) (param.Value, error) { return param.Uint64(v.U - 1), nil },
	{proc.UnopDec, param.TypeInt64}:   func(v param.Value) (param.Value, error) { return param.Int64(v.I - 1), nil },
	{proc.UnopDec, param.TypeFloat64}: func(v param.Value) (param.Value, error) { return param.Float64(v.F - 1), nil },

	{proc.UnopNot, param.TypeUint64}: func(v param.Value) (param.Value, error) { return param.Uint64(^v.U), nil },
	{proc.UnopNot, param.TypeInt64}:  func(v param.Value) (param.Value, error) { return param.Int64(^v.I), nil },

	{proc.UnopNeg, param.TypeInt64}:   func(v param.Value) (param.Value, error) { return param.Int64(-v.I), nil },
	{proc.UnopNeg, param.TypeFloat64}: func(v param.Value) (param.Value, error) { return param.Float64(-v.F), nil },
}

func applyUnop(op proc.UnaryOp, v param.Value) (param.Value, error) {
	if op == proc.UnopIdt || op == proc.UnopRmt {
		return v, nil
	}
	fn, ok := unopTable[unopKey{op, v.Type}]
	if !ok {
		return param.Value{}, fmt.Errorf("%w: %s on %s", ErrUnknownOperator, op, v.Type)
	}
	return fn(v)
}

type binopKey struct {
	op proc.BinaryOp
	t  param.ValueType
}

var binopTable = map[binopKey]func(a, b param.Value) (param.Value, error){
	{proc.BinopAdd, param.TypeUint64}:  func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U + b.U), nil },
	{proc.BinopAdd, param.TypeInt64}:   func(a, b param.Value) (param.Value, error) { return param.Int64(a.I + b.I), nil },
	{proc.BinopAdd, param.TypeFloat64}: func(a, b param.Value) (param.Value, error) { return param.Float64(a.F + b.F), nil },

	{proc.BinopSub, param.TypeUint64}:  func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U - b.U), nil },
	{proc.BinopSub, param.TypeInt64}:   func(a, b param.Value) (param.Value, error) { return param.Int64(a.I - b.I), nil },
	{proc.BinopSub, param.TypeFloat64}: func(a, b param.Value) (param.Value, error) { return param.Float64(a.F - b.F), nil },

	{proc.BinopMul, param.TypeUint64}:  func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U * b.U), nil },
	{proc.BinopMul, param.TypeInt64}:   func(a, b param.Value) (param.Value, error) { return param.Int64(a.I * b.I), nil },
	{proc.BinopMul, param.TypeFloat64}: func(a, b param.Value) (param.Value, error) { return param.Float64(a.F * b.F), nil },

	{proc.BinopDiv, param.TypeUint64}: func(a, b param.Value) (param.Value, error) {
		if b.U == 0 {
			return param.Value{}, ErrDivByZero
		}
		return param.Uint64(a.U / b.U), nil
	},
	{proc.BinopDiv, param.TypeInt64}: func(a, b param.Value) (param.Value, error) {
		if b.I == 0 {
			return param.Value{}, ErrDivByZero
		}
		return param.Int64(a.I / b.I), nil
	},
	{proc.BinopDiv, param.TypeFloat64}: func(a, b param.Value) (param.Value, error) {
		if b.F == 0 {
			return param.Value{}, ErrDivByZero
		}
		return param.Float64(a.F / b.F), nil
	},

	{proc.BinopMod, param.TypeUint64}: func(a, b param.Value) (param.Value, error) {
		if b.U == 0 {
			return param.Value{}, ErrDivByZero
		}
		return param.Uint64(a.U % b.U), nil
	},
	{proc.BinopMod, param.TypeInt64}: func(a, b param.Value) (param.Value, error) {
		if b.I == 0 {
			return param.Value{}, ErrDivByZero
		}
		return param.Int64(a.I % b.I), nil
	},

	{proc.BinopShl, param.TypeUint64}: func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U << b.U), nil },
	{proc.BinopShl, param.TypeInt64}:  func(a, b param.Value) (param.Value, error) { return param.Int64(a.I << uint64(b.I)), nil },

	{proc.BinopShr, param.TypeUint64}: func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U >> b.U), nil },
	{proc.BinopShr, param.TypeInt64}:  func(a, b param.Value) (param.Value, error) { return param.Int64(a.I >> uint64(b.I)), nil },

	{proc.BinopAnd, param.TypeUint64}: func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U & b.U), nil },
	{proc.BinopAnd, param.TypeInt64}:  func(a, b param.Value) (param.Value, error) { return param.Int64(a.I & b.I), nil },

	{proc.BinopOr, param.TypeUint64}: func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U | b.U), nil },
	{proc.BinopOr, param.TypeInt64}:  func(a, b param.Value) (param.Value, error) { return param.Int64(a.I | b.I), nil },

	{proc.BinopXor, param.TypeUint64}: func(a, b param.Value) (param.Value, error) { return param.Uint64(a.U ^ b.U), nil },
	{proc.BinopXor, param.TypeInt64}:  func(a, b param.Value) (param.Value, error) { return param.Int64(a.I ^ b.I), nil },
}

func applyBinop(op proc.BinaryOp, a, b param.Value) (param.Value, error) {
	fn, ok := binopTable[binopKey{op, a.Type}]
	if !ok {
		return param.Value{}, fmt.Errorf("%w: %s on %s", ErrUnknownOperator, op, a.Type)
	}
	return fn(a, b)
}
