package interp

import "errors"

var (
	ErrBlockTimeout           = errors.New("interp: block instruction timed out")
	ErrDivByZero              = errors.New("interp: division by zero")
	ErrParamTypeMismatch      = errors.New("interp: parameter type mismatch")
	ErrUnknownOperator        = errors.New("interp: unknown operator for operand type")
	ErrUnknownInstructionType = errors.New("interp: unknown instruction type")
	ErrRecursionDepthExceeded = errors.New("interp: recursion depth exceeded")
	ErrCalleeSlotEmpty        = errors.New("interp: call to empty procedure slot")
)
