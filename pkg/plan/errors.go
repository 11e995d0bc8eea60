package plan

import "errors"

// Errors returned by planners and expression evaluation. Callers classify
// failures with errors.Is.
var (
	ErrSyntax         = errors.New("syntax error")
	ErrUnresolved     = errors.New("unresolved reference")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("numeric value out of range")
)
