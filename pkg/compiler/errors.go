package compiler

import "errors"

// Kind classifies compile failures.
type Kind int

// Compile error kinds.
const (
	ParseError Kind = iota
	UnresolvedReference
	TypeError
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case UnresolvedReference:
		return "UnresolvedReference"
	case TypeError:
		return "TypeError"
	default:
		return "Unknown"
	}
}

// Error is a failed compilation.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a compile error and whether err is one.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
