package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies type bridge failures.
type ErrorKind int

// Type bridge error kinds.
const (
	UnsupportedType ErrorKind = iota + 1
	ValueConversion
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case UnsupportedType:
		return "UnsupportedType"
	case ValueConversion:
		return "ValueConversion"
	default:
		return "Unknown"
	}
}

// Error is returned by conversion functions.
type Error struct {
	Kind ErrorKind

	// Type names the offending native or SQL type.
	Type string

	// Value is the value that failed to convert, if any.
	Value any

	Err error
}

// Error implements error.
func (e *Error) Error() string {
	switch {
	case e.Kind == UnsupportedType:
		return fmt.Sprintf("unsupported type: %s", e.Type)
	case e.Err != nil:
		return fmt.Sprintf("cannot convert %v (%T) to %s: %v", e.Value, e.Value, e.Type, e.Err)
	default:
		return fmt.Sprintf("cannot convert %v (%T) to %s", e.Value, e.Value, e.Type)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a type bridge error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

func unsupported(name string) error {
	return &Error{Kind: UnsupportedType, Type: name}
}

func conversion(t SQLType, v any, cause error) error {
	return &Error{Kind: ValueConversion, Type: t.String(), Value: v, Err: cause}
}

var (
	errOutOfRange = errors.New("value out of range")
	errNotNumeric = errors.New("not a numeric value")
	errFraction   = errors.New("value has a fractional part")
)
