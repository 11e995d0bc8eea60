package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors. Catalog operations wrap them in *Error; test with errors.Is.
var (
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
	ErrNonEmptySchema = errors.New("schema is not empty")
	ErrCurrentSchema  = errors.New("schema is in use as the current schema")
	ErrDefaultSchema  = errors.New("the default schema cannot be dropped")
	ErrReserved       = errors.New("name is reserved")
	ErrInvalidName    = errors.New("invalid name")
)

// Error describes a failed catalog operation on a named object.
type Error struct {
	// Object is "schema" or "table".
	Object string
	Name   string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Object, e.Name, e.Err)
}

// Unwrap returns the sentinel.
func (e *Error) Unwrap() error {
	return e.Err
}

func schemaErr(name string, err error) error {
	return &Error{Object: "schema", Name: name, Err: err}
}

func tableErr(schema, name string, err error) error {
	return &Error{Object: "table", Name: schema + "." + name, Err: err}
}
