package protocol

import (
	"errors"

	"github.com/txn2/sqlgate/pkg/compiler"
	"github.com/txn2/sqlgate/pkg/plan"
	"github.com/txn2/sqlgate/pkg/statement"
	"github.com/txn2/sqlgate/pkg/types"
)

// ErrorCode is a client protocol error code. Codes and names follow the
// Trino standard error codes so existing clients classify them correctly.
type ErrorCode struct {
	Code int
	Name string
	Type string
}

// Error types.
const (
	UserError     = "USER_ERROR"
	InternalError = "INTERNAL_ERROR"
)

// Error codes reported in QueryError.
var (
	GenericUserError     = ErrorCode{0, "GENERIC_USER_ERROR", UserError}
	SyntaxError          = ErrorCode{1, "SYNTAX_ERROR", UserError}
	AbandonedQuery       = ErrorCode{2, "ABANDONED_QUERY", UserError}
	UserCanceled         = ErrorCode{3, "USER_CANCELED", UserError}
	NotFound             = ErrorCode{5, "NOT_FOUND", UserError}
	DivisionByZero       = ErrorCode{8, "DIVISION_BY_ZERO", UserError}
	InvalidCastArgument  = ErrorCode{9, "INVALID_CAST_ARGUMENT", UserError}
	NumericOutOfRange    = ErrorCode{19, "NUMERIC_VALUE_OUT_OF_RANGE", UserError}
	NotSupported         = ErrorCode{13, "NOT_SUPPORTED", UserError}
	TypeMismatch         = ErrorCode{58, "TYPE_MISMATCH", UserError}
	GenericInternalError = ErrorCode{65536, "GENERIC_INTERNAL_ERROR", InternalError}
)

// CodeFor classifies a statement error record.
func CodeFor(err error) ErrorCode {
	if kind, ok := compiler.KindOf(err); ok {
		switch kind {
		case compiler.ParseError:
			return SyntaxError
		case compiler.UnresolvedReference:
			return NotFound
		case compiler.TypeError:
			return TypeMismatch
		}
	}

	var te *types.Error
	switch {
	case errors.Is(err, statement.ErrCancelled):
		return UserCanceled
	case errors.Is(err, statement.ErrAbandoned):
		return AbandonedQuery
	case errors.Is(err, plan.ErrDivisionByZero):
		return DivisionByZero
	case errors.Is(err, plan.ErrOverflow):
		return NumericOutOfRange
	case errors.Is(err, plan.ErrTypeMismatch):
		return TypeMismatch
	case errors.As(err, &te):
		if te.Kind == types.UnsupportedType {
			return NotSupported
		}
		return InvalidCastArgument
	case errors.Is(err, statement.ErrInternal):
		return GenericInternalError
	}
	return GenericInternalError
}

func newQueryError(err error) *QueryError {
	code := CodeFor(err)
	qe := &QueryError{
		Message:   err.Error(),
		ErrorCode: code.Code,
		ErrorName: code.Name,
		ErrorType: code.Type,
	}
	qe.FailureInfo.Type = code.Name
	qe.FailureInfo.Message = err.Error()
	return qe
}
