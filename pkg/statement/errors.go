package statement

import "errors"

var (
	// ErrNotFound is returned for unknown or garbage-collected statements.
	ErrNotFound = errors.New("statement not found")

	// ErrInvalidToken is returned when a poll token is released or not yet issued.
	ErrInvalidToken = errors.New("invalid page token")

	// ErrAlreadyTerminal is returned when an event targets a terminal statement.
	ErrAlreadyTerminal = errors.New("statement already terminal")

	// ErrInvalidTransition is returned for events the current state does not accept.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCancelled is the error record of a cancelled statement.
	ErrCancelled = errors.New("query was canceled")

	// ErrAbandoned fails statements the client stopped polling.
	ErrAbandoned = errors.New("query abandoned by client")

	// ErrEmptyStatement is returned when submitting blank SQL.
	ErrEmptyStatement = errors.New("empty statement")

	// ErrQueueFull is returned by Submit when too many statements wait for
	// a worker.
	ErrQueueFull = errors.New("too many queued statements")

	// ErrClosed is returned by a Manager after Close.
	ErrClosed = errors.New("statement manager closed")

	// ErrInternal wraps unexpected failures such as worker panics.
	ErrInternal = errors.New("internal error")
)
