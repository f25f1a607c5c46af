package client

import (
	"errors"
	"fmt"
)

var (
	ErrServer       = errors.New("relay error")
	ErrDisconnected = errors.New("disconnected from relay")
	ErrClosed       = errors.New("client closed")
	ErrTimeout      = errors.New("timeout")
	ErrStreamEnded  = errors.New("stream ended")
	ErrNotViewer    = errors.New("joined as host")
)

// Error describes a failed CLI operation.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
