package transport

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	NotConnected ErrorKind = iota + 1
	SessionFailed
	Timeout
	Rejected
)

func (k ErrorKind) String() string {
	switch k {
	case NotConnected:
		return "not connected"
	case SessionFailed:
		return "session failed"
	case Timeout:
		return "timed out"
	case Rejected:
		return "rejected"
	}
	return "transport error"
}

// Error is returned by every Transport operation. errors.Is matches on Kind,
// so errors.Is(err, ErrTimeout) holds for any timeout.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

var (
	ErrNotConnected  = &Error{Kind: NotConnected}
	ErrSessionFailed = &Error{Kind: SessionFailed}
	ErrTimeout       = &Error{Kind: Timeout}
	ErrRejected      = &Error{Kind: Rejected}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Errorf builds an Error of the given kind.
func Errorf(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// ConnectError maps a failed dial onto Timeout when ctx ran out and SessionFailed otherwise.
func ConnectError(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: Timeout, Op: "connect", Err: err}
	}
	return &Error{Kind: SessionFailed, Op: "connect", Err: err}
}
