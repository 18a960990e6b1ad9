package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrAddressRequired  = errors.New("transport: coordinator host and port required")
	ErrConnect          = errors.New("transport: connect failed")
	ErrWrite            = errors.New("transport: write failed")
	ErrConnectionClosed = errors.New("transport: connection closed before reply")
	ErrTimeout          = errors.New("transport: timeout")
	ErrReplyTooLarge    = errors.New("transport: reply too large")
)

const (
	OpDial  = "dial"
	OpWrite = "write"
	OpRead  = "read"
)

// Error is one failed exchange. Kind is the taxonomy sentinel; Err is the
// underlying cause.
type Error struct {
	Op   string
	Addr string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s %s", e.Kind, e.Op, e.Addr)
	}
	return fmt.Sprintf("%v: %s %s: %v", e.Kind, e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// classify picks the taxonomy kind for an I/O failure in op. Deadline and
// cancellation always win over the phase-specific fallback.
func classify(ctx context.Context, op, addr string, fallback error, err error) *Error {
	kind := fallback
	if ctx.Err() != nil {
		kind = ErrTimeout
		err = ctx.Err()
	} else if isTimeout(err) {
		kind = ErrTimeout
	}
	return &Error{Op: op, Addr: addr, Kind: kind, Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Outcome is a short label for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConnect):
		return "connect"
	case errors.Is(err, ErrWrite):
		return "write"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrReplyTooLarge):
		return "too_large"
	default:
		return "error"
	}
}
