package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered panic value into an internal error carrying the stack trace.
func RecoverPanic(r interface{}) error {
	return RecoverPanicAs(r, ErrInternal)
}

// RecoverPanicAs is RecoverPanic with a caller-chosen error code, e.g. ErrRouting.
func RecoverPanicAs(r interface{}, base *Error) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return base.
		WithCause(err).
		WithDetail("panic", true).
		WithDetail("stack_trace", string(debug.Stack())).
		AsFatal()
}
