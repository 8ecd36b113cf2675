package compose

import (
	"fmt"
	"runtime/debug"
)

// PanicError is the error a unit's panic is converted into. It travels up
// the chain like any returned error.
type PanicError struct {
	Value any
	stack []byte
}

func newPanicError(v any, stack []byte) *PanicError {
	return &PanicError{Value: v, stack: stack}
}

// Recovered wraps a value returned by recover() together with the current
// goroutine stack. Call it from the deferred function that recovered.
func Recovered(v any) *PanicError {
	return newPanicError(v, debug.Stack())
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Stack returns the goroutine stack captured at recovery.
func (e *PanicError) Stack() string {
	return string(e.stack)
}
