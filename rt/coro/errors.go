package coro

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResult is returned by Handle.TakeResult when there is no value to take: the task is
	// still running, was stopped, its result was already taken, or its scheduler is closed.
	// The returned error wraps ErrNoResult and says which.
	ErrNoResult = errors.New("coro: no result")

	// ErrClosed is returned by Start after Scheduler.Close.
	ErrClosed = errors.New("coro: scheduler closed")

	// ErrInvalidName is returned by Start when a task name is invalid.
	//
	// Name rules:
	//   - name is optional (empty means unnamed)
	//   - non-empty name must match [A-Za-z0-9._-]
	//   - name is normalized by strings.TrimSpace before validation
	//
	// Names are not required to be unique.
	ErrInvalidName = errors.New("coro: invalid name")

	// ErrPanicked matches (errors.Is) the *PanicError of a task whose body panicked.
	ErrPanicked = errors.New("coro: task panicked")
)

// PanicError is the failure recorded for a task whose body panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("coro: task panicked: %v", e.Value)
}

// Is makes errors.Is(err, ErrPanicked) true.
func (e *PanicError) Is(target error) bool { return target == ErrPanicked }

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
