package reflex

import (
	"errors"
	"fmt"
)

var (
	// ErrMethodNotFound indicates an unregistered handler class or method.
	ErrMethodNotFound = errors.New("reflex: method not found")
	// ErrReservedName indicates an attempt to register or invoke one of
	// the reserved method names.
	ErrReservedName = errors.New("reflex: reserved method name")
	// ErrClassRegistered indicates a duplicate class registration.
	ErrClassRegistered = errors.New("reflex: class already registered")
)

// RecoveryError wraps a panic raised inside a handler with its stack trace,
// so rescue policies can match on it like any other error.
type RecoveryError struct {
	PanicValue any
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("reflex: panic recovered: %v", e.PanicValue)
}
