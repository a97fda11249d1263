package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with structured logging
//
// The function should be called in a defer statement. If a panic occurs,
// it will be recovered and logged at Error level with the panic value,
// full stack trace, and context about where the panic occurred.
//
// After logging, the panic is NOT re-raised - the function returns normally.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}

// MustRecover recovers from a panic and converts it to an error
//
//	func parse() (result Data, err error) {
//	    defer func() {
//	        err = observability.MustRecover(recover())
//	    }()
//	    ...
//	}
//
// If a panic occurred, returns an error describing the panic.
// If no panic (r is nil), returns nil.
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}
