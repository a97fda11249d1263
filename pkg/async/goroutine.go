package async

import (
	"context"
	"log"
	"runtime/debug"
	"time"
)

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(r.Context(), 5*time.Second, "usage bookkeeping", func(ctx context.Context) error {
//	    return meter.RecordUsage(ctx, accountID, minutes, 1, false)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] PANIC in %s: %v\nStack trace:\n%s",
					taskName, r, string(debug.Stack()))
			}
		}()

		if err := fn(ctx); err != nil {
			// Log error but don't crash. Caller decides if this is critical.
			log.Printf("[SafeGo] Error in %s: %v", taskName, err)
		}
	}()
}
