// Package async provides panic-safe goroutine helpers.
//
// Fire-and-forget work (metric increments, non-critical bookkeeping) should go
// through SafeGo rather than a bare `go func()` so that panics are recovered
// and logged and the work respects a timeout.
package async
