// Package calls orchestrates the lifecycle of a simulated call.
//
// A call moves through requested, admitted, active, and one of the
// terminal states completed, failed, or rejected. The controller is thin
// glue over the admission controller and the usage meter: it reserves a
// concurrency slot before a call goes active and guarantees that every
// terminal transition releases the slot and records consumed usage exactly
// once, regardless of how the call ended.
//
// Calls that go active and never reach a terminal state (the caller
// disconnected without telling us) are reclaimed by the Reaper, which
// forces them to failed through the same single-winner terminal transition
// used by normal completion, so the two paths cannot double-release or
// double-record.
package calls
