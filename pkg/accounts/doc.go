// Package accounts manages tenant accounts.
//
// An account is the unit of gating and metering: concurrency limits,
// usage quotas, phone numbers, and subscriptions all hang off an account ID.
// Account IDs are opaque strings and never reused.
//
// The package also exposes a combined state view (subscription, usage,
// active calls, owned numbers) used by test harnesses and the state
// introspection endpoint, and a reset operation that returns an account
// to a pristine state without deleting it.
package accounts
