// Package auth issues and resolves bearer session tokens.
//
// Sessions live in Redis with a TTL and map an opaque token to an account
// ID. They authenticate the control API only; the admission path never
// touches Redis, so a Redis outage degrades login, not call gating.
package auth
