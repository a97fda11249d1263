// Package postgres manages the PostgreSQL and Redis connections backing the
// callgate services.
//
// PostgreSQL is the authoritative store for accounts, subscriptions, usage,
// active-call counters, phone numbers, and the processed-event log. Redis backs
// the session store only; it is never consulted on the admission path.
package postgres
