// Package admission gates concurrent calls per account.
//
// The active-call count lives in a single PostgreSQL row per account, and
// admission is a conditional increment: the UPDATE only fires while the
// count is below the limit, so the database serializes racing admits and
// at most limit calls ever hold slots, with no distributed locking.
//
// The limit is read fresh from the subscription on every TryAdmit. Webhook
// driven plan changes therefore take effect for the next call without a
// restart. A canceled or absent subscription falls back to the free-tier
// limit, which defaults to zero.
package admission
