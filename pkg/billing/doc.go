// Package billing owns subscription state and reconciles it from
// payment-provider webhook events.
//
// # Subscription State Machine
//
// Subscription.status moves through a small state machine driven entirely
// by webhook events:
//
//	none     --checkout.completed-->         active
//	active   --subscription.updated-->       active   (quota fields replaced)
//	active   --subscription.deleted-->       canceled
//	active   --invoice.payment_failed-->     past_due
//	past_due --invoice.payment_succeeded-->  active
//
// Any event that does not match a legal transition for the current status is
// accepted, recorded in the processed-event log, and ignored. Providers
// deliver events out of order and duplicated, so the table must converge to
// the correct final status under any arrival order.
//
// # Idempotency
//
// Every event carries a unique identifier. The processor records the
// identifier and applies the state mutation in one transaction: no event is
// marked processed without its effect being durable, and no effect is durable
// without its event being marked processed. A replayed identifier returns
// Ignored(already_processed) without touching state.
//
// # Plan Catalog
//
// Plans (concurrency limit, minute quota, phone-number quota) come from a
// built-in catalog, optionally overridden by a YAML file that is hot-reloaded
// on change. Checkout completion is the sole path by which a plan's limits
// become effective for admission and number allocation.
package billing
