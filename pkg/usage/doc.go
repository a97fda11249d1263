// Package usage accumulates consumed minutes and call counts per account.
//
// Usage is partitioned into a trial bucket (pre-subscription consumption)
// and a paid bucket. Totals are monotonically non-decreasing within a
// billing cycle; they reset only when the cycle rolls over or the account
// is explicitly reset. RecordUsage never clamps or rejects, because it
// reflects calls that already happened; quota enforcement is a policy
// decision made before admission, not here.
package usage
