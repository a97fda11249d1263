// Package numbers manages phone numbers owned by accounts.
//
// Numbers are globally unique across accounts and stored in E.164 form.
// The count of numbers an account may own is capped by its subscription's
// number quota. When a request omits the number, one is obtained from an
// Allocator, which stands in for the external numbering provider.
package numbers
