// Package subscription implements the Subscription Registry component.
//
// The Registry:
//   - Keeps one ordered handler list per message kind
//   - Returns a revocable *Subscription from every Subscribe call
//   - Hands the Router a snapshot of the handlers for a kind, so handlers
//     may subscribe or unsubscribe while a dispatch is in progress
//
// Holders of a Subscription must call Unsubscribe when they are done
// with it; the Registry never expires entries on its own.
package subscription
