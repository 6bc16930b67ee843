// Package reconnect decides whether and when a dropped connection is
// retried.
//
// The delay before retry n (counting from zero) is BaseDelay * 2^n. After
// MaxAttempts scheduled retries the Policy reports exhaustion and the
// caller is expected to give up until an explicit reconnect.
package reconnect
