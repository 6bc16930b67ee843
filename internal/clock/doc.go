// Package clock abstracts timers so reconnect scheduling and periodic
// flushing can be driven deterministically in tests.
//
// Production code takes Real(); tests take Fake() and move time forward
// with Advance. AfterFunc callbacks registered on a fake clock run
// synchronously inside Advance, in deadline order.
package clock
