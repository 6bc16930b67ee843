// Package writer persists monitor aggregates to TimescaleDB.
//
// StatsWriter takes a snapshot of the monitor on every flush interval and
// inserts one row per pipeline that changed since the previous flush.
// The table is append-only; rows are never updated.
package writer
