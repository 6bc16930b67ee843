// Package database provides the TimescaleDB connection pool used by the
// recorder to persist pipeline aggregates.
package database
