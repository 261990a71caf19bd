// Package postgres provides PostgreSQL-backed implementations of the store
// interfaces. Errors from the driver are mapped onto the store package's
// sentinel errors so callers never depend on driver-specific error types.
package postgres
