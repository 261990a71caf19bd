// Package tasks implements the built-in background task handlers that
// the scheduler dispatches to: index maintenance, calendar
// reconciliation, reminder dispatch, data cleanup, performance
// monitoring, and family coordination. RegisterAll wires them into a
// scheduler handler registry.
package tasks
