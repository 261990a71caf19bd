// Package api provides the HTTP handlers for the service: calendar event
// CRUD and queries backed by the store and event index, task submission
// and cancellation on the scheduler, and the operational status and
// maintenance endpoints.
package api
