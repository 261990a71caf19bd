package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidPriority is returned when an event priority is not one of
	// the recognized values.
	ErrInvalidPriority = errors.New("invalid event priority")

	// ErrInvalidTimeRange is returned when an event ends before it starts.
	ErrInvalidTimeRange = errors.New("event end time must not precede start time")
)
