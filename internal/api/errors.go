package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/hearthd/internal/domain"
	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/scheduler"
	"github.com/phrazzld/hearthd/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found
	case errors.Is(err, store.ErrEventNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflicts
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, scheduler.ErrAlreadyRunning):
		return http.StatusConflict

	// Bad requests
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, index.ErrInvalidQuery),
		errors.Is(err, scheduler.ErrTaskTypeEmpty),
		errors.Is(err, scheduler.ErrInvalidTaskPriority),
		errors.Is(err, scheduler.ErrInvalidMaxRetries),
		errors.Is(err, scheduler.ErrInvalidTimeout),
		errors.Is(err, scheduler.ErrNoHandler):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error. Internal detail stays in the logs.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrEventNotFound):
		return "Event not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return "Scheduler is already running"

	case errors.Is(err, scheduler.ErrNoHandler):
		return "Unknown task type"

	case errors.Is(err, scheduler.ErrTaskTypeEmpty),
		errors.Is(err, scheduler.ErrInvalidTaskPriority),
		errors.Is(err, scheduler.ErrInvalidMaxRetries),
		errors.Is(err, scheduler.ErrInvalidTimeout):
		return "Invalid task specification"

	case errors.Is(err, index.ErrInvalidQuery):
		return "Invalid query parameters"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidTimeRange),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}
