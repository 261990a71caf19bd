package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
)

// CalendarStore is the authoritative store of calendar events.
// The event index derives its lookup structures from events presented to
// it, and re-reads this store in full when a rebuild is required.
type CalendarStore interface {
	// SaveEvent inserts or updates an event.
	SaveEvent(ctx context.Context, event *domain.Event) error

	// GetEvent retrieves an event by id.
	// Returns ErrEventNotFound if no event exists with the id.
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)

	// DeleteEvent removes an event by id.
	// Returns ErrEventNotFound if no event exists with the id.
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	// ListEvents returns every stored event. The result feeds index
	// rebuilds; household-scale event counts keep this cheap.
	ListEvents(ctx context.Context) ([]*domain.Event, error)
}
