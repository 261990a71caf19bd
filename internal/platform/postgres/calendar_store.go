package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
	"github.com/phrazzld/hearthd/internal/platform/logger"
	"github.com/phrazzld/hearthd/internal/store"
)

// PostgresCalendarStore implements the store.CalendarStore interface using
// PostgreSQL.
type PostgresCalendarStore struct {
	db store.DBTX
}

// NewPostgresCalendarStore creates a new PostgresCalendarStore.
func NewPostgresCalendarStore(db store.DBTX) *PostgresCalendarStore {
	return &PostgresCalendarStore{db: db}
}

// SaveEvent inserts or updates an event.
func (s *PostgresCalendarStore) SaveEvent(ctx context.Context, event *domain.Event) error {
	log := logger.FromContext(ctx)

	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO calendar_events
			(id, owner_id, title, description, location, category, priority,
			 start_at, end_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			category = EXCLUDED.category,
			priority = EXCLUDED.priority,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.OwnerID,
		event.Title,
		event.Description,
		event.Location,
		event.Category,
		string(event.Priority),
		event.StartAt,
		event.EndAt,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save event",
			"event_id", event.ID,
			"error", err)
		return fmt.Errorf("failed to save event: %w", MapError(err))
	}

	return nil
}

// GetEvent retrieves an event by id.
// Returns store.ErrEventNotFound if no event exists with the id.
func (s *PostgresCalendarStore) GetEvent(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Event, error) {
	query := `
		SELECT id, owner_id, title, description, location, category, priority,
		       start_at, end_at, created_at, updated_at
		FROM calendar_events
		WHERE id = $1
	`

	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", MapError(err))
	}
	return event, nil
}

// DeleteEvent removes an event by id.
// Returns store.ErrEventNotFound if no event exists with the id.
func (s *PostgresCalendarStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", MapError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return store.ErrEventNotFound
	}
	return nil
}

// ListEvents returns every stored event, oldest start first.
func (s *PostgresCalendarStore) ListEvents(ctx context.Context) ([]*domain.Event, error) {
	query := `
		SELECT id, owner_id, title, description, location, category, priority,
		       start_at, end_at, created_at, updated_at
		FROM calendar_events
		ORDER BY start_at
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}

	return events, nil
}

// rowScanner matches both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var priority string

	err := row.Scan(
		&event.ID,
		&event.OwnerID,
		&event.Title,
		&event.Description,
		&event.Location,
		&event.Category,
		&priority,
		&event.StartAt,
		&event.EndAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Priority = domain.EventPriority(priority)
	return &event, nil
}
