package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event-specific validation errors
var (
	// ErrEventIDEmpty is returned when an event ID is empty or nil.
	ErrEventIDEmpty = errors.New("event ID cannot be empty")

	// ErrEventOwnerIDEmpty is returned when an event's owner ID is empty or nil.
	ErrEventOwnerIDEmpty = errors.New("event owner ID cannot be empty")

	// ErrEventTitleEmpty is returned when an event's title is empty.
	ErrEventTitleEmpty = errors.New("event title cannot be empty")
)

// EventPriority describes how important a calendar event is to the
// household. It maps to a numeric rank for index filtering and sorting.
type EventPriority string

// Recognized event priority values, from least to most important.
const (
	EventPriorityLow    EventPriority = "low"
	EventPriorityNormal EventPriority = "normal"
	EventPriorityHigh   EventPriority = "high"
	EventPriorityUrgent EventPriority = "urgent"
)

// Rank returns the numeric rank of the priority, higher means more
// important. Unknown priorities rank 0.
func (p EventPriority) Rank() int {
	switch p {
	case EventPriorityLow:
		return 1
	case EventPriorityNormal:
		return 2
	case EventPriorityHigh:
		return 3
	case EventPriorityUrgent:
		return 4
	default:
		return 0
	}
}

// IsValid reports whether the priority is one of the recognized values.
func (p EventPriority) IsValid() bool {
	return p.Rank() > 0
}

// Event represents a calendar-like record owned by a household member.
// The external calendar store is the system of record for events; the
// index only keeps derived summaries and can always be rebuilt from
// stored events.
type Event struct {
	ID          uuid.UUID     `json:"id"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Category    string        `json:"category"`
	Priority    EventPriority `json:"priority"`
	StartAt     time.Time     `json:"start_at"`
	EndAt       time.Time     `json:"end_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// NewEvent creates a new Event with a generated ID and creation timestamps.
// Returns an error if validation fails.
func NewEvent(
	ownerID uuid.UUID,
	title, description, location, category string,
	priority EventPriority,
	startAt, endAt time.Time,
) (*Event, error) {
	now := time.Now().UTC()
	event := &Event{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Location:    location,
		Category:    category,
		Priority:    priority,
		StartAt:     startAt,
		EndAt:       endAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	return event, nil
}

// Validate checks if the Event has valid data.
// Returns an error if any field fails validation.
func (e *Event) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEventIDEmpty
	}

	if e.OwnerID == uuid.Nil {
		return ErrEventOwnerIDEmpty
	}

	if e.Title == "" {
		return ErrEventTitleEmpty
	}

	if !e.Priority.IsValid() {
		return ErrInvalidPriority
	}

	if e.EndAt.Before(e.StartAt) {
		return ErrInvalidTimeRange
	}

	return nil
}
