// Package memstore provides in-memory store implementations, used in tests
// and when hearthd runs without a database URL configured. Contents are
// lost on restart.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
	"github.com/phrazzld/hearthd/internal/store"
)

// CalendarStore is a mutex-guarded in-memory store.CalendarStore.
type CalendarStore struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*domain.Event
}

// NewCalendarStore creates an empty in-memory calendar store.
func NewCalendarStore() *CalendarStore {
	return &CalendarStore{events: make(map[uuid.UUID]*domain.Event)}
}

// SaveEvent inserts or updates an event.
func (s *CalendarStore) SaveEvent(_ context.Context, event *domain.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.events[event.ID] = &copied
	return nil
}

// GetEvent retrieves an event by id.
func (s *CalendarStore) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, store.ErrEventNotFound
	}
	copied := *event
	return &copied, nil
}

// DeleteEvent removes an event by id.
func (s *CalendarStore) DeleteEvent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return store.ErrEventNotFound
	}
	delete(s.events, id)
	return nil
}

// ListEvents returns a copy of every stored event.
func (s *CalendarStore) ListEvents(_ context.Context) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*domain.Event, 0, len(s.events))
	for _, event := range s.events {
		copied := *event
		events = append(events, &copied)
	}
	return events, nil
}
