package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/store"
)

// CreateEventRequest is the payload for creating a calendar event.
type CreateEventRequest struct {
	OwnerID     uuid.UUID `json:"owner_id"    validate:"required"`
	Title       string    `json:"title"       validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	Location    string    `json:"location"    validate:"max=200"`
	Category    string    `json:"category"    validate:"max=100"`
	Priority    string    `json:"priority"    validate:"omitempty,oneof=low normal high urgent"`
	StartAt     time.Time `json:"start_at"    validate:"required"`
	EndAt       time.Time `json:"end_at"      validate:"required"`
}

// UpdateEventRequest is the payload for updating an event. Nil fields are
// left unchanged.
type UpdateEventRequest struct {
	Title       *string    `json:"title"       validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	Location    *string    `json:"location"    validate:"omitempty,max=200"`
	Category    *string    `json:"category"    validate:"omitempty,max=100"`
	Priority    *string    `json:"priority"    validate:"omitempty,oneof=low normal high urgent"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
}

// QueryEventsResponse is the response for event queries and searches.
type QueryEventsResponse struct {
	Events    []*domain.Event `json:"events"`
	Total     int             `json:"total"`
	FromCache bool            `json:"from_cache"`
	UsedIndex bool            `json:"used_index"`
}

// EventHandler handles calendar event HTTP requests. Writes go to the
// store first and are then reflected into the index, so the index can
// always be rebuilt from the store.
type EventHandler struct {
	store  store.CalendarStore
	index  *index.EventIndex
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(st store.CalendarStore, idx *index.EventIndex, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		store:  st,
		index:  idx,
		logger: logger.With(slog.String("component", "event_handler")),
	}
}

// CreateEvent handles POST /events.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	priority := domain.EventPriority(req.Priority)
	if priority == "" {
		priority = domain.EventPriorityNormal
	}

	event, err := domain.NewEvent(
		req.OwnerID,
		req.Title,
		req.Description,
		req.Location,
		req.Category,
		priority,
		req.StartAt,
		req.EndAt,
	)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	if err := h.store.SaveEvent(r.Context(), event); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}
	if err := h.index.IndexEvent(event); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	h.logger.Debug("event created", "event_id", event.ID, "owner_id", event.OwnerID)
	respondWithJSON(w, http.StatusCreated, event)
}

// GetEvent handles GET /events/{id}.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /events/{id}.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	var req UpdateEventRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	event, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.Category != nil {
		event.Category = *req.Category
	}
	if req.Priority != nil {
		event.Priority = domain.EventPriority(*req.Priority)
	}
	if req.StartAt != nil {
		event.StartAt = req.StartAt.UTC()
	}
	if req.EndAt != nil {
		event.EndAt = req.EndAt.UTC()
	}
	event.UpdatedAt = time.Now().UTC()

	if err := event.Validate(); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}
	if err := h.store.SaveEvent(r.Context(), event); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}
	if err := h.index.IndexEvent(event); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	h.logger.Debug("event updated", "event_id", event.ID)
	respondWithJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}.
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	if err := h.store.DeleteEvent(r.Context(), id); err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}
	h.index.RemoveEvent(id)

	h.logger.Debug("event deleted", "event_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// QueryEvents handles GET /events.
func (h *EventHandler) QueryEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	result, err := h.index.Query(opts)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}
	h.respondWithResult(w, r, result)
}

// SearchEvents handles GET /events/search.
func (h *EventHandler) SearchEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := parseQueryOptions(r)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}

	result, err := h.index.Search(r.URL.Query().Get("q"), opts)
	if err != nil {
		respondWithMappedError(w, r, h.logger, err)
		return
	}
	h.respondWithResult(w, r, result)
}

// respondWithResult hydrates the result's event ids from the store.
// Events deleted between index read and store read are skipped.
func (h *EventHandler) respondWithResult(w http.ResponseWriter, r *http.Request, result *index.Result) {
	events := make([]*domain.Event, 0, len(result.EventIDs))
	for _, id := range result.EventIDs {
		event, err := h.store.GetEvent(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrEventNotFound) {
				h.logger.Debug("indexed event missing from store", "event_id", id)
				continue
			}
			respondWithMappedError(w, r, h.logger, err)
			return
		}
		events = append(events, event)
	}

	respondWithJSON(w, http.StatusOK, QueryEventsResponse{
		Events:    events,
		Total:     result.Total,
		FromCache: result.FromCache,
		UsedIndex: result.UsedIndex,
	})
}

// parseQueryOptions builds index query options from URL parameters.
func parseQueryOptions(r *http.Request) (index.QueryOptions, error) {
	var opts index.QueryOptions
	params := r.URL.Query()

	if raw := params.Get("owner"); raw != "" {
		owner, err := uuid.Parse(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: owner has invalid format", domain.ErrInvalidID)
		}
		opts.Owner = owner
	}
	opts.Category = params.Get("category")
	opts.Priority = domain.EventPriority(params.Get("priority"))

	for name, dst := range map[string]*time.Time{"start": &opts.Start, "end": &opts.End} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, fmt.Errorf("%w: %s must be RFC 3339", index.ErrInvalidQuery, name)
		}
		*dst = parsed
	}

	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := params.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: %s must be an integer", index.ErrInvalidQuery, name)
		}
		*dst = parsed
	}

	return opts, nil
}
