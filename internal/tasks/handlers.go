package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/platform/resources"
	"github.com/phrazzld/hearthd/internal/scheduler"
	"github.com/phrazzld/hearthd/internal/store"
)

// ErrInvalidPayload is returned when a task payload fails to decode or
// is missing a required field. Payload errors are permanent; retrying
// the same payload cannot succeed, but the retry policy is the
// scheduler's to apply.
var ErrInvalidPayload = errors.New("invalid task payload")

// Deps carries the collaborators the built-in handlers need.
type Deps struct {
	Store     store.CalendarStore
	Index     *index.EventIndex
	Resources resources.Provider
	Logger    *slog.Logger
}

// RegisterAll registers every built-in handler on the registry.
func RegisterAll(registry *scheduler.HandlerRegistry, deps Deps) error {
	handlers := map[scheduler.TaskType]scheduler.Handler{
		scheduler.TaskTypeIndexOptimization:     NewIndexOptimizationHandler(deps.Index, deps.Store, deps.Logger),
		scheduler.TaskTypeCalendarSync:          NewCalendarSyncHandler(deps.Index, deps.Store, deps.Logger),
		scheduler.TaskTypeReminderDispatch:      NewReminderDispatchHandler(deps.Store, deps.Logger),
		scheduler.TaskTypeDataCleanup:           NewDataCleanupHandler(deps.Index, deps.Store, deps.Logger),
		scheduler.TaskTypePerformanceMonitoring: NewPerformanceMonitoringHandler(deps.Resources, deps.Logger),
		scheduler.TaskTypeFamilyCoordination:    NewFamilyCoordinationHandler(deps.Index, deps.Store, deps.Logger),
	}
	for taskType, handler := range handlers {
		if err := registry.Register(taskType, handler); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", taskType, err)
		}
	}
	return nil
}

// IndexOptimizationHandler runs an index optimize pass and, when the
// pass reports fragmentation above threshold, rebuilds the index from
// the calendar store.
type IndexOptimizationHandler struct {
	index  *index.EventIndex
	store  store.CalendarStore
	logger *slog.Logger
}

// NewIndexOptimizationHandler creates an IndexOptimizationHandler.
func NewIndexOptimizationHandler(idx *index.EventIndex, st store.CalendarStore, logger *slog.Logger) *IndexOptimizationHandler {
	return &IndexOptimizationHandler{index: idx, store: st, logger: logger.With("handler", "index_optimization")}
}

// Execute implements scheduler.Handler.
func (h *IndexOptimizationHandler) Execute(ctx context.Context, task *scheduler.Task) error {
	report := h.index.Optimize()
	if !report.RebuildRequired {
		return nil
	}

	events, err := h.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events for index rebuild: %w", err)
	}
	h.index.Rebuild(events)

	h.logger.Info("index rebuilt after optimize pass",
		"task_id", task.ID,
		"fragmentation", report.Fragmentation,
		"events", len(events))
	return nil
}

// CalendarSyncHandler reconciles the index against the calendar store,
// re-indexing every stored event and dropping indexed events the store
// no longer has.
type CalendarSyncHandler struct {
	index  *index.EventIndex
	store  store.CalendarStore
	logger *slog.Logger
}

// NewCalendarSyncHandler creates a CalendarSyncHandler.
func NewCalendarSyncHandler(idx *index.EventIndex, st store.CalendarStore, logger *slog.Logger) *CalendarSyncHandler {
	return &CalendarSyncHandler{index: idx, store: st, logger: logger.With("handler", "calendar_sync")}
}

// Execute implements scheduler.Handler.
func (h *CalendarSyncHandler) Execute(ctx context.Context, task *scheduler.Task) error {
	events, err := h.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events for sync: %w", err)
	}

	// A full rebuild is simpler than diffing and correct by construction
	// at household scale.
	h.index.Rebuild(events)

	h.logger.Info("calendar sync complete", "task_id", task.ID, "events", len(events))
	return nil
}

// reminderPayload is the payload for reminder_dispatch tasks.
type reminderPayload struct {
	EventID uuid.UUID `json:"event_id"`
}

// ReminderDispatchHandler resolves the event a reminder refers to and
// emits the reminder as a structured log record. Delivery transports
// (push, speaker announcements) subscribe to the log stream.
type ReminderDispatchHandler struct {
	store  store.CalendarStore
	logger *slog.Logger
}

// NewReminderDispatchHandler creates a ReminderDispatchHandler.
func NewReminderDispatchHandler(st store.CalendarStore, logger *slog.Logger) *ReminderDispatchHandler {
	return &ReminderDispatchHandler{store: st, logger: logger.With("handler", "reminder_dispatch")}
}

// Execute implements scheduler.Handler.
func (h *ReminderDispatchHandler) Execute(ctx context.Context, task *scheduler.Task) error {
	var payload reminderPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.EventID == uuid.Nil {
		return fmt.Errorf("%w: event_id is required", ErrInvalidPayload)
	}

	event, err := h.store.GetEvent(ctx, payload.EventID)
	if err != nil {
		// The event may have been deleted after the reminder was queued.
		if errors.Is(err, store.ErrEventNotFound) {
			h.logger.Warn("reminder target no longer exists",
				"task_id", task.ID, "event_id", payload.EventID)
			return nil
		}
		return fmt.Errorf("failed to load reminder target: %w", err)
	}

	h.logger.Info("reminder",
		"task_id", task.ID,
		"event_id", event.ID,
		"owner_id", event.OwnerID,
		"title", event.Title,
		"starts_at", event.StartAt,
		"location", event.Location)
	return nil
}

// cleanupPayload is the payload for data_cleanup tasks. A zero Before
// defaults to 90 days ago.
type cleanupPayload struct {
	Before time.Time `json:"before"`
}

const defaultRetention = 90 * 24 * time.Hour

// DataCleanupHandler deletes events that ended before the cutoff from
// the calendar store and drops them from the index.
type DataCleanupHandler struct {
	index  *index.EventIndex
	store  store.CalendarStore
	logger *slog.Logger
}

// NewDataCleanupHandler creates a DataCleanupHandler.
func NewDataCleanupHandler(idx *index.EventIndex, st store.CalendarStore, logger *slog.Logger) *DataCleanupHandler {
	return &DataCleanupHandler{index: idx, store: st, logger: logger.With("handler", "data_cleanup")}
}

// Execute implements scheduler.Handler.
func (h *DataCleanupHandler) Execute(ctx context.Context, task *scheduler.Task) error {
	var payload cleanupPayload
	if len(task.Payload) > 0 {
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	cutoff := payload.Before
	if cutoff.IsZero() {
		cutoff = time.Now().UTC().Add(-defaultRetention)
	}

	events, err := h.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list events for cleanup: %w", err)
	}

	removed := 0
	for _, event := range events {
		if !event.EndAt.Before(cutoff) {
			continue
		}
		if err := h.store.DeleteEvent(ctx, event.ID); err != nil && !errors.Is(err, store.ErrEventNotFound) {
			return fmt.Errorf("failed to delete expired event %s: %w", event.ID, err)
		}
		h.index.RemoveEvent(event.ID)
		removed++
	}

	h.logger.Info("data cleanup complete",
		"task_id", task.ID, "cutoff", cutoff, "removed", removed)
	return nil
}

// PerformanceMonitoringHandler samples system resources and logs the
// reading. Sustained pressure shows up in the log stream and in the
// scheduler's own admission decisions.
type PerformanceMonitoringHandler struct {
	provider resources.Provider
	logger   *slog.Logger
}

// NewPerformanceMonitoringHandler creates a PerformanceMonitoringHandler.
func NewPerformanceMonitoringHandler(provider resources.Provider, logger *slog.Logger) *PerformanceMonitoringHandler {
	return &PerformanceMonitoringHandler{provider: provider, logger: logger.With("handler", "performance_monitoring")}
}

// Execute implements scheduler.Handler.
func (h *PerformanceMonitoringHandler) Execute(_ context.Context, task *scheduler.Task) error {
	snapshot, err := h.provider.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to sample resources: %w", err)
	}

	h.logger.Info("resource sample",
		"task_id", task.ID,
		"memory_used_bytes", snapshot.MemoryUsedBytes,
		"cpu_percent", snapshot.CPUPercent,
		"network_connections", snapshot.NetworkConnections,
		"disk_io_bytes_per_sec", snapshot.DiskIOBytesPerSec)
	return nil
}

// coordinationPayload is the payload for family_coordination tasks.
type coordinationPayload struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Date    time.Time `json:"date"`
}

// FamilyCoordinationHandler scans one household member's events for a
// day and logs pairs with overlapping times, so the assistant can
// surface scheduling conflicts.
type FamilyCoordinationHandler struct {
	index  *index.EventIndex
	store  store.CalendarStore
	logger *slog.Logger
}

// NewFamilyCoordinationHandler creates a FamilyCoordinationHandler.
func NewFamilyCoordinationHandler(idx *index.EventIndex, st store.CalendarStore, logger *slog.Logger) *FamilyCoordinationHandler {
	return &FamilyCoordinationHandler{index: idx, store: st, logger: logger.With("handler", "family_coordination")}
}

// Execute implements scheduler.Handler.
func (h *FamilyCoordinationHandler) Execute(ctx context.Context, task *scheduler.Task) error {
	var payload coordinationPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner_id is required", ErrInvalidPayload)
	}
	day := payload.Date
	if day.IsZero() {
		day = time.Now().UTC()
	}
	dayStart := day.UTC().Truncate(24 * time.Hour)

	result, err := h.index.Query(index.QueryOptions{
		Owner: payload.OwnerID,
		Start: dayStart,
		End:   dayStart.Add(24 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("failed to query day's events: %w", err)
	}

	events := make([]*domain.Event, 0, len(result.EventIDs))
	for _, id := range result.EventIDs {
		event, err := h.store.GetEvent(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrEventNotFound) {
				continue
			}
			return fmt.Errorf("failed to load event %s: %w", id, err)
		}
		events = append(events, event)
	}

	conflicts := 0
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if events[i].StartAt.Before(events[j].EndAt) && events[j].StartAt.Before(events[i].EndAt) {
				conflicts++
				h.logger.Warn("scheduling conflict",
					"task_id", task.ID,
					"owner_id", payload.OwnerID,
					"first_event", events[i].ID,
					"first_title", events[i].Title,
					"second_event", events[j].ID,
					"second_title", events[j].Title)
			}
		}
	}

	h.logger.Info("family coordination scan complete",
		"task_id", task.ID,
		"owner_id", payload.OwnerID,
		"events", len(events),
		"conflicts", conflicts)
	return nil
}
