package tasks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/hearthd/internal/domain"
	"github.com/phrazzld/hearthd/internal/index"
	"github.com/phrazzld/hearthd/internal/platform/resources"
	"github.com/phrazzld/hearthd/internal/scheduler"
	"github.com/phrazzld/hearthd/internal/store"
	"github.com/phrazzld/hearthd/internal/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeps(t *testing.T) Deps {
	t.Helper()
	return Deps{
		Store:     memstore.NewCalendarStore(),
		Index:     index.New(index.DefaultConfig(), testLogger()),
		Resources: resources.NewStaticProvider(resources.Snapshot{}),
		Logger:    testLogger(),
	}
}

func seedEvent(t *testing.T, st store.CalendarStore, owner uuid.UUID, title string, startAt, endAt time.Time) *domain.Event {
	t.Helper()
	event, err := domain.NewEvent(owner, title, "", "", "family", domain.EventPriorityNormal, startAt, endAt)
	require.NoError(t, err)
	require.NoError(t, st.SaveEvent(context.Background(), event))
	return event
}

func taskFor(t *testing.T, taskType scheduler.TaskType, payload any) *scheduler.Task {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = data
	}
	return &scheduler.Task{
		ID:      uuid.New(),
		Type:    taskType,
		Payload: raw,
	}
}

func TestRegisterAll(t *testing.T) {
	registry := scheduler.NewHandlerRegistry()
	require.NoError(t, RegisterAll(registry, testDeps(t)))

	for _, taskType := range []scheduler.TaskType{
		scheduler.TaskTypeCalendarSync,
		scheduler.TaskTypeReminderDispatch,
		scheduler.TaskTypeIndexOptimization,
		scheduler.TaskTypeDataCleanup,
		scheduler.TaskTypePerformanceMonitoring,
		scheduler.TaskTypeFamilyCoordination,
	} {
		_, err := registry.Lookup(taskType)
		assert.NoError(t, err, taskType)
	}

	assert.Error(t, RegisterAll(registry, testDeps(t)))
}

func TestCalendarSyncHandler(t *testing.T) {
	deps := testDeps(t)
	owner := uuid.New()
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	event := seedEvent(t, deps.Store, owner, "Parent evening", base, base.Add(time.Hour))

	handler := NewCalendarSyncHandler(deps.Index, deps.Store, deps.Logger)
	require.NoError(t, handler.Execute(context.Background(), taskFor(t, scheduler.TaskTypeCalendarSync, nil)))

	result, err := deps.Index.Query(index.QueryOptions{Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{event.ID}, result.EventIDs)
}

func TestIndexOptimizationHandler(t *testing.T) {
	t.Run("rebuilds from store when fragmented", func(t *testing.T) {
		deps := testDeps(t)
		cfg := index.DefaultConfig()
		cfg.FragmentationThreshold = 0.1
		deps.Index = index.New(cfg, testLogger())

		owner := uuid.New()
		base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
		kept := seedEvent(t, deps.Store, owner, "Standing meeting", base, base.Add(time.Hour))

		// Index an event that no longer exists anywhere else, then remove
		// it so the index is left fully fragmented.
		stray, err := domain.NewEvent(uuid.New(), "Stray entry", "", "", "misc", domain.EventPriorityLow, base, base.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, deps.Index.IndexEvent(stray))
		require.True(t, deps.Index.RemoveEvent(stray.ID))

		handler := NewIndexOptimizationHandler(deps.Index, deps.Store, deps.Logger)
		require.NoError(t, handler.Execute(context.Background(), taskFor(t, scheduler.TaskTypeIndexOptimization, nil)))

		assert.Equal(t, uint64(1), deps.Index.Stats().Rebuilds)
		result, err := deps.Index.Query(index.QueryOptions{Owner: owner})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{kept.ID}, result.EventIDs)
	})

	t.Run("skips rebuild on healthy index", func(t *testing.T) {
		deps := testDeps(t)
		handler := NewIndexOptimizationHandler(deps.Index, deps.Store, deps.Logger)
		require.NoError(t, handler.Execute(context.Background(), taskFor(t, scheduler.TaskTypeIndexOptimization, nil)))
		assert.Zero(t, deps.Index.Stats().Rebuilds)
	})
}

func TestReminderDispatchHandler(t *testing.T) {
	deps := testDeps(t)
	handler := NewReminderDispatchHandler(deps.Store, deps.Logger)

	t.Run("dispatches for existing event", func(t *testing.T) {
		base := time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC)
		event := seedEvent(t, deps.Store, uuid.New(), "Dentist", base, base.Add(time.Hour))
		task := taskFor(t, scheduler.TaskTypeReminderDispatch, map[string]any{"event_id": event.ID})
		assert.NoError(t, handler.Execute(context.Background(), task))
	})

	t.Run("deleted target is not an error", func(t *testing.T) {
		task := taskFor(t, scheduler.TaskTypeReminderDispatch, map[string]any{"event_id": uuid.New()})
		assert.NoError(t, handler.Execute(context.Background(), task))
	})

	t.Run("missing event id rejected", func(t *testing.T) {
		task := taskFor(t, scheduler.TaskTypeReminderDispatch, map[string]any{})
		err := handler.Execute(context.Background(), task)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		task := taskFor(t, scheduler.TaskTypeReminderDispatch, nil)
		task.Payload = json.RawMessage(`{`)
		err := handler.Execute(context.Background(), task)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestDataCleanupHandler(t *testing.T) {
	deps := testDeps(t)
	owner := uuid.New()
	cutoff := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)

	old := seedEvent(t, deps.Store, owner, "Past trip", cutoff.Add(-48*time.Hour), cutoff.Add(-24*time.Hour))
	current := seedEvent(t, deps.Store, owner, "Upcoming trip", cutoff.Add(24*time.Hour), cutoff.Add(48*time.Hour))
	require.NoError(t, deps.Index.IndexEvent(old))
	require.NoError(t, deps.Index.IndexEvent(current))

	handler := NewDataCleanupHandler(deps.Index, deps.Store, deps.Logger)
	task := taskFor(t, scheduler.TaskTypeDataCleanup, map[string]any{"before": cutoff})
	require.NoError(t, handler.Execute(context.Background(), task))

	_, err := deps.Store.GetEvent(context.Background(), old.ID)
	assert.ErrorIs(t, err, store.ErrEventNotFound)
	_, err = deps.Store.GetEvent(context.Background(), current.ID)
	assert.NoError(t, err)

	result, err := deps.Index.Query(index.QueryOptions{Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{current.ID}, result.EventIDs)
}

func TestPerformanceMonitoringHandler(t *testing.T) {
	deps := testDeps(t)
	handler := NewPerformanceMonitoringHandler(deps.Resources, deps.Logger)

	assert.NoError(t, handler.Execute(context.Background(), taskFor(t, scheduler.TaskTypePerformanceMonitoring, nil)))

	provider := resources.NewStaticProvider(resources.Snapshot{})
	provider.SetError(assert.AnError)
	failing := NewPerformanceMonitoringHandler(provider, deps.Logger)
	assert.Error(t, failing.Execute(context.Background(), taskFor(t, scheduler.TaskTypePerformanceMonitoring, nil)))
}

func TestFamilyCoordinationHandler(t *testing.T) {
	deps := testDeps(t)
	owner := uuid.New()
	day := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)

	first := seedEvent(t, deps.Store, owner, "Soccer match", day.Add(10*time.Hour), day.Add(12*time.Hour))
	overlapping := seedEvent(t, deps.Store, owner, "Birthday party", day.Add(11*time.Hour), day.Add(13*time.Hour))
	separate := seedEvent(t, deps.Store, owner, "Dinner", day.Add(18*time.Hour), day.Add(19*time.Hour))
	for _, event := range []*domain.Event{first, overlapping, separate} {
		require.NoError(t, deps.Index.IndexEvent(event))
	}

	handler := NewFamilyCoordinationHandler(deps.Index, deps.Store, deps.Logger)

	t.Run("scans the owner's day", func(t *testing.T) {
		task := taskFor(t, scheduler.TaskTypeFamilyCoordination, map[string]any{
			"owner_id": owner,
			"date":     day,
		})
		assert.NoError(t, handler.Execute(context.Background(), task))
	})

	t.Run("missing owner rejected", func(t *testing.T) {
		task := taskFor(t, scheduler.TaskTypeFamilyCoordination, map[string]any{})
		err := handler.Execute(context.Background(), task)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}
