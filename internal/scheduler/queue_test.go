package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queuedTask(priority Priority, createdAt time.Time) *Task {
	return &Task{
		ID:        uuid.New(),
		Type:      TaskTypeDataCleanup,
		Priority:  priority,
		CreatedAt: createdAt,
	}
}

func TestTaskQueueOrdering(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("priority ascending", func(t *testing.T) {
		q := newTaskQueue()
		low := queuedTask(PriorityLow, base)
		critical := queuedTask(PriorityCritical, base)
		medium := queuedTask(PriorityMedium, base)

		q.push(low)
		q.push(critical)
		q.push(medium)

		assert.Equal(t, critical.ID, q.pop().ID)
		assert.Equal(t, medium.ID, q.pop().ID)
		assert.Equal(t, low.ID, q.pop().ID)
		assert.Nil(t, q.pop())
	})

	t.Run("equal priority breaks ties by creation time", func(t *testing.T) {
		q := newTaskQueue()
		later := queuedTask(PriorityMedium, base.Add(time.Minute))
		earlier := queuedTask(PriorityMedium, base)

		q.push(later)
		q.push(earlier)

		assert.Equal(t, earlier.ID, q.pop().ID)
		assert.Equal(t, later.ID, q.pop().ID)
	})

	t.Run("scheduled time overrides creation time for ordering", func(t *testing.T) {
		q := newTaskQueue()
		deferred := queuedTask(PriorityMedium, base)
		deferred.ScheduledAt = base.Add(time.Hour)
		fresh := queuedTask(PriorityMedium, base.Add(time.Minute))

		q.push(deferred)
		q.push(fresh)

		assert.Equal(t, fresh.ID, q.pop().ID)
		assert.Equal(t, deferred.ID, q.pop().ID)
	})

	t.Run("identical keys preserve insertion order", func(t *testing.T) {
		q := newTaskQueue()
		first := queuedTask(PriorityBackground, base)
		second := queuedTask(PriorityBackground, base)

		q.push(first)
		q.push(second)

		assert.Equal(t, first.ID, q.pop().ID)
		assert.Equal(t, second.ID, q.pop().ID)
	})
}

func TestTaskQueueRemove(t *testing.T) {
	base := time.Now().UTC()
	q := newTaskQueue()
	keep := queuedTask(PriorityHigh, base)
	drop := queuedTask(PriorityMedium, base)
	q.push(keep)
	q.push(drop)

	removed, ok := q.remove(drop.ID)
	require.True(t, ok)
	assert.Equal(t, drop.ID, removed.ID)
	assert.Equal(t, 1, q.len())

	_, ok = q.remove(uuid.New())
	assert.False(t, ok)
}

func TestTaskQueueEvictForInsert(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("prefers most recently queued background task", func(t *testing.T) {
		q := newTaskQueue()
		oldBackground := queuedTask(PriorityBackground, base)
		low := queuedTask(PriorityLow, base.Add(time.Hour))
		newBackground := queuedTask(PriorityBackground, base.Add(-time.Hour))

		q.push(oldBackground)
		q.push(low)
		q.push(newBackground)

		// newBackground was queued last, so it goes first regardless of
		// its older creation time.
		victim := q.evictForInsert()
		assert.Equal(t, newBackground.ID, victim.ID)
		assert.Equal(t, 2, q.len())
	})

	t.Run("falls back to queue tail without background tasks", func(t *testing.T) {
		q := newTaskQueue()
		critical := queuedTask(PriorityCritical, base)
		lowOld := queuedTask(PriorityLow, base)
		lowNew := queuedTask(PriorityLow, base.Add(time.Minute))

		q.push(critical)
		q.push(lowNew)
		q.push(lowOld)

		victim := q.evictForInsert()
		assert.Equal(t, lowNew.ID, victim.ID)
	})

	t.Run("empty queue", func(t *testing.T) {
		q := newTaskQueue()
		assert.Nil(t, q.evictForInsert())
	})
}

func TestTaskQueueDepthByPriority(t *testing.T) {
	base := time.Now().UTC()
	q := newTaskQueue()
	q.push(queuedTask(PriorityCritical, base))
	q.push(queuedTask(PriorityLow, base))
	q.push(queuedTask(PriorityLow, base))

	depth := q.depthByPriority()
	assert.Equal(t, 1, depth[PriorityCritical])
	assert.Equal(t, 2, depth[PriorityLow])
	assert.Zero(t, depth[PriorityBackground])
}
