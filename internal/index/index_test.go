package index

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/hearthd/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testIndex(t *testing.T, cfg Config) *EventIndex {
	t.Helper()
	return New(cfg, testLogger())
}

// makeEvent builds a valid event starting at the given offset from a
// fixed base time, so ordering in tests is deterministic.
func makeEvent(t *testing.T, owner uuid.UUID, title, category string, priority domain.EventPriority, startOffset time.Duration) *domain.Event {
	t.Helper()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	event, err := domain.NewEvent(
		owner,
		title,
		"",
		"",
		category,
		priority,
		base.Add(startOffset),
		base.Add(startOffset+time.Hour),
	)
	require.NoError(t, err)
	return event
}

func TestEventIndex_IndexEvent(t *testing.T) {
	t.Run("rejects invalid event", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		err := idx.IndexEvent(&domain.Event{})
		assert.Error(t, err)
		assert.Equal(t, 0, idx.Stats().Entries)
	})

	t.Run("upsert replaces secondary index membership", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		owner := uuid.New()
		event := makeEvent(t, owner, "Dentist appointment", "health", domain.EventPriorityNormal, 0)
		require.NoError(t, idx.IndexEvent(event))

		// Move the event to a different category and re-index.
		event.Category = "family"
		require.NoError(t, idx.IndexEvent(event))

		result, err := idx.Query(QueryOptions{Category: "health"})
		require.NoError(t, err)
		assert.Empty(t, result.EventIDs)

		result, err = idx.Query(QueryOptions{Category: "family"})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{event.ID}, result.EventIDs)
		assert.Equal(t, 1, idx.Stats().Entries)
	})
}

func TestEventIndex_QueryByOwner(t *testing.T) {
	idx := testIndex(t, DefaultConfig())
	alice := uuid.New()
	bob := uuid.New()

	first := makeEvent(t, alice, "School pickup", "family", domain.EventPriorityHigh, 0)
	second := makeEvent(t, alice, "Grocery run", "errands", domain.EventPriorityNormal, 2*time.Hour)
	other := makeEvent(t, bob, "Book club", "social", domain.EventPriorityLow, time.Hour)
	for _, event := range []*domain.Event{first, second, other} {
		require.NoError(t, idx.IndexEvent(event))
	}

	result, err := idx.Query(QueryOptions{Owner: alice})
	require.NoError(t, err)
	assert.True(t, result.UsedIndex)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, result.EventIDs)

	// Removing one of the owner's events must be reflected immediately.
	require.True(t, idx.RemoveEvent(first.ID))

	result, err = idx.Query(QueryOptions{Owner: alice})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, []uuid.UUID{second.ID}, result.EventIDs)
}

func TestEventIndex_QueryFilters(t *testing.T) {
	idx := testIndex(t, DefaultConfig())
	owner := uuid.New()

	urgent := makeEvent(t, owner, "Boiler repair visit", "home", domain.EventPriorityUrgent, 0)
	normal := makeEvent(t, owner, "Piano lesson", "kids", domain.EventPriorityNormal, 24*time.Hour)
	late := makeEvent(t, owner, "Piano recital", "kids", domain.EventPriorityHigh, 21*24*time.Hour)
	for _, event := range []*domain.Event{urgent, normal, late} {
		require.NoError(t, idx.IndexEvent(event))
	}

	t.Run("priority filter is exact", func(t *testing.T) {
		result, err := idx.Query(QueryOptions{Priority: domain.EventPriorityUrgent})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{urgent.ID}, result.EventIDs)
	})

	t.Run("time range bounds start times", func(t *testing.T) {
		start := urgent.StartAt.Add(time.Hour)
		end := start.Add(7 * 24 * time.Hour)
		result, err := idx.Query(QueryOptions{Start: start, End: end})
		require.NoError(t, err)
		assert.True(t, result.UsedIndex)
		assert.Equal(t, []uuid.UUID{normal.ID}, result.EventIDs)
	})

	t.Run("wide range falls back to full scan", func(t *testing.T) {
		start := urgent.StartAt.AddDate(-10, 0, 0)
		end := urgent.StartAt.AddDate(10, 0, 0)
		result, err := idx.Query(QueryOptions{Start: start, End: end})
		require.NoError(t, err)
		assert.False(t, result.UsedIndex)
		assert.Equal(t, 3, result.Total)
	})

	t.Run("combined filters intersect", func(t *testing.T) {
		result, err := idx.Query(QueryOptions{Category: "kids", Priority: domain.EventPriorityHigh})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{late.ID}, result.EventIDs)
	})
}

func TestEventIndex_QueryPagination(t *testing.T) {
	idx := testIndex(t, DefaultConfig())
	owner := uuid.New()

	ids := make([]uuid.UUID, 0, 5)
	for i := 0; i < 5; i++ {
		event := makeEvent(t, owner, "Walk the dog", "chores", domain.EventPriorityLow, time.Duration(i)*time.Hour)
		require.NoError(t, idx.IndexEvent(event))
		ids = append(ids, event.ID)
	}

	result, err := idx.Query(QueryOptions{Owner: owner, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, ids[1:3], result.EventIDs)

	result, err = idx.Query(QueryOptions{Owner: owner, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Empty(t, result.EventIDs)
}

func TestEventIndex_QueryValidation(t *testing.T) {
	idx := testIndex(t, DefaultConfig())

	cases := []struct {
		name string
		opts QueryOptions
		want error
	}{
		{"negative limit", QueryOptions{Limit: -1}, ErrNegativeLimit},
		{"negative offset", QueryOptions{Offset: -1}, ErrNegativeOffset},
		{
			"inverted range",
			QueryOptions{
				Start: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			},
			ErrInvertedRange,
		},
		{"unknown priority", QueryOptions{Priority: "extreme"}, domain.ErrInvalidPriority},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := idx.Query(tc.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidQuery)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEventIndex_Search(t *testing.T) {
	idx := testIndex(t, DefaultConfig())
	owner := uuid.New()

	dentist := makeEvent(t, owner, "Dentist checkup downtown", "health", domain.EventPriorityNormal, 0)
	soccer := makeEvent(t, owner, "Soccer practice", "kids", domain.EventPriorityNormal, time.Hour)
	require.NoError(t, idx.IndexEvent(dentist))
	require.NoError(t, idx.IndexEvent(soccer))

	t.Run("matches substring of a term", func(t *testing.T) {
		result, err := idx.Search("dent", QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{dentist.ID}, result.EventIDs)
	})

	t.Run("case insensitive", func(t *testing.T) {
		result, err := idx.Search("SOCCER", QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{soccer.ID}, result.EventIDs)
	})

	t.Run("no match", func(t *testing.T) {
		result, err := idx.Search("plumber", QueryOptions{})
		require.NoError(t, err)
		assert.Empty(t, result.EventIDs)
	})
}

func TestEventIndex_QueryCache(t *testing.T) {
	t.Run("identical query is served from cache", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		owner := uuid.New()
		event := makeEvent(t, owner, "Vet appointment", "pets", domain.EventPriorityNormal, 0)
		require.NoError(t, idx.IndexEvent(event))

		first, err := idx.Query(QueryOptions{Owner: owner})
		require.NoError(t, err)
		assert.False(t, first.FromCache)

		second, err := idx.Query(QueryOptions{Owner: owner})
		require.NoError(t, err)
		assert.True(t, second.FromCache)
		assert.Equal(t, first.EventIDs, second.EventIDs)
		assert.Equal(t, first.Total, second.Total)
		assert.Equal(t, first.UsedIndex, second.UsedIndex)
	})

	t.Run("upsert invalidates only affected cached queries", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		alice := uuid.New()
		bob := uuid.New()
		require.NoError(t, idx.IndexEvent(makeEvent(t, alice, "Yoga class", "fitness", domain.EventPriorityLow, 0)))
		require.NoError(t, idx.IndexEvent(makeEvent(t, bob, "Team call", "work", domain.EventPriorityNormal, time.Hour)))

		// Warm both owner caches.
		_, err := idx.Query(QueryOptions{Owner: alice})
		require.NoError(t, err)
		_, err = idx.Query(QueryOptions{Owner: bob})
		require.NoError(t, err)

		// A new event for alice invalidates her cached query but not bob's.
		require.NoError(t, idx.IndexEvent(makeEvent(t, alice, "Swim lesson", "fitness", domain.EventPriorityLow, 2*time.Hour)))

		aliceResult, err := idx.Query(QueryOptions{Owner: alice})
		require.NoError(t, err)
		assert.False(t, aliceResult.FromCache)
		assert.Equal(t, 2, aliceResult.Total)

		bobResult, err := idx.Query(QueryOptions{Owner: bob})
		require.NoError(t, err)
		assert.True(t, bobResult.FromCache)
	})

	t.Run("removal clears the whole cache", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		owner := uuid.New()
		keep := makeEvent(t, owner, "Laundry", "chores", domain.EventPriorityLow, 0)
		drop := makeEvent(t, owner, "Vacuuming", "chores", domain.EventPriorityLow, time.Hour)
		require.NoError(t, idx.IndexEvent(keep))
		require.NoError(t, idx.IndexEvent(drop))

		_, err := idx.Query(QueryOptions{Owner: owner})
		require.NoError(t, err)
		require.True(t, idx.RemoveEvent(drop.ID))

		result, err := idx.Query(QueryOptions{Owner: owner})
		require.NoError(t, err)
		assert.False(t, result.FromCache)
		assert.Equal(t, []uuid.UUID{keep.ID}, result.EventIDs)
	})

	t.Run("expired entry is recomputed", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CacheTTL = time.Nanosecond
		idx := testIndex(t, cfg)
		owner := uuid.New()
		require.NoError(t, idx.IndexEvent(makeEvent(t, owner, "Car service", "errands", domain.EventPriorityNormal, 0)))

		_, err := idx.Query(QueryOptions{Owner: owner})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		result, err := idx.Query(QueryOptions{Owner: owner})
		require.NoError(t, err)
		assert.False(t, result.FromCache)
	})

	t.Run("evicts least accessed entry at capacity", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CacheCapacity = 2
		idx := testIndex(t, cfg)
		alice := uuid.New()
		bob := uuid.New()
		carol := uuid.New()
		for _, owner := range []uuid.UUID{alice, bob, carol} {
			require.NoError(t, idx.IndexEvent(makeEvent(t, owner, "Standing reminder", "misc", domain.EventPriorityLow, 0)))
		}

		// Cache alice and bob; hit alice twice so bob is least accessed.
		_, err := idx.Query(QueryOptions{Owner: alice})
		require.NoError(t, err)
		_, err = idx.Query(QueryOptions{Owner: bob})
		require.NoError(t, err)
		_, err = idx.Query(QueryOptions{Owner: alice})
		require.NoError(t, err)
		_, err = idx.Query(QueryOptions{Owner: alice})
		require.NoError(t, err)

		// Caching carol's query must evict bob's entry, not alice's.
		_, err = idx.Query(QueryOptions{Owner: carol})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), idx.Stats().CacheEvictions)

		result, err := idx.Query(QueryOptions{Owner: alice})
		require.NoError(t, err)
		assert.True(t, result.FromCache)

		result, err = idx.Query(QueryOptions{Owner: bob})
		require.NoError(t, err)
		assert.False(t, result.FromCache)
	})
}

func TestEventIndex_RemoveEvent(t *testing.T) {
	t.Run("unknown id reports false", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		assert.False(t, idx.RemoveEvent(uuid.New()))
	})

	t.Run("retains empty buckets until optimize", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		owner := uuid.New()
		event := makeEvent(t, owner, "Recycling drop off", "chores", domain.EventPriorityLow, 0)
		require.NoError(t, idx.IndexEvent(event))
		require.True(t, idx.RemoveEvent(event.ID))

		stats := idx.Stats()
		assert.Equal(t, 0, stats.Entries)
		assert.Equal(t, 1, stats.DayBuckets)
		assert.Equal(t, 1, stats.OwnerBuckets)
		assert.Equal(t, 1, stats.CategoryBuckets)
		assert.NotZero(t, stats.TermBuckets)
	})
}

func TestEventIndex_Optimize(t *testing.T) {
	t.Run("purges empty buckets and reports fragmentation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.FragmentationThreshold = 0.9
		idx := testIndex(t, cfg)
		owner := uuid.New()
		event := makeEvent(t, owner, "Window cleaning", "home", domain.EventPriorityLow, 0)
		require.NoError(t, idx.IndexEvent(event))
		require.True(t, idx.RemoveEvent(event.ID))

		report := idx.Optimize()
		assert.NotZero(t, report.PurgedBuckets)
		assert.Equal(t, 1.0, report.Fragmentation)
		assert.True(t, report.RebuildRequired)

		stats := idx.Stats()
		assert.Zero(t, stats.DayBuckets)
		assert.Zero(t, stats.OwnerBuckets)
		assert.Zero(t, stats.CategoryBuckets)
		assert.Zero(t, stats.TermBuckets)
	})

	t.Run("below threshold does not request rebuild", func(t *testing.T) {
		idx := testIndex(t, DefaultConfig())
		owner := uuid.New()
		require.NoError(t, idx.IndexEvent(makeEvent(t, owner, "Morning jog", "fitness", domain.EventPriorityLow, 0)))

		report := idx.Optimize()
		assert.Zero(t, report.PurgedBuckets)
		assert.Zero(t, report.Fragmentation)
		assert.False(t, report.RebuildRequired)
	})

	t.Run("purges expired cache entries", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CacheTTL = time.Nanosecond
		idx := testIndex(t, cfg)
		owner := uuid.New()
		require.NoError(t, idx.IndexEvent(makeEvent(t, owner, "Garden watering", "home", domain.EventPriorityLow, 0)))
		_, err := idx.Query(QueryOptions{Owner: owner})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		report := idx.Optimize()
		assert.Equal(t, 1, report.ExpiredCacheEntries)
		assert.Zero(t, idx.Stats().CacheEntries)
	})
}

func TestEventIndex_Rebuild(t *testing.T) {
	idx := testIndex(t, DefaultConfig())
	owner := uuid.New()
	stale := makeEvent(t, owner, "Old entry", "misc", domain.EventPriorityLow, 0)
	require.NoError(t, idx.IndexEvent(stale))

	fresh := makeEvent(t, owner, "Fresh entry", "misc", domain.EventPriorityNormal, time.Hour)
	idx.Rebuild([]*domain.Event{fresh, {}})

	stats := idx.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Rebuilds)

	result, err := idx.Query(QueryOptions{Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{fresh.ID}, result.EventIDs)
}

func TestEventIndex_Clear(t *testing.T) {
	idx := testIndex(t, DefaultConfig())
	owner := uuid.New()
	require.NoError(t, idx.IndexEvent(makeEvent(t, owner, "Anything", "misc", domain.EventPriorityLow, 0)))
	_, err := idx.Query(QueryOptions{Owner: owner})
	require.NoError(t, err)

	idx.Clear()

	stats := idx.Stats()
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.DayBuckets)
	assert.Zero(t, stats.CacheEntries)
}

func TestEventIndex_CacheHitRate(t *testing.T) {
	idx := testIndex(t, DefaultConfig())
	owner := uuid.New()
	require.NoError(t, idx.IndexEvent(makeEvent(t, owner, "Rate check", "misc", domain.EventPriorityLow, 0)))

	// Miss halves the rate, a hit pulls it halfway toward one.
	_, err := idx.Query(QueryOptions{Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, 0.0, idx.Stats().CacheHitRate)

	_, err = idx.Query(QueryOptions{Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, 0.5, idx.Stats().CacheHitRate)

	_, err = idx.Query(QueryOptions{Owner: owner})
	require.NoError(t, err)
	assert.Equal(t, 0.75, idx.Stats().CacheHitRate)
}
