package index

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
)

// maxRangeBuckets bounds the day-bucket walk for time-range candidate
// selection; wider ranges fall back to a full scan instead of iterating
// years of empty buckets.
const maxRangeBuckets = 1000

// Config holds the index's cache and maintenance settings.
type Config struct {
	// CacheCapacity bounds the query result cache.
	CacheCapacity int

	// CacheTTL is how long a cached result may be served.
	CacheTTL time.Duration

	// FragmentationThreshold is the empty-bucket ratio above which an
	// optimize pass requests a full rebuild.
	FragmentationThreshold float64
}

// DefaultConfig returns a Config sized for a household's event set.
func DefaultConfig() Config {
	return Config{
		CacheCapacity:          64,
		CacheTTL:               5 * time.Minute,
		FragmentationThreshold: 0.3,
	}
}

// Stats is a point-in-time view of index and cache health.
type Stats struct {
	Entries         int `json:"entries"`
	DayBuckets      int `json:"day_buckets"`
	OwnerBuckets    int `json:"owner_buckets"`
	CategoryBuckets int `json:"category_buckets"`
	TermBuckets     int `json:"term_buckets"`
	CacheEntries    int `json:"cache_entries"`

	// CacheHitRate is the recursive blend (old+1)/2 on hit, old/2 on
	// miss. It converges toward 1 under sustained hits rather than
	// reporting a windowed ratio; an imprecise but long-standing metric,
	// kept with those semantics.
	CacheHitRate float64 `json:"cache_hit_rate"`

	CacheEvictions     uint64  `json:"cache_evictions"`
	CacheInvalidations uint64  `json:"cache_invalidations"`
	Fragmentation      float64 `json:"fragmentation"`
	Rebuilds           uint64  `json:"rebuilds"`
}

// Result is the outcome of one query.
type Result struct {
	// EventIDs is the page of matching event ids, ordered by start time.
	EventIDs []uuid.UUID `json:"event_ids"`

	// Total is the number of matches before offset/limit were applied.
	Total int `json:"total"`

	// FromCache reports whether the id list was served from the query cache.
	FromCache bool `json:"from_cache"`

	// UsedIndex reports whether a secondary index narrowed the candidate
	// set, as opposed to a full primary scan.
	UsedIndex bool `json:"used_index"`
}

// OptimizeReport summarizes one optimize pass.
type OptimizeReport struct {
	// ExpiredCacheEntries is how many cached results were past their TTL.
	ExpiredCacheEntries int `json:"expired_cache_entries"`

	// PurgedBuckets is how many empty secondary-index buckets were reclaimed.
	PurgedBuckets int `json:"purged_buckets"`

	// Fragmentation is the empty-to-total bucket ratio before the purge.
	Fragmentation float64 `json:"fragmentation"`

	// RebuildRequired is set when fragmentation exceeded the threshold.
	// The caller must re-present the original events from the calendar
	// store via Rebuild; the index keeps only derived summaries.
	RebuildRequired bool `json:"rebuild_required"`
}

// idSet is one secondary-index bucket.
type idSet map[uuid.UUID]struct{}

// EventIndex answers time/owner/category/text-filtered queries over a
// bounded event set. See the package documentation for the consistency
// and locking model.
type EventIndex struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.RWMutex
	entries    map[uuid.UUID]*Entry
	byDay      map[string]idSet
	byOwner    map[uuid.UUID]idSet
	byCategory map[string]idSet
	byTerm     map[string]idSet
	cache      *queryCache

	hitRate       float64
	fragmentation float64
	rebuilds      uint64
}

// New creates an empty EventIndex.
func New(cfg Config, logger *slog.Logger) *EventIndex {
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = DefaultConfig().CacheCapacity
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if cfg.FragmentationThreshold <= 0 {
		cfg.FragmentationThreshold = DefaultConfig().FragmentationThreshold
	}

	idx := &EventIndex{
		cfg:    cfg,
		logger: logger.With("component", "event_index"),
	}
	idx.reset()
	return idx
}

// reset reinitializes every structure. Callers hold the write lock.
func (idx *EventIndex) reset() {
	idx.entries = make(map[uuid.UUID]*Entry)
	idx.byDay = make(map[string]idSet)
	idx.byOwner = make(map[uuid.UUID]idSet)
	idx.byCategory = make(map[string]idSet)
	idx.byTerm = make(map[string]idSet)
	idx.cache = newQueryCache(idx.cfg.CacheCapacity, idx.cfg.CacheTTL)
}

// IndexEvent derives an entry from the event and inserts it into the
// primary and all four secondary indexes, replacing any previous entry for
// the same id. Cached results the event could affect are invalidated.
func (idx *EventIndex) IndexEvent(event *domain.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("cannot index invalid event: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	// On update, strip the old entry from the secondaries first but keep
	// the primary until the overwrite below, so no reader gap exists
	// where the id is entirely unknown.
	if existing, ok := idx.entries[event.ID]; ok {
		idx.removeFromSecondaries(existing)
		idx.cache.invalidateFor(existing)
	}

	entry := newEntry(event)
	idx.entries[event.ID] = entry
	idx.addToSecondaries(entry)
	idx.cache.invalidateFor(entry)

	return nil
}

// RemoveEvent deletes the entry and strips its id from all four secondary
// indexes, then clears the whole query cache — cheaper than selective
// invalidation and acceptable at household event churn. Reports whether an
// entry existed. A missing secondary reference is logged and skipped,
// never fatal.
func (idx *EventIndex) RemoveEvent(id uuid.UUID) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry, ok := idx.entries[id]
	if !ok {
		idx.logger.Warn("remove requested for unindexed event", "event_id", id)
		return false
	}

	idx.removeFromSecondaries(entry)
	delete(idx.entries, id)
	idx.cache.clear()
	return true
}

// addToSecondaries inserts the entry's id under each derived key.
// Callers hold the write lock.
func (idx *EventIndex) addToSecondaries(entry *Entry) {
	addID(idx.byDay, entry.dayBucket(), entry.EventID)
	addID(idx.byOwner, entry.OwnerID, entry.EventID)
	addID(idx.byCategory, entry.Category, entry.EventID)
	for term := range entry.Terms {
		addID(idx.byTerm, term, entry.EventID)
	}
}

// removeFromSecondaries strips the entry's id from each derived key.
// Emptied buckets are kept; the optimize pass reclaims them and tracks
// the resulting fragmentation. Callers hold the write lock.
func (idx *EventIndex) removeFromSecondaries(entry *Entry) {
	dropID(idx.byDay, entry.dayBucket(), entry.EventID, idx.logger)
	dropID(idx.byOwner, entry.OwnerID, entry.EventID, idx.logger)
	dropID(idx.byCategory, entry.Category, entry.EventID, idx.logger)
	for term := range entry.Terms {
		dropID(idx.byTerm, term, entry.EventID, idx.logger)
	}
}

func addID[K comparable](m map[K]idSet, key K, id uuid.UUID) {
	set, ok := m[key]
	if !ok {
		set = make(idSet)
		m[key] = set
	}
	set[id] = struct{}{}
}

// dropID removes id from the bucket under key. A missing bucket or id is
// an index consistency warning: logged, never fatal.
func dropID[K comparable](m map[K]idSet, key K, id uuid.UUID, log *slog.Logger) {
	set, ok := m[key]
	if !ok {
		log.Warn("secondary index bucket missing during removal",
			"bucket_key", fmt.Sprint(key), "event_id", id)
		return
	}
	if _, ok := set[id]; !ok {
		log.Warn("secondary index entry missing during removal",
			"bucket_key", fmt.Sprint(key), "event_id", id)
		return
	}
	delete(set, id)
}
