package index

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
)

// Query answers a filtered lookup over the indexed events.
//
// The single most selective available filter, in priority order owner >
// category > time range, narrows candidates through its secondary index;
// with no filter set the full primary index is scanned — an accepted cost
// at household scale, not a general-purpose dataset. Remaining filters are
// applied over the candidates, then offset/limit, and the id list is
// cached under the canonical serialization of the options.
//
// Malformed options return an error synchronously; they indicate a caller
// mistake, never transient state.
func (idx *EventIndex) Query(opts QueryOptions) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.SearchTerm = normalizeTerm(opts.SearchTerm)

	key := opts.cacheKey()
	now := time.Now().UTC()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if cached, ok := idx.cache.get(key, now); ok {
		idx.hitRate = (idx.hitRate + 1) / 2
		ids := make([]uuid.UUID, len(cached.ids))
		copy(ids, cached.ids)
		return &Result{
			EventIDs:  ids,
			Total:     cached.total,
			FromCache: true,
			UsedIndex: cached.usedIndex,
		}, nil
	}
	idx.hitRate = idx.hitRate / 2

	candidates, usedIndex := idx.candidates(&opts)

	matched := make([]*Entry, 0, len(candidates))
	for id := range candidates {
		entry, ok := idx.entries[id]
		if !ok {
			idx.logger.Warn("secondary index references unknown event", "event_id", id)
			continue
		}
		if idx.matches(entry, &opts) {
			matched = append(matched, entry)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartAt.Equal(matched[j].StartAt) {
			return matched[i].StartAt.Before(matched[j].StartAt)
		}
		return matched[i].EventID.String() < matched[j].EventID.String()
	})

	total := len(matched)
	page := paginate(matched, opts.Offset, opts.Limit)

	ids := make([]uuid.UUID, 0, len(page))
	for _, entry := range page {
		entry.LastAccessed = now
		ids = append(ids, entry.EventID)
	}

	cachedIDs := make([]uuid.UUID, len(ids))
	copy(cachedIDs, ids)
	idx.cache.put(key, &cacheEntry{
		opts:      opts,
		ids:       cachedIDs,
		total:     total,
		usedIndex: usedIndex,
	}, now)

	return &Result{
		EventIDs:  ids,
		Total:     total,
		FromCache: false,
		UsedIndex: usedIndex,
	}, nil
}

// Search normalizes the term and delegates to Query with it merged into
// the options. A candidate matches when any of its precomputed terms
// contains the normalized term as a substring.
func (idx *EventIndex) Search(term string, opts QueryOptions) (*Result, error) {
	opts.SearchTerm = normalizeTerm(term)
	return idx.Query(opts)
}

// candidates picks the most selective available secondary index and
// returns its id set, or the full entry set when no indexed filter is
// given. Callers hold the lock.
func (idx *EventIndex) candidates(opts *QueryOptions) (idSet, bool) {
	switch {
	case opts.Owner != uuid.Nil:
		return nonNilSet(idx.byOwner[opts.Owner]), true

	case opts.Category != "":
		return nonNilSet(idx.byCategory[opts.Category]), true

	case !opts.Start.IsZero() && !opts.End.IsZero():
		if set, ok := idx.rangeCandidates(opts.Start, opts.End); ok {
			return set, true
		}
	}

	// Full primary scan.
	all := make(idSet, len(idx.entries))
	for id := range idx.entries {
		all[id] = struct{}{}
	}
	return all, false
}

func nonNilSet(set idSet) idSet {
	if set == nil {
		return idSet{}
	}
	return set
}

// rangeCandidates unions the day buckets between start and end. Reports
// false when the range spans too many buckets to be worth walking.
func (idx *EventIndex) rangeCandidates(start, end time.Time) (idSet, bool) {
	first := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Truncate(24 * time.Hour)
	if last.Sub(first) > maxRangeBuckets*24*time.Hour {
		return nil, false
	}

	out := make(idSet)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for id := range idx.byDay[day.Format(dayBucketFormat)] {
			out[id] = struct{}{}
		}
	}
	return out, true
}

// matches applies every set filter to the entry.
func (idx *EventIndex) matches(entry *Entry, opts *QueryOptions) bool {
	if opts.Owner != uuid.Nil && entry.OwnerID != opts.Owner {
		return false
	}
	if opts.Category != "" && entry.Category != opts.Category {
		return false
	}
	if !opts.Start.IsZero() && entry.StartAt.Before(opts.Start) {
		return false
	}
	if !opts.End.IsZero() && entry.StartAt.After(opts.End) {
		return false
	}
	if opts.Priority != "" && entry.PriorityRank != opts.Priority.Rank() {
		return false
	}
	if opts.SearchTerm != "" && !entry.matchesTerm(opts.SearchTerm) {
		return false
	}
	return true
}

func paginate(entries []*Entry, offset, limit int) []*Entry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// Optimize purges expired cache entries and empty secondary-index
// buckets, and recomputes fragmentation from the pre-purge bucket counts.
// When fragmentation exceeds the configured threshold the report requests
// a full rebuild; the caller supplies the original events to Rebuild since
// the index keeps only derived summaries.
func (idx *EventIndex) Optimize() OptimizeReport {
	now := time.Now().UTC()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	expired := idx.cache.purgeExpired(now)

	total := len(idx.byDay) + len(idx.byOwner) + len(idx.byCategory) + len(idx.byTerm)
	purged := 0
	purged += purgeEmpty(idx.byDay)
	purged += purgeEmpty(idx.byOwner)
	purged += purgeEmpty(idx.byCategory)
	purged += purgeEmpty(idx.byTerm)

	fragmentation := 0.0
	if total > 0 {
		fragmentation = float64(purged) / float64(total)
	}
	idx.fragmentation = fragmentation

	report := OptimizeReport{
		ExpiredCacheEntries: expired,
		PurgedBuckets:       purged,
		Fragmentation:       fragmentation,
		RebuildRequired:     fragmentation > idx.cfg.FragmentationThreshold,
	}

	idx.logger.Info("index optimize pass",
		"expired_cache_entries", expired,
		"purged_buckets", purged,
		"fragmentation", fragmentation,
		"rebuild_required", report.RebuildRequired)

	return report
}

func purgeEmpty[K comparable](m map[K]idSet) int {
	purged := 0
	for key, set := range m {
		if len(set) == 0 {
			delete(m, key)
			purged++
		}
	}
	return purged
}

// Rebuild discards every derived structure and re-indexes the given
// events, which the caller re-reads from the calendar store. Events that
// fail validation are skipped with a warning rather than aborting the
// rebuild.
func (idx *EventIndex) Rebuild(events []*domain.Event) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.reset()
	for _, event := range events {
		if err := event.Validate(); err != nil {
			idx.logger.Warn("skipping invalid event during rebuild",
				"event_id", event.ID, "error", err)
			continue
		}
		entry := newEntry(event)
		idx.entries[event.ID] = entry
		idx.addToSecondaries(entry)
	}
	idx.fragmentation = 0
	idx.rebuilds++

	idx.logger.Info("index rebuilt", "entries", len(idx.entries))
}

// Clear drops every entry, secondary index, and cached result.
func (idx *EventIndex) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()
	idx.fragmentation = 0
}

// Stats returns a point-in-time view of index and cache health.
func (idx *EventIndex) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return Stats{
		Entries:            len(idx.entries),
		DayBuckets:         len(idx.byDay),
		OwnerBuckets:       len(idx.byOwner),
		CategoryBuckets:    len(idx.byCategory),
		TermBuckets:        len(idx.byTerm),
		CacheEntries:       len(idx.cache.entries),
		CacheHitRate:       idx.hitRate,
		CacheEvictions:     idx.cache.evictions,
		CacheInvalidations: idx.cache.invalidations,
		Fragmentation:      idx.fragmentation,
		Rebuilds:           idx.rebuilds,
	}
}
