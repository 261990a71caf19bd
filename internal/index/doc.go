// Package index implements the event index and query cache: a primary map
// of derived event summaries, four secondary lookup structures (calendar
// day, owner, category, search term), and a bounded, invalidation-aware
// cache of recent query results.
//
// The index is a rebuildable derived structure, not a system of record.
// The external calendar store owns the authoritative events; when
// fragmentation from removals grows past a threshold, an optimize pass
// requests a full rebuild from re-presented store records.
//
// All mutations are synchronous with the call and serialized against both
// other writers and readers; partial updates across the four secondary
// indexes are never observable.
package index
