package index

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
)

// dayBucketFormat is the derived key format for the calendar-day index.
const dayBucketFormat = "2006-01-02"

// Entry is the derived summary of one indexed event. It holds everything
// queries filter on, but not the original record; rebuilds re-read the
// calendar store.
type Entry struct {
	// EventID identifies the source event.
	EventID uuid.UUID

	// StartAt and EndAt are the event's times in UTC.
	StartAt time.Time
	EndAt   time.Time

	// OwnerID is the owning household member.
	OwnerID uuid.UUID

	// Category is the event's category, as stored.
	Category string

	// PriorityRank is the numeric rank of the event's priority.
	PriorityRank int

	// Terms is the precomputed set of lower-cased search terms drawn from
	// the event's title, description, and location.
	Terms map[string]struct{}

	// LastAccessed is when a query last returned this entry.
	LastAccessed time.Time
}

// newEntry derives an index entry from an event.
func newEntry(event *domain.Event) *Entry {
	return &Entry{
		EventID:      event.ID,
		StartAt:      event.StartAt.UTC(),
		EndAt:        event.EndAt.UTC(),
		OwnerID:      event.OwnerID,
		Category:     event.Category,
		PriorityRank: event.Priority.Rank(),
		Terms:        extractTerms(event.Title, event.Description, event.Location),
		LastAccessed: time.Now().UTC(),
	}
}

// dayBucket is the calendar-day key for the entry's start time.
func (e *Entry) dayBucket() string {
	return e.StartAt.Format(dayBucketFormat)
}

// matchesTerm reports whether any of the entry's precomputed terms
// contains the normalized term as a substring.
func (e *Entry) matchesTerm(normalized string) bool {
	for term := range e.Terms {
		if strings.Contains(term, normalized) {
			return true
		}
	}
	return false
}
