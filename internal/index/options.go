package index

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/hearthd/internal/domain"
)

// Query validation errors. These indicate caller mistakes and are returned
// synchronously; they never reflect transient index state.
var (
	// ErrInvalidQuery is the base error wrapped by all option validation failures.
	ErrInvalidQuery = errors.New("invalid query options")

	// ErrNegativeLimit is returned when a query's limit is negative.
	ErrNegativeLimit = errors.New("limit cannot be negative")

	// ErrNegativeOffset is returned when a query's offset is negative.
	ErrNegativeOffset = errors.New("offset cannot be negative")

	// ErrInvertedRange is returned when a query's end precedes its start.
	ErrInvertedRange = errors.New("time range end precedes start")
)

// QueryOptions are the filters for a query. Zero values mean "unset":
// a Nil owner, empty category/search term, zero times, and empty priority
// apply no filter; a zero limit returns all matches.
type QueryOptions struct {
	// Owner filters to events owned by this household member.
	Owner uuid.UUID

	// Category filters to events in this category.
	Category string

	// Start and End bound the start time of matching events.
	Start time.Time
	End   time.Time

	// Priority filters to events with exactly this priority.
	Priority domain.EventPriority

	// SearchTerm filters to events whose precomputed terms contain it as
	// a substring after normalization.
	SearchTerm string

	// Limit and Offset paginate the result id list.
	Limit  int
	Offset int
}

// Validate checks the options for caller errors.
func (o *QueryOptions) Validate() error {
	if o.Limit < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrNegativeLimit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrNegativeOffset)
	}
	if !o.Start.IsZero() && !o.End.IsZero() && o.End.Before(o.Start) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrInvertedRange)
	}
	if o.Priority != "" && !o.Priority.IsValid() {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, domain.ErrInvalidPriority)
	}
	return nil
}

// cacheKey is the canonical serialization of the options, used as the
// query cache key. Field order is fixed so equal options always produce
// the same key.
func (o *QueryOptions) cacheKey() string {
	var b strings.Builder
	b.WriteString("owner=")
	if o.Owner != uuid.Nil {
		b.WriteString(o.Owner.String())
	}
	b.WriteString("|category=")
	b.WriteString(o.Category)
	b.WriteString("|start=")
	if !o.Start.IsZero() {
		b.WriteString(strconv.FormatInt(o.Start.UTC().UnixNano(), 10))
	}
	b.WriteString("|end=")
	if !o.End.IsZero() {
		b.WriteString(strconv.FormatInt(o.End.UTC().UnixNano(), 10))
	}
	b.WriteString("|priority=")
	b.WriteString(string(o.Priority))
	b.WriteString("|term=")
	b.WriteString(normalizeTerm(o.SearchTerm))
	b.WriteString("|limit=")
	b.WriteString(strconv.Itoa(o.Limit))
	b.WriteString("|offset=")
	b.WriteString(strconv.Itoa(o.Offset))
	return b.String()
}

// couldMatch reports whether the entry could affect a result cached under
// these options: true unless some set filter definitively excludes it.
// Used for selective cache invalidation on upsert.
func (o *QueryOptions) couldMatch(entry *Entry) bool {
	if o.Owner != uuid.Nil && o.Owner != entry.OwnerID {
		return false
	}
	if o.Category != "" && o.Category != entry.Category {
		return false
	}
	if !o.Start.IsZero() && entry.StartAt.Before(o.Start) {
		return false
	}
	if !o.End.IsZero() && entry.StartAt.After(o.End) {
		return false
	}
	return true
}
