package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/hearthd/internal/store"
)

func TestMapError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		err := MapError(fmt.Errorf("query failed: %w", sql.ErrNoRows))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: uniqueViolationCode}
		err := MapError(pgErr)
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("check violation maps to invalid entity", func(t *testing.T) {
		pgErr := &pgconn.PgError{
			Code:           checkViolationCode,
			ConstraintName: "calendar_events_priority_check",
		}
		err := MapError(pgErr)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.Contains(t, err.Error(), "calendar_events_priority_check")
	})

	t.Run("not null violation maps to invalid entity", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: notNullViolationCode, ColumnName: "title"}
		assert.ErrorIs(t, MapError(pgErr), store.ErrInvalidEntity)
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		plain := errors.New("connection refused")
		assert.Equal(t, plain, MapError(plain))
	})
}

func TestNewPostgresCalendarStore(t *testing.T) {
	db := &sql.DB{}
	s := NewPostgresCalendarStore(db)
	assert.NotNil(t, s)
}
