package postgres_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/triage/internal/platform/postgres"
	"github.com/phrazzld/triage/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "tasks",
		ColumnName:     "status",
		ConstraintName: "tasks_status_check",
	}
}

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, r.err }
func (r fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "no rows", err: sql.ErrNoRows, target: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), target: store.ErrNotFound},
		{name: "unique", err: newPgError("23505"), target: store.ErrDuplicate},
		{name: "foreign key", err: newPgError("23503"), target: store.ErrInvalidEntity},
		{name: "check", err: newPgError("23514"), target: store.ErrInvalidEntity},
		{name: "not null", err: newPgError("23502"), target: store.ErrInvalidEntity},
		{name: "unmapped pg code", err: newPgError("40001"), target: nil},
		{name: "plain error", err: plain, target: plain},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := postgres.MapError(tc.err)
			if tc.target == nil {
				assert.Equal(t, tc.err, got)
				return
			}
			assert.ErrorIs(t, got, tc.target)
		})
	}

	assert.NoError(t, postgres.MapError(nil))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, postgres.CheckRowsAffected(fakeResult{rowsAffected: 1}, store.ErrTaskNotFound))
	assert.ErrorIs(t, postgres.CheckRowsAffected(fakeResult{}, store.ErrTaskNotFound), store.ErrTaskNotFound)
	assert.ErrorIs(t, postgres.CheckRowsAffected(fakeResult{}, nil), store.ErrNotFound)

	resultErr := errors.New("driver does not support RowsAffected")
	err := postgres.CheckRowsAffected(fakeResult{err: resultErr}, store.ErrTaskNotFound)
	assert.ErrorIs(t, err, resultErr)

	assert.Error(t, postgres.CheckRowsAffected(nil, store.ErrTaskNotFound))
}
