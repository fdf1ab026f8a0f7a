//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/store"
	"github.com/phrazzld/triage/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db := testdb.GetTestDBWithT(t)
	require.NoError(t, Migrate(context.Background(), db, "up", discardLogger()))
	return db
}

// withTestSession runs fn inside a transaction that is always rolled back.
func withTestSession(t *testing.T, fn func(ctx context.Context, tx *sql.Tx, s store.Session)) {
	t.Helper()

	testdb.WithTx(t, openTestDB(t), func(t *testing.T, tx *sql.Tx) {
		fn(context.Background(), tx, newSession(tx, nil, discardLogger()))
	})
}

func insertTask(t *testing.T, ctx context.Context, tx *sql.Tx, desc, urgency, status string) int64 {
	t.Helper()

	var id int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO tasks (description, urgency, status) VALUES ($1, $2, $3) RETURNING id`,
		desc, urgency, status).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestTaskStoreIntegration(t *testing.T) {
	withTestSession(t, func(ctx context.Context, tx *sql.Tx, s store.Session) {
		first := insertTask(t, ctx, tx, "call the plumber", "high", "new")
		second := insertTask(t, ctx, tx, "renew passport", "high", "half-completed")
		insertTask(t, ctx, tx, "water plants", "low", "new")

		tasks, err := s.Tasks().FetchByUrgency(ctx, domain.UrgencyHigh)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, first, tasks[0].ID)
		assert.Equal(t, second, tasks[1].ID)
		assert.Equal(t, domain.TaskStatusHalfCompleted, tasks[1].Status)

		none, err := s.Tasks().FetchByUrgency(ctx, domain.UrgencyCritical)
		require.NoError(t, err)
		assert.Empty(t, none)

		alert := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
		require.NoError(t, s.Tasks().UpdateStatus(ctx, first, domain.TaskStatusNew, &alert))

		got, err := s.Tasks().GetByID(ctx, first)
		require.NoError(t, err)
		require.NotNil(t, got.AlertAt)
		assert.True(t, alert.Equal(*got.AlertAt))

		require.NoError(t, s.Tasks().UpdateStatus(ctx, first, domain.TaskStatusCompleted, nil))
		got, err = s.Tasks().GetByID(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusCompleted, got.Status)
		assert.Nil(t, got.AlertAt)

		_, err = s.Tasks().GetByID(ctx, 999_999_999)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		err = s.Tasks().UpdateStatus(ctx, 999_999_999, domain.TaskStatusCompleted, nil)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestConversationAndAgentTaskIntegration(t *testing.T) {
	withTestSession(t, func(ctx context.Context, _ *sql.Tx, s store.Session) {
		at, err := domain.NewAgentTask(domain.AgentTaskTypeProcessInput)
		require.NoError(t, err)
		require.NoError(t, s.AgentTasks().Create(ctx, at))

		conv, err := domain.NewConversation("hello", "hi there", "gpt-4")
		require.NoError(t, err)
		require.NoError(t, s.Conversations().Create(ctx, conv))

		require.NoError(t, at.Complete("hi there"))
		require.NoError(t, s.AgentTasks().Update(ctx, at))

		missing, err := domain.NewAgentTask(domain.AgentTaskTypeProcessInput)
		require.NoError(t, err)
		assert.ErrorIs(t, s.AgentTasks().Update(ctx, missing), store.ErrAgentTaskNotFound)
	})
}

func TestProviderAcquireRelease(t *testing.T) {
	db := openTestDB(t)
	p := NewProvider(db, discardLogger())

	s, release, err := p.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()
	assert.NotNil(t, s.Tasks())
}
