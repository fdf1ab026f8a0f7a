package postgres

import (
	"context"
	"log/slog"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/store"
)

// PostgresAgentTaskStore implements store.AgentTaskStore.
type PostgresAgentTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAgentTaskStore creates an agent task store on the given connection or transaction.
func NewPostgresAgentTaskStore(db store.DBTX, logger *slog.Logger) *PostgresAgentTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAgentTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "agent_task_store")),
	}
}

var _ store.AgentTaskStore = (*PostgresAgentTaskStore)(nil)

// Create implements store.AgentTaskStore.Create.
func (s *PostgresAgentTaskStore) Create(ctx context.Context, t *domain.AgentTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO agent_tasks (id, task_type, status, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.TaskType,
		string(t.Status),
		t.Result,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create agent task",
			slog.String("agent_task_id", t.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("agent_task", "create", "insert failed", MapError(err))
	}

	return nil
}

// Update implements store.AgentTaskStore.Update.
// Returns store.ErrAgentTaskNotFound if the record does not exist.
func (s *PostgresAgentTaskStore) Update(ctx context.Context, t *domain.AgentTask) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `UPDATE agent_tasks SET status = $1, result = $2, updated_at = $3 WHERE id = $4`

	result, err := s.db.ExecContext(ctx, query, string(t.Status), t.Result, t.UpdatedAt, t.ID)
	if err != nil {
		log.Error("failed to update agent task",
			slog.String("agent_task_id", t.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("agent_task", "update", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrAgentTaskNotFound); err != nil {
		log.Warn("agent task update affected no rows", slog.String("agent_task_id", t.ID.String()))
		return err
	}

	log.Debug("agent task updated",
		slog.String("agent_task_id", t.ID.String()),
		slog.String("status", string(t.Status)))
	return nil
}
