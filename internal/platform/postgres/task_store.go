package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/store"
)

// PostgresTaskStore implements store.TaskStore using PostgreSQL.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a task store on the given connection or transaction.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*PostgresTaskStore)(nil)

const taskColumns = `id, description, urgency, status, deadline, category, alert_at, result`

// FetchByUrgency implements store.TaskStore.FetchByUrgency.
func (s *PostgresTaskStore) FetchByUrgency(
	ctx context.Context,
	urgency domain.Urgency,
) ([]domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE urgency = $1 ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, string(urgency))
	if err != nil {
		log.Error("failed to query tasks by urgency",
			slog.String("urgency", string(urgency)),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "fetch_by_urgency", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("task", "fetch_by_urgency", "scan failed", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "fetch_by_urgency", "row iteration failed", err)
	}

	log.Debug("fetched tasks by urgency",
		slog.String("urgency", string(urgency)),
		slog.Int("count", len(tasks)))
	return tasks, nil
}

// GetByID implements store.TaskStore.GetByID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	t, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.Int64("task_id", id))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.Int64("task_id", id),
			slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "get", "query failed", MapError(err))
	}

	return t, nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) UpdateStatus(
	ctx context.Context,
	id int64,
	status domain.TaskStatus,
	alertAt *time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.Valid() {
		return fmt.Errorf("%w: %w: %q", store.ErrInvalidEntity, domain.ErrInvalidTaskStatus, status)
	}

	query := `UPDATE tasks SET status = $1, alert_at = $2, updated_at = $3 WHERE id = $4`

	var alert sql.NullTime
	if alertAt != nil {
		alert = sql.NullTime{Time: alertAt.UTC(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, query, string(status), alert, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update task status",
			slog.Int64("task_id", id),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return store.NewStoreError("task", "update_status", "update failed", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrTaskNotFound); err != nil {
		log.Warn("task status update affected no rows", slog.Int64("task_id", id))
		return err
	}

	log.Info("task status updated",
		slog.Int64("task_id", id),
		slog.String("status", string(status)),
		slog.Bool("alert_set", alertAt != nil))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                 domain.Task
		urgency, status   string
		deadline, alertAt sql.NullTime
	)

	if err := row.Scan(
		&t.ID,
		&t.Description,
		&urgency,
		&status,
		&deadline,
		&t.Category,
		&alertAt,
		&t.Result,
	); err != nil {
		return nil, err
	}

	t.Urgency = domain.Urgency(urgency)
	t.Status = domain.TaskStatus(status)
	if deadline.Valid {
		d := deadline.Time.UTC()
		t.Deadline = &d
	}
	if alertAt.Valid {
		a := alertAt.Time.UTC()
		t.AlertAt = &a
	}

	return &t, nil
}
