package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/store"
)

// Provider implements store.Provider by checking one connection out of the
// pool per acquisition.
type Provider struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProvider creates a Provider over an open pool.
func NewProvider(db *sql.DB, logger *slog.Logger) *Provider {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		db:     db,
		logger: logger.With(slog.String("component", "storage_provider")),
	}
}

var _ store.Provider = (*Provider)(nil)

// Acquire checks out a dedicated connection. The returned release function
// returns it to the pool and is safe to call more than once.
func (p *Provider) Acquire(ctx context.Context) (store.Session, func(), error) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Error("failed to acquire database connection", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("%w: %w", store.ErrSessionUnavailable, err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := conn.Close(); err != nil {
			log.Warn("failed to release database connection", slog.String("error", err.Error()))
		}
	}

	return newSession(conn, conn, p.logger), release, nil
}

// session binds the three stores to one DBTX. beginner is nil for a session
// that already runs inside a transaction.
type session struct {
	tasks         *PostgresTaskStore
	conversations *PostgresConversationStore
	agentTasks    *PostgresAgentTaskStore
	beginner      store.TxBeginner
	logger        *slog.Logger
}

func newSession(db store.DBTX, beginner store.TxBeginner, logger *slog.Logger) *session {
	return &session{
		tasks:         NewPostgresTaskStore(db, logger),
		conversations: NewPostgresConversationStore(db, logger),
		agentTasks:    NewPostgresAgentTaskStore(db, logger),
		beginner:      beginner,
		logger:        logger,
	}
}

func (s *session) Tasks() store.TaskStore                 { return s.tasks }
func (s *session) Conversations() store.ConversationStore { return s.conversations }
func (s *session) AgentTasks() store.AgentTaskStore       { return s.agentTasks }

// WithinTx implements store.Session.WithinTx. Nested calls reuse the
// enclosing transaction.
func (s *session) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, s store.Session) error,
) error {
	if s.beginner == nil {
		return fn(ctx, s)
	}

	return store.RunInTransaction(ctx, s.beginner, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, newSession(tx, nil, s.logger))
	})
}
