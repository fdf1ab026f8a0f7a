package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/store"
)

// PostgresConversationStore implements store.ConversationStore.
type PostgresConversationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresConversationStore creates a conversation store on the given connection or transaction.
func NewPostgresConversationStore(db store.DBTX, logger *slog.Logger) *PostgresConversationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresConversationStore{
		db:     db,
		logger: logger.With(slog.String("component", "conversation_store")),
	}
}

var _ store.ConversationStore = (*PostgresConversationStore)(nil)

// Create implements store.ConversationStore.Create.
func (s *PostgresConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := c.Validate(); err != nil {
		log.Warn("conversation validation failed during create",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO conversations (id, user_input, agent_response, model_used, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.UserInput,
		c.AgentResponse,
		c.ModelUsed,
		c.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create conversation",
			slog.String("conversation_id", c.ID.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("conversation", "create", "insert failed", MapError(err))
	}

	log.Debug("conversation recorded",
		slog.String("conversation_id", c.ID.String()),
		slog.String("model_used", c.ModelUsed))
	return nil
}
