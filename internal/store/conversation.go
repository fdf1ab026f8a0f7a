package store

import (
	"context"

	"github.com/phrazzld/triage/internal/domain"
)

// ConversationStore persists answered inputs. Records are append-only.
type ConversationStore interface {
	Create(ctx context.Context, c *domain.Conversation) error
}

// AgentTaskStore persists the bookkeeping record of each input-processing run.
type AgentTaskStore interface {
	// Create inserts a new agent task.
	Create(ctx context.Context, t *domain.AgentTask) error

	// Update writes the status, result and updated_at of an existing agent task.
	// Returns ErrAgentTaskNotFound if the record does not exist.
	Update(ctx context.Context, t *domain.AgentTask) error
}
