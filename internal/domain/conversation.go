package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conversation-specific validation errors
var (
	ErrConversationIDEmpty    = errors.New("conversation ID cannot be empty")
	ErrConversationInputEmpty = errors.New("conversation input cannot be empty")
	ErrConversationModelEmpty = errors.New("conversation model cannot be empty")
)

// Conversation is an immutable log entry of one completed exchange.
type Conversation struct {
	ID            uuid.UUID `json:"id"`
	UserInput     string    `json:"user_input"`
	AgentResponse string    `json:"agent_response"`
	ModelUsed     string    `json:"model_used"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewConversation creates a Conversation record for a completed exchange.
func NewConversation(input, response, model string) (*Conversation, error) {
	c := &Conversation{
		ID:            uuid.New(),
		UserInput:     input,
		AgentResponse: response,
		ModelUsed:     model,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the Conversation has valid data.
func (c *Conversation) Validate() error {
	if c.ID == uuid.Nil {
		return ErrConversationIDEmpty
	}
	if c.UserInput == "" {
		return ErrConversationInputEmpty
	}
	if c.ModelUsed == "" {
		return ErrConversationModelEmpty
	}
	return nil
}

// AgentTaskStatus is the status of an orchestration audit record
type AgentTaskStatus string

// Possible agent task status values
const (
	AgentTaskInProgress AgentTaskStatus = "in_progress"
	AgentTaskCompleted  AgentTaskStatus = "completed"
	AgentTaskFailed     AgentTaskStatus = "failed"
)

// Agent task types
const (
	AgentTaskTypeProcessInput = "process_input"
)

// AgentTask audits one top-level orchestration operation. It is created in
// progress and moved to a terminal status exactly once.
type AgentTask struct {
	ID        uuid.UUID       `json:"id"`
	TaskType  string          `json:"task_type"`
	Status    AgentTaskStatus `json:"status"`
	Result    string          `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewAgentTask creates an in-progress AgentTask of the given type.
func NewAgentTask(taskType string) (*AgentTask, error) {
	if taskType == "" {
		return nil, fmt.Errorf("%w: agent task type", ErrEmptyContent)
	}
	now := time.Now().UTC()
	return &AgentTask{
		ID:        uuid.New(),
		TaskType:  taskType,
		Status:    AgentTaskInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Complete marks the agent task completed with the given result.
func (a *AgentTask) Complete(result string) error {
	return a.finish(AgentTaskCompleted, result)
}

// Fail marks the agent task failed, recording the error message as its result.
func (a *AgentTask) Fail(cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return a.finish(AgentTaskFailed, msg)
}

func (a *AgentTask) finish(status AgentTaskStatus, result string) error {
	if a.Status != AgentTaskInProgress {
		return ErrAgentTaskFinished
	}
	a.Status = status
	a.Result = result
	a.UpdatedAt = time.Now().UTC()
	return nil
}
