package api

import (
	"time"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/lifecycle"
)

// InputRequest defines the payload for the free-form input endpoint.
type InputRequest struct {
	Input      string                `json:"input"       validate:"required,max=8000"`
	IsGreeting bool                  `json:"is_greeting"`
	TaskID     *int64                `json:"task_id"     validate:"omitempty,gt=0"`
	History    []generation.Exchange `json:"history"     validate:"max=50"`
}

// Context converts the request into a generation context.
func (r InputRequest) Context() generation.Context {
	return generation.Context{
		IsGreeting: r.IsGreeting,
		TaskID:     r.TaskID,
		History:    r.History,
	}
}

// InputResponse defines the successful response of the input endpoint.
type InputResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	FellBack bool   `json:"fell_back"`
}

// TaskResponse is the client view of a task.
type TaskResponse struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Urgency     string     `json:"urgency"`
	Status      string     `json:"status"`
	Category    string     `json:"category,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	AlertAt     *time.Time `json:"alert_at,omitempty"`
}

// SummaryResponse is one presented backlog section.
type SummaryResponse struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// BacklogResponse defines the response of the backlog endpoint.
type BacklogResponse struct {
	Tasks     []TaskResponse    `json:"tasks"`
	Summaries []SummaryResponse `json:"summaries"`
}

// ActionResponse defines the response of the action prompt endpoint.
type ActionResponse struct {
	Task   TaskResponse `json:"task"`
	Prompt string       `json:"prompt"`
}

// DecisionRequest defines the payload for the decision endpoint.
type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=complete remind help skip back"`
}

// DecisionResponse describes the applied decision.
type DecisionResponse struct {
	TaskID   int64      `json:"task_id"`
	Decision string     `json:"decision"`
	Written  bool       `json:"written"`
	Status   string     `json:"status"`
	AlertAt  *time.Time `json:"alert_at,omitempty"`
	Help     string     `json:"help,omitempty"`
}

func taskToResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Description: t.Description,
		Urgency:     string(t.Urgency),
		Status:      string(t.Status),
		Category:    t.Category,
		Deadline:    t.Deadline,
		AlertAt:     t.AlertAt,
	}
}

func resultToResponse(id int64, res lifecycle.Result) DecisionResponse {
	return DecisionResponse{
		TaskID:   id,
		Decision: string(res.Transition.Decision),
		Written:  res.Transition.Write,
		Status:   string(res.Transition.Status),
		AlertAt:  res.Transition.AlertAt,
		Help:     res.Help,
	}
}
