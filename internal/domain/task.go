package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a user task
type TaskStatus string

// Possible task status values
const (
	TaskStatusNew           TaskStatus = "new"
	TaskStatusInProgress    TaskStatus = "in_progress"
	TaskStatusCompleted     TaskStatus = "completed"
	TaskStatusFailed        TaskStatus = "failed"
	TaskStatusHalfCompleted TaskStatus = "half-completed"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusHalfCompleted:
		return true
	default:
		return false
	}
}

// Urgency is the ordinal tier tasks are grouped by for prioritized surfacing.
type Urgency string

// Default urgency tiers, highest priority first.
const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// DefaultUrgencyOrder is the tier order used when none is configured.
func DefaultUrgencyOrder() []Urgency {
	return []Urgency{UrgencyCritical, UrgencyHigh, UrgencyMedium, UrgencyLow}
}

// Task represents a unit of work tracked across runs. Tasks are created by an
// external producer; this application reads them and mutates only their status
// and alert time.
type Task struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Urgency     Urgency    `json:"urgency"`
	Status      TaskStatus `json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Category    string     `json:"category,omitempty"`
	AlertAt     *time.Time `json:"alert_at,omitempty"`
	Result      string     `json:"result,omitempty"`
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("%w: task ID must be positive", ErrInvalidID)
	}

	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: task description", ErrEmptyContent)
	}

	if strings.TrimSpace(string(t.Urgency)) == "" {
		return ErrInvalidUrgency
	}

	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskStatus, t.Status)
	}

	return nil
}

// String returns the task's serialized textual form. The batcher uses its
// length as a size proxy, so the field order must stay stable.
func (t Task) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{id: %d, description: %q, urgency: %s, status: %s",
		t.ID, t.Description, t.Urgency, t.Status)
	if t.Deadline != nil {
		fmt.Fprintf(&b, ", deadline: %s", t.Deadline.UTC().Format(time.RFC3339))
	}
	if t.Category != "" {
		fmt.Fprintf(&b, ", category: %q", t.Category)
	}
	if t.AlertAt != nil {
		fmt.Fprintf(&b, ", alert_at: %s", t.AlertAt.UTC().Format(time.RFC3339))
	}
	b.WriteString("}")
	return b.String()
}

// TaskSnapshot is the read-only view of a task handed to a backend when it is
// asked for an action prompt.
type TaskSnapshot struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Urgency     Urgency `json:"urgency"`
	Deadline    *string `json:"deadline"`
	Category    string  `json:"category,omitempty"`
	Status      string  `json:"status"`
}

// Snapshot builds a TaskSnapshot. The deadline is rendered as RFC 3339 or
// left nil when the task has none.
func (t Task) Snapshot() TaskSnapshot {
	s := TaskSnapshot{
		ID:          t.ID,
		Description: t.Description,
		Urgency:     t.Urgency,
		Category:    t.Category,
		Status:      string(t.Status),
	}
	if t.Deadline != nil {
		d := t.Deadline.UTC().Format(time.RFC3339)
		s.Deadline = &d
	}
	return s
}
