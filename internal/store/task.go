package store

import (
	"context"
	"time"

	"github.com/phrazzld/triage/internal/domain"
)

// TaskStore defines the interface for task persistence.
// Tasks are produced elsewhere; this application only reads them and updates
// their status and alert time.
type TaskStore interface {
	// FetchByUrgency returns all tasks of the given urgency tier ordered by ID.
	// An empty tier yields an empty slice and no error.
	FetchByUrgency(ctx context.Context, urgency domain.Urgency) ([]domain.Task, error)

	// GetByID retrieves a task by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// UpdateStatus sets the status and alert time of a task in one write.
	// A nil alertAt clears the alert.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus, alertAt *time.Time) error
}
