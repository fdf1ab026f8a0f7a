// Package lifecycle applies operator decisions to a selected task.
//
// Decide is the pure transition table. Loop drives it interactively: it
// reads decisions until a recognized one arrives, performs at most one status
// write, and for "help" asks the default backend to break the task down.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/metrics"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/redact"
	"github.com/phrazzld/triage/internal/store"
)

// DefaultReminderDelay is how far ahead "remind" schedules the alert.
const DefaultReminderDelay = 24 * time.Hour

// Transition is the effect of one decision on one task.
type Transition struct {
	Decision domain.Decision

	// Write reports whether the task's status and alert time are persisted.
	Write   bool
	Status  domain.TaskStatus
	AlertAt *time.Time

	// Help requests a decomposition from the default backend after the write.
	Help bool

	// Err is set for a decision outside the five recognized ones.
	Err error
}

// Decide returns the transition for decision on task at now. "complete"
// always writes (completed, nil), whatever the current status, so a failed
// task can still be closed.
func Decide(task domain.Task, decision domain.Decision, now time.Time, reminderDelay time.Duration) Transition {
	tr := Transition{Decision: decision, Status: task.Status, AlertAt: task.AlertAt}

	switch decision {
	case domain.DecisionComplete:
		tr.Write = true
		tr.Status = domain.TaskStatusCompleted
		tr.AlertAt = nil

	case domain.DecisionRemind:
		at := now.Add(reminderDelay)
		tr.Write = true
		tr.AlertAt = &at

	case domain.DecisionHelp:
		at := now
		tr.Write = true
		tr.Status = domain.TaskStatusHalfCompleted
		tr.AlertAt = &at
		tr.Help = true

	case domain.DecisionSkip, domain.DecisionBack:

	default:
		tr.Err = fmt.Errorf("%w: %q", domain.ErrUnknownDecision, decision)
	}

	return tr
}

// HelpPrompt is the input sent to the default backend for a "help" decision.
func HelpPrompt(description string) string {
	return "Help me break down this task: " + description
}

// DecisionReader supplies raw operator input, one decision per call.
type DecisionReader interface {
	ReadDecision(ctx context.Context) (string, error)
}

// Presenter shows text to the operator. Heading may be empty.
type Presenter interface {
	Present(ctx context.Context, heading, body string)
}

// Result describes how a Run ended.
type Result struct {
	Transition Transition

	// Help is the backend's breakdown for a "help" decision.
	Help string
}

// Loop runs the decision loop for one task at a time.
type Loop struct {
	helper        generation.Backend
	reminderDelay time.Duration
	now           func() time.Time
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// Option customizes a Loop.
type Option func(*Loop)

// WithReminderDelay overrides DefaultReminderDelay.
func WithReminderDelay(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.reminderDelay = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithMetrics counts applied decisions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// New creates a Loop that asks helper for task breakdowns.
func New(helper generation.Backend, log *slog.Logger, opts ...Option) *Loop {
	if log == nil {
		log = slog.Default()
	}

	l := &Loop{
		helper:        helper,
		reminderDelay: DefaultReminderDelay,
		now:           time.Now,
		logger:        log.With(slog.String("component", "lifecycle")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run reads decisions for task until a recognized one arrives and applies it
// through tasks. Unrecognized input is reported and re-prompted without any
// write. Reader errors, including io.EOF, end the loop and are returned.
func (l *Loop) Run(ctx context.Context, task domain.Task, tasks store.TaskStore, in DecisionReader, out Presenter) (Result, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(slog.Int64("task_id", task.ID))

	for {
		raw, err := in.ReadDecision(ctx)
		if err != nil {
			return Result{}, err
		}

		decision, err := domain.ParseDecision(raw)
		if err != nil {
			log.Debug("unrecognized decision", slog.String("input", raw))
			out.Present(ctx, "", fmt.Sprintf("Unrecognized choice %q. Choose one of: %s.",
				strings.TrimSpace(raw), choices()))
			continue
		}

		return l.Apply(ctx, task, decision, tasks, out)
	}
}

// Apply performs one recognized decision on task.
func (l *Loop) Apply(ctx context.Context, task domain.Task, decision domain.Decision, tasks store.TaskStore, out Presenter) (Result, error) {
	log := logger.FromContextOrDefault(ctx, l.logger).With(
		slog.Int64("task_id", task.ID),
		slog.String("decision", string(decision)),
	)

	tr := Decide(task, decision, l.now().UTC(), l.reminderDelay)
	if tr.Err != nil {
		return Result{Transition: tr}, tr.Err
	}

	l.metrics.IncDecision(string(decision))
	res := Result{Transition: tr}

	if tr.Write {
		if err := tasks.UpdateStatus(ctx, task.ID, tr.Status, tr.AlertAt); err != nil {
			log.Error("failed to update task status", slog.String("error", redact.Error(err)))
			return res, fmt.Errorf("update task %d: %w", task.ID, err)
		}
		log.Info("task status updated", slog.String("status", string(tr.Status)))
	}

	switch decision {
	case domain.DecisionComplete:
		out.Present(ctx, "", fmt.Sprintf("Task %d marked as completed.", task.ID))
	case domain.DecisionRemind:
		out.Present(ctx, "", fmt.Sprintf("Reminder set for task %d at %s.",
			task.ID, tr.AlertAt.Format(time.RFC3339)))
	case domain.DecisionSkip:
		out.Present(ctx, "", fmt.Sprintf("Skipped task %d.", task.ID))
	}

	if !tr.Help {
		return res, nil
	}

	id := task.ID
	help, err := generation.Collect(l.helper.Process(ctx, HelpPrompt(task.Description),
		generation.Context{TaskID: &id}))
	if err != nil {
		log.Error("help request failed", slog.String("error", redact.Error(err)))
		return res, fmt.Errorf("help for task %d: %w", task.ID, err)
	}

	res.Help = help
	out.Present(ctx, fmt.Sprintf("Breakdown for task %d", task.ID), help)
	return res, nil
}

func choices() string {
	names := make([]string, 0, len(domain.Decisions()))
	for _, d := range domain.Decisions() {
		names = append(names, string(d))
	}
	return strings.Join(names, ", ")
}
