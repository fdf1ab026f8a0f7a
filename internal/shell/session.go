package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/lifecycle"
	"github.com/phrazzld/triage/internal/orchestrator"
	"github.com/phrazzld/triage/internal/redact"
	"github.com/phrazzld/triage/internal/router"
)

// Orchestrator is the subset of *orchestrator.Orchestrator the shell drives.
type Orchestrator interface {
	ProcessTasks(ctx context.Context) ([]domain.Task, error)
	ProcessSelectedTask(ctx context.Context, id int64, in lifecycle.DecisionReader) (lifecycle.Result, error)
	ProcessInput(ctx context.Context, input string, c generation.Context) (router.Answer, error)
}

var _ Orchestrator = (*orchestrator.Orchestrator)(nil)

// Reader supplies lines and decisions. *Console implements it.
type Reader interface {
	lifecycle.DecisionReader
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Session runs the interactive task review.
type Session struct {
	orch   Orchestrator
	in     Reader
	out    *Presenter
	logger *slog.Logger
}

// NewSession creates a Session.
func NewSession(orch Orchestrator, in Reader, out *Presenter, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{orch: orch, in: in, out: out, logger: log.With(slog.String("component", "shell"))}
}

// RunTasks summarizes the backlog and lets the operator select tasks by ID
// until they quit. Quitting and end of input return nil.
func (s *Session) RunTasks(ctx context.Context) error {
	backlog, err := s.orch.ProcessTasks(ctx)
	if err != nil {
		return err
	}
	if len(backlog) == 0 {
		return nil
	}

	s.out.Present(ctx, "Tasks", listTasks(backlog))

	for {
		line, err := s.in.ReadLine(ctx, "task id (q to quit)> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "q", "quit", "exit":
			return nil
		case "list", "ls":
			s.out.Present(ctx, "Tasks", listTasks(backlog))
			continue
		}

		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil || id <= 0 {
			s.out.Error(fmt.Sprintf("%q is not a task id.", line))
			continue
		}

		_, err = s.orch.ProcessSelectedTask(ctx, id, s.in)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, orchestrator.ErrTaskNotFound):
			s.out.Error(fmt.Sprintf("Task %d not found.", id))
		default:
			s.logger.Error("task processing failed",
				slog.Int64("task_id", id),
				slog.String("error", redact.Error(err)))
			s.out.Error(redact.Error(err))
		}
	}
}

// Ask answers one free-form input.
func (s *Session) Ask(ctx context.Context, input string) error {
	answer, err := s.orch.ProcessInput(ctx, input, generation.Context{})
	if err != nil {
		return err
	}
	s.out.Present(ctx, "", answer.Text)
	return nil
}

func listTasks(tasks []domain.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "%4d  %-9s %-15s %s\n", t.ID, t.Urgency, t.Status, t.Description)
	}
	return b.String()
}
