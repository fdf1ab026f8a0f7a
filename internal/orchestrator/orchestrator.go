// Package orchestrator ties storage, batching, routing and the task lifecycle
// into the three top-level operations a shell or API drives.
//
// Every operation acquires a storage session on entry and releases it on
// every exit path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/triage/internal/batch"
	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/lifecycle"
	"github.com/phrazzld/triage/internal/metrics"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/redact"
	"github.com/phrazzld/triage/internal/router"
	"github.com/phrazzld/triage/internal/store"
)

// ErrTaskNotFound is returned when a selected task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// NoTasksMessage is presented when the backlog is empty.
const NoTasksMessage = "No tasks available."

// OperationError describes a failed orchestration operation.
type OperationError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError creates a new OperationError.
func NewOperationError(operation, message string, err error) *OperationError {
	return &OperationError{Operation: operation, Message: message, Err: err}
}

type presenterKey struct{}

// WithPresenter returns a context whose operations present to p instead of
// the orchestrator's presenter.
func WithPresenter(ctx context.Context, p lifecycle.Presenter) context.Context {
	return context.WithValue(ctx, presenterKey{}, p)
}

// PresenterFromContext returns the presenter installed by WithPresenter.
func PresenterFromContext(ctx context.Context) (lifecycle.Presenter, bool) {
	p, ok := ctx.Value(presenterKey{}).(lifecycle.Presenter)
	return p, ok && p != nil
}

func (o *Orchestrator) presenterFor(ctx context.Context) lifecycle.Presenter {
	if p, ok := PresenterFromContext(ctx); ok {
		return p
	}
	return o.presenter
}

// defaultBackend is what the orchestrator needs from the default backend
// beyond answering input.
type defaultBackend interface {
	generation.Backend
	generation.Summarizer
	generation.ActionPrompter
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Provider  store.Provider
	Router    *router.Router
	Batcher   *batch.Batcher
	Lifecycle *lifecycle.Loop
	Presenter lifecycle.Presenter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Options tune backlog loading.
type Options struct {
	// UrgencyOrder lists tiers from highest to lowest priority.
	UrgencyOrder []domain.Urgency

	// PriorityTier is the tier whose half-completed tasks are surfaced twice.
	PriorityTier domain.Urgency
}

// DefaultOptions returns the default tier order with "high" as priority tier.
func DefaultOptions() Options {
	return Options{UrgencyOrder: domain.DefaultUrgencyOrder(), PriorityTier: domain.UrgencyHigh}
}

// Orchestrator runs backlog summaries, task selection and free-form input.
type Orchestrator struct {
	provider  store.Provider
	router    *router.Router
	backend   defaultBackend
	batcher   *batch.Batcher
	lifecycle *lifecycle.Loop
	presenter lifecycle.Presenter
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an Orchestrator. It returns an error if a required dependency
// is missing or the router's default backend cannot summarize tasks and
// generate action prompts.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Provider == nil {
		return nil, fmt.Errorf("%w: provider cannot be nil", domain.ErrValidation)
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("%w: router cannot be nil", domain.ErrValidation)
	}
	if deps.Presenter == nil {
		return nil, fmt.Errorf("%w: presenter cannot be nil", domain.ErrValidation)
	}
	if len(opts.UrgencyOrder) == 0 {
		return nil, fmt.Errorf("%w: urgency order cannot be empty", domain.ErrValidation)
	}

	def, ok := deps.Router.Default().(defaultBackend)
	if !ok {
		return nil, fmt.Errorf("%w: default backend %s: %w",
			domain.ErrValidation, deps.Router.Default().Name(), generation.ErrUnsupported)
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	batcher := deps.Batcher
	if batcher == nil {
		batcher = batch.New(10, 4000, nil)
	}

	loop := deps.Lifecycle
	if loop == nil {
		loop = lifecycle.New(def, log, lifecycle.WithMetrics(deps.Metrics))
	}

	return &Orchestrator{
		provider:  deps.Provider,
		router:    deps.Router,
		backend:   def,
		batcher:   batcher,
		lifecycle: loop,
		presenter: deps.Presenter,
		opts:      opts,
		metrics:   deps.Metrics,
		logger:    log.With(slog.String("component", "orchestrator")),
	}, nil
}

// LoadBacklog fetches every tier in priority order. Half-completed tasks of
// the priority tier are appended a second time right after that tier.
func (o *Orchestrator) LoadBacklog(ctx context.Context, tasks store.TaskStore) ([]domain.Task, error) {
	var backlog []domain.Task

	for _, tier := range o.opts.UrgencyOrder {
		fetched, err := tasks.FetchByUrgency(ctx, tier)
		if err != nil {
			return nil, fmt.Errorf("fetch %s tasks: %w", tier, err)
		}
		backlog = append(backlog, fetched...)

		if tier != o.opts.PriorityTier {
			continue
		}
		// NOTE: this surfaces the same task twice in one run and may be
		// unintended. Do not deduplicate without changing callers that rely on it.
		for _, t := range fetched {
			if t.Status == domain.TaskStatusHalfCompleted {
				backlog = append(backlog, t)
			}
		}
	}

	return backlog, nil
}

// ProcessTasks loads the backlog, presents one summary per batch in backlog
// order and returns the unbatched backlog for selection. An empty backlog is
// reported and returned as an empty, non-nil slice.
func (o *Orchestrator) ProcessTasks(ctx context.Context) ([]domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, o.logger)

	session, release, err := o.provider.Acquire(ctx)
	if err != nil {
		return nil, NewOperationError("process tasks", "failed to acquire storage", err)
	}
	defer release()

	backlog, err := o.LoadBacklog(ctx, session.Tasks())
	if err != nil {
		log.Error("failed to load backlog", slog.String("error", redact.Error(err)))
		return nil, NewOperationError("process tasks", "failed to load backlog", err)
	}

	if len(backlog) == 0 {
		log.Info("backlog is empty")
		o.presenterFor(ctx).Present(ctx, "", NoTasksMessage)
		return []domain.Task{}, nil
	}

	batches := o.batcher.Split(backlog)
	log.Info("summarizing backlog",
		slog.Int("task_count", len(backlog)),
		slog.Int("batch_count", len(batches)))

	for i, b := range batches {
		o.metrics.ObserveBatchSize(len(b))

		summary, err := generation.Collect(o.backend.Summarize(ctx, batch.FormatForSummary(b)))
		if err != nil {
			log.Error("failed to summarize batch",
				slog.Int("batch", i+1),
				slog.String("error", redact.Error(err)))
			return nil, NewOperationError("process tasks",
				fmt.Sprintf("failed to summarize task group %d", i+1), err)
		}

		o.presenterFor(ctx).Present(ctx, fmt.Sprintf("Task Group %d", i+1), summary)
	}

	return backlog, nil
}

// ProcessSelectedTask presents an action prompt for the task and runs the
// lifecycle loop on it with decisions read from in.
func (o *Orchestrator) ProcessSelectedTask(ctx context.Context, id int64, in lifecycle.DecisionReader) (lifecycle.Result, error) {
	log := logger.FromContextOrDefault(ctx, o.logger).With(slog.Int64("task_id", id))

	session, release, err := o.provider.Acquire(ctx)
	if err != nil {
		return lifecycle.Result{}, NewOperationError("process selected task", "failed to acquire storage", err)
	}
	defer release()

	task, err := o.selectTask(ctx, session.Tasks(), id)
	if err != nil {
		return lifecycle.Result{}, err
	}

	if _, err := o.presentActionPrompt(ctx, *task); err != nil {
		log.Error("failed to generate action prompt", slog.String("error", redact.Error(err)))
		return lifecycle.Result{}, NewOperationError("process selected task", "failed to generate action prompt", err)
	}

	return o.lifecycle.Run(ctx, *task, session.Tasks(), in, o.presenterFor(ctx))
}

// ActionPrompt returns the action prompt for a task without entering the
// lifecycle loop.
func (o *Orchestrator) ActionPrompt(ctx context.Context, id int64) (*domain.Task, string, error) {
	session, release, err := o.provider.Acquire(ctx)
	if err != nil {
		return nil, "", NewOperationError("action prompt", "failed to acquire storage", err)
	}
	defer release()

	task, err := o.selectTask(ctx, session.Tasks(), id)
	if err != nil {
		return nil, "", err
	}

	prompt, err := o.presentActionPrompt(ctx, *task)
	if err != nil {
		return nil, "", NewOperationError("action prompt", "failed to generate action prompt", err)
	}
	return task, prompt, nil
}

// ApplyDecision applies one already-parsed decision to a task.
func (o *Orchestrator) ApplyDecision(ctx context.Context, id int64, decision domain.Decision) (lifecycle.Result, error) {
	session, release, err := o.provider.Acquire(ctx)
	if err != nil {
		return lifecycle.Result{}, NewOperationError("apply decision", "failed to acquire storage", err)
	}
	defer release()

	task, err := o.selectTask(ctx, session.Tasks(), id)
	if err != nil {
		return lifecycle.Result{}, err
	}

	return o.lifecycle.Apply(ctx, *task, decision, session.Tasks(), o.presenterFor(ctx))
}

// ProcessInput answers free-form input through the router and records the
// exchange. An agent task audits the call: it is created in progress, then
// completed together with the conversation record, or marked failed with
// the error message before the error is returned.
func (o *Orchestrator) ProcessInput(ctx context.Context, input string, c generation.Context) (router.Answer, error) {
	log := logger.FromContextOrDefault(ctx, o.logger)

	session, release, err := o.provider.Acquire(ctx)
	if err != nil {
		return router.Answer{}, NewOperationError("process input", "failed to acquire storage", err)
	}
	defer release()

	agentTask, err := domain.NewAgentTask(domain.AgentTaskTypeProcessInput)
	if err != nil {
		return router.Answer{}, NewOperationError("process input", "failed to create agent task", err)
	}
	if err := session.AgentTasks().Create(ctx, agentTask); err != nil {
		log.Error("failed to record agent task", slog.String("error", redact.Error(err)))
		return router.Answer{}, NewOperationError("process input", "failed to record agent task", err)
	}

	log = log.With(slog.String("agent_task_id", agentTask.ID.String()))

	answer, err := o.router.RouteAndAnswer(ctx, input, c)
	if err == nil {
		err = session.WithinTx(ctx, func(ctx context.Context, tx store.Session) error {
			conv, err := domain.NewConversation(input, answer.Text, answer.Model)
			if err != nil {
				return err
			}
			if err := tx.Conversations().Create(ctx, conv); err != nil {
				return err
			}
			done := *agentTask
			if err := done.Complete(answer.Text); err != nil {
				return err
			}
			if err := tx.AgentTasks().Update(ctx, &done); err != nil {
				return err
			}
			*agentTask = done
			return nil
		})
	}

	if err != nil {
		o.failAgentTask(ctx, session, agentTask, err)
		return router.Answer{}, NewOperationError("process input", "failed to answer input", err)
	}

	log.Info("input answered",
		slog.String("model", answer.Model),
		slog.Bool("fell_back", answer.FellBack))
	return answer, nil
}

func (o *Orchestrator) failAgentTask(ctx context.Context, session store.Session, agentTask *domain.AgentTask, cause error) {
	log := logger.FromContextOrDefault(ctx, o.logger).With(slog.String("agent_task_id", agentTask.ID.String()))

	if err := agentTask.Fail(cause); err != nil {
		log.Error("failed to mark agent task failed", slog.String("error", err.Error()))
		return
	}
	if err := session.AgentTasks().Update(ctx, agentTask); err != nil {
		log.Error("failed to record agent task failure", slog.String("error", redact.Error(err)))
		return
	}
	log.Warn("agent task failed", slog.String("error", redact.Error(cause)))
}

func (o *Orchestrator) selectTask(ctx context.Context, tasks store.TaskStore, id int64) (*domain.Task, error) {
	task, err := tasks.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: id %d: %w", ErrTaskNotFound, id, err)
		}
		return nil, NewOperationError("select task", fmt.Sprintf("failed to load task %d", id), err)
	}
	return task, nil
}

func (o *Orchestrator) presentActionPrompt(ctx context.Context, task domain.Task) (string, error) {
	prompt, err := generation.Collect(o.backend.GenerateActionPrompt(ctx, task.Snapshot()))
	if err != nil {
		return "", err
	}
	o.presenterFor(ctx).Present(ctx, fmt.Sprintf("Task %d: %s", task.ID, task.Description), prompt)
	return prompt, nil
}
