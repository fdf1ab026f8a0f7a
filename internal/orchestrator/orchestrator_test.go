package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"testing"

	"github.com/phrazzld/triage/internal/batch"
	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/metrics"
	"github.com/phrazzld/triage/internal/mocks"
	"github.com/phrazzld/triage/internal/orchestrator"
	"github.com/phrazzld/triage/internal/router"
	"github.com/phrazzld/triage/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSize int

func (f fixedSize) Estimate(domain.Task) int { return int(f) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	session   *mocks.MockSession
	provider  *mocks.MockProvider
	def       *mocks.MockBackend
	deep      *mocks.MockBackend
	presenter *mocks.MockPresenter
	orch      *orchestrator.Orchestrator
}

func newFixture(t *testing.T, tasks ...domain.Task) *fixture {
	t.Helper()

	f := &fixture{
		session:   mocks.NewMockSession(mocks.NewMockTaskStore(tasks...)),
		def:       mocks.NewMockBackend("gpt-4", "summary"),
		deep:      mocks.NewMockBackend("o3-mini", "deep answer"),
		presenter: &mocks.MockPresenter{},
	}
	f.provider = mocks.NewMockProvider(f.session)

	orch, err := orchestrator.New(orchestrator.Deps{
		Provider:  f.provider,
		Router:    router.New(f.def, f.deep, quietLogger()),
		Batcher:   batch.New(3, 1000, fixedSize(50)),
		Presenter: f.presenter,
		Logger:    quietLogger(),
	}, orchestrator.DefaultOptions())
	require.NoError(t, err)

	f.orch = orch
	return f
}

func (f *fixture) assertReleased(t *testing.T) {
	t.Helper()
	acquired, released := f.provider.Counts()
	assert.Equal(t, 1, acquired, "sessions acquired")
	assert.Equal(t, acquired, released, "every session is released")
}

func mkTask(id int64, urgency domain.Urgency, status domain.TaskStatus) domain.Task {
	return domain.Task{ID: id, Description: "task", Urgency: urgency, Status: status}
}

func ids(tasks []domain.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestProcessTasksOrdersAndDuplicatesPriorityTier(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		mkTask(4, domain.UrgencyMedium, domain.TaskStatusNew),
		mkTask(3, domain.UrgencyHigh, domain.TaskStatusNew),
		mkTask(2, domain.UrgencyHigh, domain.TaskStatusHalfCompleted),
		mkTask(1, domain.UrgencyCritical, domain.TaskStatusNew),
		mkTask(5, domain.UrgencyCritical, domain.TaskStatusHalfCompleted),
	)

	backlog, err := f.orch.ProcessTasks(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 5, 2, 3, 2, 4}, ids(backlog),
		"only the priority tier's half-completed tasks are repeated")
	assert.Equal(t, domain.DefaultUrgencyOrder(), f.session.TaskStore.Fetches)

	require.Len(t, f.def.SummarizeCalls, 2)
	assert.Contains(t, f.def.SummarizeCalls[0], "Task 1: task")
	assert.Contains(t, f.def.SummarizeCalls[1], "Task 3: task")
	assert.Equal(t, []string{"Task Group 1", "Task Group 2"}, f.presenter.Headings())
	assert.Zero(t, f.deep.ProcessCount())
	f.assertReleased(t)
}

func TestProcessTasksEmptyBacklog(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	backlog, err := f.orch.ProcessTasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, backlog)
	assert.Empty(t, backlog)
	assert.True(t, f.presenter.Contains(orchestrator.NoTasksMessage))
	assert.Empty(t, f.def.SummarizeCalls)
	f.assertReleased(t)
}

func TestProcessTasksSummaryFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		mkTask(1, domain.UrgencyHigh, domain.TaskStatusNew),
		mkTask(2, domain.UrgencyHigh, domain.TaskStatusNew),
		mkTask(3, domain.UrgencyHigh, domain.TaskStatusNew),
		mkTask(4, domain.UrgencyLow, domain.TaskStatusNew),
	)

	boom := errors.New("quota exceeded")
	calls := 0
	f.def.SummarizeFn = func(context.Context, string) iter.Seq2[string, error] {
		calls++
		if calls == 2 {
			return generation.Failure(boom)
		}
		return generation.Fragments("ok")
	}

	_, err := f.orch.ProcessTasks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "task group 2")
	assert.Equal(t, []string{"Task Group 1"}, f.presenter.Headings(), "earlier summaries stay presented")
	f.assertReleased(t)
}

func TestProcessTasksFetchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	boom := errors.New("db down")
	f.session.TaskStore.FetchByUrgencyFn = func(context.Context, domain.Urgency) ([]domain.Task, error) {
		return nil, boom
	}

	_, err := f.orch.ProcessTasks(context.Background())
	assert.ErrorIs(t, err, boom)
	f.assertReleased(t)
}

func TestProcessTasksAcquireFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.AcquireErr = store.ErrSessionUnavailable

	_, err := f.orch.ProcessTasks(context.Background())
	assert.ErrorIs(t, err, store.ErrSessionUnavailable)

	acquired, released := f.provider.Counts()
	assert.Zero(t, acquired)
	assert.Zero(t, released)
}

func TestProcessTasksObservesBatchSizes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)

	tasks := mocks.NewMockTaskStore(
		mkTask(1, domain.UrgencyHigh, domain.TaskStatusNew),
		mkTask(2, domain.UrgencyHigh, domain.TaskStatusNew),
	)
	def := mocks.NewMockBackend("gpt-4", "s")
	orch, err := orchestrator.New(orchestrator.Deps{
		Provider:  mocks.NewMockProvider(mocks.NewMockSession(tasks)),
		Router:    router.New(def, mocks.NewMockBackend("o3-mini"), quietLogger()),
		Batcher:   batch.New(1, 1000, fixedSize(1)),
		Presenter: &mocks.MockPresenter{},
		Metrics:   m,
		Logger:    quietLogger(),
	}, orchestrator.DefaultOptions())
	require.NoError(t, err)

	_, err = orch.ProcessTasks(context.Background())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "triage_batch_tasks_per_batch")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, def.SummarizeCalls, 2)
}

func TestProcessSelectedTaskNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.orch.ProcessSelectedTask(context.Background(), 999, mocks.NewMockDecisionReader("complete"))
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrTaskNotFound)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.Empty(t, f.def.ActionPromptCalls)
	assert.Empty(t, f.session.TaskStore.UpdateCalls())
	f.assertReleased(t)
}

func TestProcessSelectedTaskCompletes(t *testing.T) {
	t.Parallel()

	tk := domain.Task{ID: 7, Description: "Renew passport", Urgency: domain.UrgencyHigh, Status: domain.TaskStatusNew}
	f := newFixture(t, tk)
	f.def.Response = []string{"Book an appointment today."}

	res, err := f.orch.ProcessSelectedTask(context.Background(), 7, mocks.NewMockDecisionReader("complete"))
	require.NoError(t, err)

	require.Len(t, f.def.ActionPromptCalls, 1)
	assert.Equal(t, tk.Snapshot(), f.def.ActionPromptCalls[0])
	assert.Equal(t, []string{"Task 7: Renew passport"}, f.presenter.Headings())
	assert.True(t, f.presenter.Contains("Book an appointment today."))

	assert.Equal(t, domain.DecisionComplete, res.Transition.Decision)
	assert.Equal(t, []mocks.StatusUpdate{{ID: 7, Status: domain.TaskStatusCompleted}}, f.session.TaskStore.UpdateCalls())
	f.assertReleased(t)
}

func TestProcessSelectedTaskActionPromptFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mkTask(7, domain.UrgencyHigh, domain.TaskStatusNew))
	boom := errors.New("backend down")
	f.def.Err = boom

	reader := mocks.NewMockDecisionReader("complete")
	_, err := f.orch.ProcessSelectedTask(context.Background(), 7, reader)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, reader.Reads, "no decision is read without an action prompt")
	f.assertReleased(t)
}

func TestActionPromptAndApplyDecision(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mkTask(8, domain.UrgencyLow, domain.TaskStatusNew))
	f.def.Response = []string{"Start with the smallest step."}

	task, prompt, err := f.orch.ActionPrompt(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), task.ID)
	assert.Equal(t, "Start with the smallest step.", prompt)

	_, err = f.orch.ApplyDecision(context.Background(), 8, domain.DecisionSkip)
	require.NoError(t, err)
	assert.Empty(t, f.session.TaskStore.UpdateCalls())

	_, err = f.orch.ApplyDecision(context.Background(), 404, domain.DecisionSkip)
	assert.ErrorIs(t, err, orchestrator.ErrTaskNotFound)

	acquired, released := f.provider.Counts()
	assert.Equal(t, 3, acquired)
	assert.Equal(t, 3, released)
}

func TestProcessInputRecordsExchange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.def.Response = []string{"Hi ", "there"}

	answer, err := f.orch.ProcessInput(context.Background(), "hello", generation.Context{IsGreeting: true})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", answer.Text)
	assert.Equal(t, "gpt-4", answer.Model)

	require.Len(t, f.session.ConversationStore.Conversations, 1)
	conv := f.session.ConversationStore.Conversations[0]
	assert.Equal(t, "hello", conv.UserInput)
	assert.Equal(t, "Hi there", conv.AgentResponse)
	assert.Equal(t, "gpt-4", conv.ModelUsed)

	rec, ok := f.session.AgentTaskStore.Last()
	require.True(t, ok)
	assert.Equal(t, domain.AgentTaskTypeProcessInput, rec.TaskType)
	assert.Equal(t, domain.AgentTaskCompleted, rec.Status)
	assert.Equal(t, "Hi there", rec.Result)
	assert.Equal(t, 1, f.session.AgentTaskStore.Creates)
	assert.Equal(t, 1, f.session.AgentTaskStore.Updates)
	f.assertReleased(t)
}

func TestProcessInputRecordsFallbackModel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.deep.Err = errors.New("deep model timeout")
	f.deep.Response = nil
	f.def.Response = []string{"comparison"}

	answer, err := f.orch.ProcessInput(context.Background(), "compare these plans", generation.Context{})
	require.NoError(t, err)
	assert.True(t, answer.FellBack)
	require.Len(t, f.session.ConversationStore.Conversations, 1)
	assert.Equal(t, "gpt-4", f.session.ConversationStore.Conversations[0].ModelUsed)
}

func TestProcessInputMarksAgentTaskFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	primary := errors.New("primary down")
	f.def.Err, f.def.Response = primary, nil
	f.deep.Err, f.deep.Response = errors.New("secondary down"), nil

	_, err := f.orch.ProcessInput(context.Background(), "hello", generation.Context{})
	require.Error(t, err)
	assert.ErrorIs(t, err, primary)

	assert.Empty(t, f.session.ConversationStore.Conversations)
	rec, ok := f.session.AgentTaskStore.Last()
	require.True(t, ok)
	assert.Equal(t, domain.AgentTaskFailed, rec.Status)
	assert.Contains(t, rec.Result, "primary down")
	f.assertReleased(t)
}

func TestProcessInputNoBackendAvailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.def.AvailableValue = false
	f.deep.AvailableValue = false

	_, err := f.orch.ProcessInput(context.Background(), "hello", generation.Context{})
	assert.ErrorIs(t, err, generation.ErrNoBackendAvailable)

	rec, ok := f.session.AgentTaskStore.Last()
	require.True(t, ok)
	assert.Equal(t, domain.AgentTaskFailed, rec.Status)
}

func TestProcessInputPersistenceFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	boom := errors.New("insert failed")
	f.session.ConversationStore.CreateFn = func(context.Context, *domain.Conversation) error { return boom }

	_, err := f.orch.ProcessInput(context.Background(), "hello", generation.Context{})
	assert.ErrorIs(t, err, boom)

	rec, ok := f.session.AgentTaskStore.Last()
	require.True(t, ok)
	assert.Equal(t, domain.AgentTaskFailed, rec.Status)
	assert.Equal(t, "insert failed", rec.Result)
	f.assertReleased(t)
}

func TestProcessInputAgentTaskCreateFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	boom := errors.New("audit table missing")
	f.session.AgentTaskStore.CreateFn = func(context.Context, *domain.AgentTask) error { return boom }

	_, err := f.orch.ProcessInput(context.Background(), "hello", generation.Context{})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.def.ProcessCount(), "nothing is routed without an audit record")
	f.assertReleased(t)
}

type plainBackend struct{}

func (plainBackend) Name() string    { return "plain" }
func (plainBackend) Available() bool { return true }
func (plainBackend) Process(context.Context, string, generation.Context) iter.Seq2[string, error] {
	return generation.Fragments("x")
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider(mocks.NewMockSession(nil))
	r := router.New(mocks.NewMockBackend("gpt-4"), mocks.NewMockBackend("o3-mini"), quietLogger())
	p := &mocks.MockPresenter{}

	tests := []struct {
		name    string
		deps    orchestrator.Deps
		opts    orchestrator.Options
		wantErr error
	}{
		{name: "no provider", deps: orchestrator.Deps{Router: r, Presenter: p}, opts: orchestrator.DefaultOptions()},
		{name: "no router", deps: orchestrator.Deps{Provider: provider, Presenter: p}, opts: orchestrator.DefaultOptions()},
		{name: "no presenter", deps: orchestrator.Deps{Provider: provider, Router: r}, opts: orchestrator.DefaultOptions()},
		{name: "no tiers", deps: orchestrator.Deps{Provider: provider, Router: r, Presenter: p}},
		{
			name: "default backend cannot summarize",
			deps: orchestrator.Deps{
				Provider:  provider,
				Router:    router.New(plainBackend{}, mocks.NewMockBackend("o3-mini"), quietLogger()),
				Presenter: p,
			},
			opts:    orchestrator.DefaultOptions(),
			wantErr: generation.ErrUnsupported,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := orchestrator.New(tc.deps, tc.opts)
			assert.ErrorIs(t, err, domain.ErrValidation)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestWithPresenterOverridesPresenter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	captured := &mocks.MockPresenter{}

	_, err := f.orch.ProcessTasks(orchestrator.WithPresenter(context.Background(), captured))
	require.NoError(t, err)

	assert.True(t, captured.Contains(orchestrator.NoTasksMessage))
	assert.Empty(t, f.presenter.Messages)
}
