package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/lifecycle"
	"github.com/phrazzld/triage/internal/metrics"
	"github.com/phrazzld/triage/internal/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLoop(helper generation.Backend, opts ...lifecycle.Option) *lifecycle.Loop {
	opts = append([]lifecycle.Option{lifecycle.WithClock(func() time.Time { return fixedNow })}, opts...)
	return lifecycle.New(helper, quietLogger(), opts...)
}

func task(id int64, status domain.TaskStatus) domain.Task {
	return domain.Task{ID: id, Description: "File quarterly taxes", Urgency: domain.UrgencyHigh, Status: status}
}

func TestDecide(t *testing.T) {
	t.Parallel()

	earlier := fixedNow.Add(-time.Hour)
	dayLater := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name        string
		status      domain.TaskStatus
		alertAt     *time.Time
		decision    domain.Decision
		wantWrite   bool
		wantStatus  domain.TaskStatus
		wantAlertAt *time.Time
		wantHelp    bool
		wantErr     error
	}{
		{name: "complete new", status: domain.TaskStatusNew, alertAt: &earlier,
			decision: domain.DecisionComplete, wantWrite: true, wantStatus: domain.TaskStatusCompleted},
		{name: "complete half-completed", status: domain.TaskStatusHalfCompleted,
			decision: domain.DecisionComplete, wantWrite: true, wantStatus: domain.TaskStatusCompleted},
		{name: "complete completed", status: domain.TaskStatusCompleted,
			decision: domain.DecisionComplete, wantWrite: true, wantStatus: domain.TaskStatusCompleted},
		{name: "complete failed", status: domain.TaskStatusFailed, alertAt: &earlier,
			decision: domain.DecisionComplete, wantWrite: true, wantStatus: domain.TaskStatusCompleted},
		{name: "remind keeps status", status: domain.TaskStatusInProgress,
			decision: domain.DecisionRemind, wantWrite: true, wantStatus: domain.TaskStatusInProgress, wantAlertAt: &dayLater},
		{name: "remind completed", status: domain.TaskStatusCompleted,
			decision: domain.DecisionRemind, wantWrite: true, wantStatus: domain.TaskStatusCompleted, wantAlertAt: &dayLater},
		{name: "help", status: domain.TaskStatusNew,
			decision: domain.DecisionHelp, wantWrite: true, wantStatus: domain.TaskStatusHalfCompleted,
			wantAlertAt: &fixedNow, wantHelp: true},
		{name: "skip", status: domain.TaskStatusNew, alertAt: &earlier,
			decision: domain.DecisionSkip, wantStatus: domain.TaskStatusNew, wantAlertAt: &earlier},
		{name: "back", status: domain.TaskStatusInProgress,
			decision: domain.DecisionBack, wantStatus: domain.TaskStatusInProgress},
		{name: "unknown", status: domain.TaskStatusNew,
			decision: domain.Decision("snooze"), wantStatus: domain.TaskStatusNew, wantErr: domain.ErrUnknownDecision},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tk := task(7, tc.status)
			tk.AlertAt = tc.alertAt

			tr := lifecycle.Decide(tk, tc.decision, fixedNow, lifecycle.DefaultReminderDelay)

			assert.Equal(t, tc.decision, tr.Decision)
			assert.Equal(t, tc.wantWrite, tr.Write)
			assert.Equal(t, tc.wantStatus, tr.Status)
			assert.Equal(t, tc.wantHelp, tr.Help)
			if tc.wantAlertAt == nil {
				assert.Nil(t, tr.AlertAt)
			} else {
				require.NotNil(t, tr.AlertAt)
				assert.True(t, tc.wantAlertAt.Equal(*tr.AlertAt))
			}
			if tc.wantErr != nil {
				assert.ErrorIs(t, tr.Err, tc.wantErr)
			} else {
				assert.NoError(t, tr.Err)
			}
		})
	}
}

func TestDecideCustomReminderDelay(t *testing.T) {
	t.Parallel()

	tr := lifecycle.Decide(task(1, domain.TaskStatusNew), domain.DecisionRemind, fixedNow, 2*time.Hour)
	require.NotNil(t, tr.AlertAt)
	assert.Equal(t, fixedNow.Add(2*time.Hour), *tr.AlertAt)
}

func TestRunWrites(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantUpdates []mocks.StatusUpdate
	}{
		{name: "complete", input: "complete",
			wantUpdates: []mocks.StatusUpdate{{ID: 7, Status: domain.TaskStatusCompleted, AlertAt: nil}}},
		{name: "remind", input: "  Remind ",
			wantUpdates: []mocks.StatusUpdate{{ID: 7, Status: domain.TaskStatusNew, AlertAt: ptr(fixedNow.Add(24 * time.Hour))}}},
		{name: "help", input: "help",
			wantUpdates: []mocks.StatusUpdate{{ID: 7, Status: domain.TaskStatusHalfCompleted, AlertAt: ptr(fixedNow)}}},
		{name: "skip", input: "skip"},
		{name: "back", input: "BACK"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tk := task(7, domain.TaskStatusNew)
			tasks := mocks.NewMockTaskStore(tk)
			helper := mocks.NewMockBackend("gpt-4", "1. Gather receipts")
			out := &mocks.MockPresenter{}

			_, err := newLoop(helper).Run(context.Background(), tk, tasks,
				mocks.NewMockDecisionReader(tc.input), out)
			require.NoError(t, err)

			assert.Equal(t, tc.wantUpdates, tasks.UpdateCalls())
		})
	}
}

func TestRunCompleteTaskSeven(t *testing.T) {
	t.Parallel()

	tk := task(7, domain.TaskStatusNew)
	tasks := mocks.NewMockTaskStore(tk)

	res, err := newLoop(mocks.NewMockBackend("gpt-4")).Run(context.Background(), tk, tasks,
		mocks.NewMockDecisionReader("complete"), &mocks.MockPresenter{})
	require.NoError(t, err)

	require.Len(t, tasks.UpdateCalls(), 1)
	assert.Equal(t, mocks.StatusUpdate{ID: 7, Status: domain.TaskStatusCompleted}, tasks.UpdateCalls()[0])
	assert.Equal(t, domain.DecisionComplete, res.Transition.Decision)
	assert.Equal(t, domain.TaskStatusCompleted, tasks.Tasks[7].Status)
}

func TestRunRepromptsOnUnknownInput(t *testing.T) {
	t.Parallel()

	tk := task(3, domain.TaskStatusNew)
	tasks := mocks.NewMockTaskStore(tk)
	reader := mocks.NewMockDecisionReader("later", "", "done?", "skip", "complete")
	out := &mocks.MockPresenter{}

	res, err := newLoop(mocks.NewMockBackend("gpt-4")).Run(context.Background(), tk, tasks, reader, out)
	require.NoError(t, err)

	assert.Equal(t, domain.DecisionSkip, res.Transition.Decision)
	assert.Equal(t, 4, reader.Reads, "loop stops at the first recognized decision")
	assert.Empty(t, tasks.UpdateCalls())
	assert.True(t, out.Contains(`Unrecognized choice "later"`))
	assert.True(t, out.Contains("complete, remind, help, skip, back"))
}

func TestRunReaderError(t *testing.T) {
	t.Parallel()

	tk := task(3, domain.TaskStatusNew)
	tasks := mocks.NewMockTaskStore(tk)

	_, err := newLoop(mocks.NewMockBackend("gpt-4")).Run(context.Background(), tk, tasks,
		mocks.NewMockDecisionReader("nope"), &mocks.MockPresenter{})
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, tasks.UpdateCalls())
}

func TestRunCompleteOnCompletedTaskWritesOnce(t *testing.T) {
	t.Parallel()

	tk := task(4, domain.TaskStatusCompleted)
	tasks := mocks.NewMockTaskStore(tk)

	_, err := newLoop(mocks.NewMockBackend("gpt-4")).Run(context.Background(), tk, tasks,
		mocks.NewMockDecisionReader("complete"), &mocks.MockPresenter{})
	require.NoError(t, err)
	assert.Equal(t, []mocks.StatusUpdate{{ID: 4, Status: domain.TaskStatusCompleted}}, tasks.UpdateCalls())
}

func TestRunFailedTaskRemindThenComplete(t *testing.T) {
	t.Parallel()

	tasks := mocks.NewMockTaskStore(task(9, domain.TaskStatusFailed))
	loop := newLoop(mocks.NewMockBackend("gpt-4"))
	ctx := context.Background()

	current := func() domain.Task {
		got, err := tasks.GetByID(ctx, 9)
		require.NoError(t, err)
		return *got
	}

	_, err := loop.Run(ctx, current(), tasks, mocks.NewMockDecisionReader("remind"), &mocks.MockPresenter{})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, current().Status, "remind keeps the status")

	_, err = loop.Run(ctx, current(), tasks, mocks.NewMockDecisionReader("complete"), &mocks.MockPresenter{})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, current().Status)
	assert.Nil(t, current().AlertAt)
	assert.Len(t, tasks.UpdateCalls(), 2)
}

func TestRunHelpAsksDefaultBackend(t *testing.T) {
	t.Parallel()

	tk := task(12, domain.TaskStatusInProgress)
	tasks := mocks.NewMockTaskStore(tk)
	helper := mocks.NewMockBackend("gpt-4", "1. Gather receipts\n", "2. Fill the form")
	out := &mocks.MockPresenter{}

	res, err := newLoop(helper).Run(context.Background(), tk, tasks,
		mocks.NewMockDecisionReader("help"), out)
	require.NoError(t, err)

	assert.Equal(t, "1. Gather receipts\n2. Fill the form", res.Help)
	require.Len(t, helper.ProcessCalls.Inputs, 1)
	assert.Equal(t, "Help me break down this task: File quarterly taxes", helper.ProcessCalls.Inputs[0])
	require.NotNil(t, helper.ProcessCalls.Contexts[0].TaskID)
	assert.Equal(t, int64(12), *helper.ProcessCalls.Contexts[0].TaskID)
	assert.Equal(t, []string{"Breakdown for task 12"}, out.Headings())
}

func TestRunHelpFailureKeepsSingleWrite(t *testing.T) {
	t.Parallel()

	tk := task(12, domain.TaskStatusNew)
	tasks := mocks.NewMockTaskStore(tk)
	boom := errors.New("model overloaded")

	_, err := newLoop(mocks.NewFailingMockBackend("gpt-4", boom)).Run(context.Background(), tk, tasks,
		mocks.NewMockDecisionReader("help"), &mocks.MockPresenter{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, tasks.UpdateCalls(), 1)
}

func TestRunUpdateFailure(t *testing.T) {
	t.Parallel()

	tk := task(5, domain.TaskStatusNew)
	tasks := mocks.NewMockTaskStore(tk)
	boom := errors.New("connection reset")
	tasks.UpdateStatusFn = func(context.Context, int64, domain.TaskStatus, *time.Time) error { return boom }
	helper := mocks.NewMockBackend("gpt-4", "steps")

	_, err := newLoop(helper).Run(context.Background(), tk, tasks,
		mocks.NewMockDecisionReader("help"), &mocks.MockPresenter{})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, helper.ProcessCount(), "help is not requested when the write fails")
}

func TestRunCountsDecisions(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)

	tk := task(1, domain.TaskStatusNew)
	loop := newLoop(mocks.NewMockBackend("gpt-4"), lifecycle.WithMetrics(m))

	for _, in := range []string{"skip", "back", "skip"} {
		_, err := loop.Run(context.Background(), tk, mocks.NewMockTaskStore(tk),
			mocks.NewMockDecisionReader(in), &mocks.MockPresenter{})
		require.NoError(t, err)
	}

	count, err := testutil.GatherAndCount(reg, "triage_lifecycle_decisions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per distinct decision")
}

func ptr(t time.Time) *time.Time { return &t }
