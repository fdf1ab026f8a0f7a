package mocks

import (
	"context"
	"iter"
	"sync"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/generation"
)

// MockBackend implements generation.Backend, generation.Summarizer and
// generation.ActionPrompter for testing.
type MockBackend struct {
	NameValue      string
	AvailableValue bool

	// Function fields override the default behavior.
	ProcessFn              func(ctx context.Context, input string, c generation.Context) iter.Seq2[string, error]
	SummarizeFn            func(ctx context.Context, batchText string) iter.Seq2[string, error]
	GenerateActionPromptFn func(ctx context.Context, task domain.TaskSnapshot) iter.Seq2[string, error]

	// Default behavior: yield Response fragments, then Err if set.
	Response []string
	Err      error

	mu sync.Mutex

	// ProcessCalls records Process invocations.
	ProcessCalls struct {
		Count    int
		Inputs   []string
		Contexts []generation.Context
	}

	// SummarizeCalls records the batch text of each Summarize invocation.
	SummarizeCalls []string

	// ActionPromptCalls records the snapshot of each GenerateActionPrompt invocation.
	ActionPromptCalls []domain.TaskSnapshot
}

var (
	_ generation.Backend        = (*MockBackend)(nil)
	_ generation.Summarizer     = (*MockBackend)(nil)
	_ generation.ActionPrompter = (*MockBackend)(nil)
)

// NewMockBackend creates an available backend answering with the given fragments.
func NewMockBackend(name string, fragments ...string) *MockBackend {
	return &MockBackend{NameValue: name, AvailableValue: true, Response: fragments}
}

// NewFailingMockBackend creates an available backend whose every call fails with err.
func NewFailingMockBackend(name string, err error) *MockBackend {
	return &MockBackend{NameValue: name, AvailableValue: true, Err: err}
}

// Name implements generation.Backend.
func (m *MockBackend) Name() string { return m.NameValue }

// Available implements generation.Backend.
func (m *MockBackend) Available() bool { return m.AvailableValue }

// Process implements generation.Backend.
func (m *MockBackend) Process(ctx context.Context, input string, c generation.Context) iter.Seq2[string, error] {
	m.mu.Lock()
	m.ProcessCalls.Count++
	m.ProcessCalls.Inputs = append(m.ProcessCalls.Inputs, input)
	m.ProcessCalls.Contexts = append(m.ProcessCalls.Contexts, c)
	m.mu.Unlock()

	if m.ProcessFn != nil {
		return m.ProcessFn(ctx, input, c)
	}
	return m.defaultSeq()
}

// Summarize implements generation.Summarizer.
func (m *MockBackend) Summarize(ctx context.Context, batchText string) iter.Seq2[string, error] {
	m.mu.Lock()
	m.SummarizeCalls = append(m.SummarizeCalls, batchText)
	m.mu.Unlock()

	if m.SummarizeFn != nil {
		return m.SummarizeFn(ctx, batchText)
	}
	return m.defaultSeq()
}

// GenerateActionPrompt implements generation.ActionPrompter.
func (m *MockBackend) GenerateActionPrompt(ctx context.Context, task domain.TaskSnapshot) iter.Seq2[string, error] {
	m.mu.Lock()
	m.ActionPromptCalls = append(m.ActionPromptCalls, task)
	m.mu.Unlock()

	if m.GenerateActionPromptFn != nil {
		return m.GenerateActionPromptFn(ctx, task)
	}
	return m.defaultSeq()
}

// ProcessCount returns the number of Process calls.
func (m *MockBackend) ProcessCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ProcessCalls.Count
}

func (m *MockBackend) defaultSeq() iter.Seq2[string, error] {
	if m.Err != nil {
		return generation.Failure(m.Err, m.Response...)
	}
	return generation.Fragments(m.Response...)
}
