package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/triage/internal/store"
)

// MockSession implements store.Session over the three mock stores.
type MockSession struct {
	TaskStore         *MockTaskStore
	ConversationStore *MockConversationStore
	AgentTaskStore    *MockAgentTaskStore

	// WithinTxFn overrides WithinTx, for example to simulate a failed commit.
	WithinTxFn func(ctx context.Context, fn func(ctx context.Context, s store.Session) error) error
}

var _ store.Session = (*MockSession)(nil)

// NewMockSession creates a session with empty conversation and agent task
// stores over the given task store.
func NewMockSession(tasks *MockTaskStore) *MockSession {
	if tasks == nil {
		tasks = NewMockTaskStore()
	}
	return &MockSession{
		TaskStore:         tasks,
		ConversationStore: &MockConversationStore{},
		AgentTaskStore:    &MockAgentTaskStore{},
	}
}

func (s *MockSession) Tasks() store.TaskStore                 { return s.TaskStore }
func (s *MockSession) Conversations() store.ConversationStore { return s.ConversationStore }
func (s *MockSession) AgentTasks() store.AgentTaskStore       { return s.AgentTaskStore }

// WithinTx implements store.Session. Without an override fn runs directly
// against the session.
func (s *MockSession) WithinTx(ctx context.Context, fn func(ctx context.Context, s store.Session) error) error {
	if s.WithinTxFn != nil {
		return s.WithinTxFn(ctx, fn)
	}
	return fn(ctx, s)
}

// MockProvider implements store.Provider and counts acquisitions and releases.
type MockProvider struct {
	Session    *MockSession
	AcquireErr error

	mu       sync.Mutex
	acquired int
	released int
}

var _ store.Provider = (*MockProvider)(nil)

// NewMockProvider creates a provider handing out session.
func NewMockProvider(session *MockSession) *MockProvider {
	return &MockProvider{Session: session}
}

// Acquire implements store.Provider.
func (p *MockProvider) Acquire(context.Context) (store.Session, func(), error) {
	if p.AcquireErr != nil {
		return nil, nil, p.AcquireErr
	}

	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()

	once := sync.Once{}
	return p.Session, func() {
		once.Do(func() {
			p.mu.Lock()
			p.released++
			p.mu.Unlock()
		})
	}, nil
}

// Counts returns how many sessions were acquired and released.
func (p *MockProvider) Counts() (acquired, released int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired, p.released
}
