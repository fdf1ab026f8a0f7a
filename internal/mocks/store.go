package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/store"
)

// StatusUpdate records one TaskStore.UpdateStatus call.
type StatusUpdate struct {
	ID      int64
	Status  domain.TaskStatus
	AlertAt *time.Time
}

// MockTaskStore implements store.TaskStore over an in-memory map.
type MockTaskStore struct {
	FetchByUrgencyFn func(ctx context.Context, urgency domain.Urgency) ([]domain.Task, error)
	GetByIDFn        func(ctx context.Context, id int64) (*domain.Task, error)
	UpdateStatusFn   func(ctx context.Context, id int64, status domain.TaskStatus, alertAt *time.Time) error

	mu      sync.Mutex
	Tasks   map[int64]domain.Task
	Updates []StatusUpdate
	Fetches []domain.Urgency
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates a store seeded with tasks.
func NewMockTaskStore(tasks ...domain.Task) *MockTaskStore {
	m := &MockTaskStore{Tasks: make(map[int64]domain.Task, len(tasks))}
	for _, t := range tasks {
		m.Tasks[t.ID] = t
	}
	return m
}

// FetchByUrgency implements store.TaskStore. Tasks are returned ordered by ID.
func (m *MockTaskStore) FetchByUrgency(ctx context.Context, urgency domain.Urgency) ([]domain.Task, error) {
	m.mu.Lock()
	m.Fetches = append(m.Fetches, urgency)
	m.mu.Unlock()

	if m.FetchByUrgencyFn != nil {
		return m.FetchByUrgencyFn(ctx, urgency)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Task, 0)
	for _, t := range m.Tasks {
		if t.Urgency == urgency {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID implements store.TaskStore.
func (m *MockTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.Tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return &t, nil
}

// UpdateStatus implements store.TaskStore and records the call.
func (m *MockTaskStore) UpdateStatus(ctx context.Context, id int64, status domain.TaskStatus, alertAt *time.Time) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, StatusUpdate{ID: id, Status: status, AlertAt: alertAt})
	m.mu.Unlock()

	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status, alertAt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.Tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.Status = status
	t.AlertAt = alertAt
	m.Tasks[id] = t
	return nil
}

// UpdateCalls returns a copy of the recorded status updates.
func (m *MockTaskStore) UpdateCalls() []StatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusUpdate(nil), m.Updates...)
}

// MockConversationStore implements store.ConversationStore.
type MockConversationStore struct {
	CreateFn func(ctx context.Context, c *domain.Conversation) error

	mu            sync.Mutex
	Conversations []domain.Conversation
}

var _ store.ConversationStore = (*MockConversationStore)(nil)

// Create implements store.ConversationStore.
func (m *MockConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, c); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Conversations = append(m.Conversations, *c)
	return nil
}

// MockAgentTaskStore implements store.AgentTaskStore, keeping the latest
// version of every record.
type MockAgentTaskStore struct {
	CreateFn func(ctx context.Context, t *domain.AgentTask) error
	UpdateFn func(ctx context.Context, t *domain.AgentTask) error

	mu      sync.Mutex
	Records []domain.AgentTask
	Creates int
	Updates int
}

var _ store.AgentTaskStore = (*MockAgentTaskStore)(nil)

// Create implements store.AgentTaskStore.
func (m *MockAgentTaskStore) Create(ctx context.Context, t *domain.AgentTask) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(ctx, t); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	m.Records = append(m.Records, *t)
	return nil
}

// Update implements store.AgentTaskStore.
func (m *MockAgentTaskStore) Update(ctx context.Context, t *domain.AgentTask) error {
	if m.UpdateFn != nil {
		if err := m.UpdateFn(ctx, t); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates++
	for i := range m.Records {
		if m.Records[i].ID == t.ID {
			m.Records[i] = *t
			return nil
		}
	}
	return store.ErrAgentTaskNotFound
}

// Last returns the most recently created record.
func (m *MockAgentTaskStore) Last() (domain.AgentTask, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Records) == 0 {
		return domain.AgentTask{}, false
	}
	return m.Records[len(m.Records)-1], true
}
