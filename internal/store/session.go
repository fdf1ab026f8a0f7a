package store

import "context"

// Session groups the stores bound to one acquired storage handle.
type Session interface {
	Tasks() TaskStore
	Conversations() ConversationStore
	AgentTasks() AgentTaskStore

	// WithinTx runs fn against a session whose stores share one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, s Session) error) error
}

// Provider hands out storage sessions. Every successful Acquire must be
// paired with a call to the returned release function.
type Provider interface {
	Acquire(ctx context.Context) (Session, func(), error)
}
