package generation

import (
	"context"
	"iter"
	"strings"

	"github.com/phrazzld/triage/internal/domain"
)

// Backend is the capability every text-generation service must satisfy.
// It serves as the boundary between the application core and external LLM
// services, following the hexagonal architecture pattern.
type Backend interface {
	// Name returns the model identifier recorded as the producer of a response.
	Name() string

	// Available reports whether the backend can be used. It is computed once at
	// construction (for example from credential presence) and never changes.
	Available() bool

	// Process streams a response to the input. The sequence may yield an error
	// at any point; the error ends the sequence and callers must stop iterating.
	Process(ctx context.Context, input string, c Context) iter.Seq2[string, error]
}

// Summarizer is implemented by backends that can summarize a batch of tasks.
type Summarizer interface {
	Summarize(ctx context.Context, batchText string) iter.Seq2[string, error]
}

// ActionPrompter is implemented by backends that can suggest how to act on a task.
type ActionPrompter interface {
	GenerateActionPrompt(ctx context.Context, task domain.TaskSnapshot) iter.Seq2[string, error]
}

// Exchange is one prior input/response pair of a conversation.
type Exchange struct {
	Input    string `json:"input"`
	Response string `json:"response"`
}

// Context carries optional conversation state for a Process call.
type Context struct {
	IsGreeting bool       `json:"is_greeting,omitempty"`
	HasTasks   bool       `json:"has_tasks,omitempty"`
	TaskCount  int        `json:"task_count,omitempty"`
	History    []Exchange `json:"history,omitempty"`
	TaskID     *int64     `json:"task_id,omitempty"`
}

// Collect drains a fragment sequence, concatenating fragments in the order
// produced. The first error aborts collection and is returned with whatever
// text was accumulated so far discarded.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var b strings.Builder
	for fragment, err := range seq {
		if err != nil {
			return "", err
		}
		b.WriteString(fragment)
	}
	return b.String(), nil
}

// Fragments returns a sequence yielding the given fragments.
func Fragments(fragments ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
	}
}

// Failure returns a sequence that yields the given fragments and then err.
func Failure(err error, fragments ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
		yield("", err)
	}
}
