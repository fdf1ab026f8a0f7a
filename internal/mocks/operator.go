package mocks

import (
	"context"
	"io"
	"strings"
	"sync"
)

// MockDecisionReader replays scripted operator input and then returns io.EOF.
type MockDecisionReader struct {
	mu     sync.Mutex
	Inputs []string
	Reads  int
}

// NewMockDecisionReader creates a reader that returns inputs in order.
func NewMockDecisionReader(inputs ...string) *MockDecisionReader {
	return &MockDecisionReader{Inputs: inputs}
}

// ReadDecision returns the next scripted input.
func (r *MockDecisionReader) ReadDecision(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Reads >= len(r.Inputs) {
		return "", io.EOF
	}
	in := r.Inputs[r.Reads]
	r.Reads++
	return in, nil
}

// Presented is one message shown to the operator.
type Presented struct {
	Heading string
	Body    string
}

// MockPresenter records everything presented to it.
type MockPresenter struct {
	mu       sync.Mutex
	Messages []Presented
}

// Present records the message.
func (p *MockPresenter) Present(_ context.Context, heading, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Messages = append(p.Messages, Presented{Heading: heading, Body: body})
}

// Headings returns the non-empty headings in presentation order.
func (p *MockPresenter) Headings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, m := range p.Messages {
		if m.Heading != "" {
			out = append(out, m.Heading)
		}
	}
	return out
}

// Contains reports whether any presented body contains substr.
func (p *MockPresenter) Contains(substr string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range p.Messages {
		if strings.Contains(m.Body, substr) {
			return true
		}
	}
	return false
}
