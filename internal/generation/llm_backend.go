package generation

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/phrazzld/triage/internal/domain"
	"github.com/phrazzld/triage/internal/redact"
)

// Streamer performs one streaming completion of a fully rendered prompt.
// Implementations wrap failures that may succeed on retry with
// ErrTransientFailure.
type Streamer interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Options configures an LLMBackend.
type Options struct {
	// Name is the model identifier reported by Name.
	Name string

	// Available is fixed for the lifetime of the backend.
	Available bool

	Prompts *Prompts
	Retry   RetryPolicy

	// Timeout bounds one call including retries. Zero means no bound.
	Timeout time.Duration

	Logger *slog.Logger
}

// LLMBackend implements Backend, Summarizer and ActionPrompter on top of a
// provider Streamer by rendering prompt templates and applying the retry policy.
type LLMBackend struct {
	streamer Streamer
	name     string
	avail    bool
	prompts  *Prompts
	retry    RetryPolicy
	timeout  time.Duration
	logger   *slog.Logger
}

var (
	_ Backend        = (*LLMBackend)(nil)
	_ Summarizer     = (*LLMBackend)(nil)
	_ ActionPrompter = (*LLMBackend)(nil)
)

// NewLLMBackend creates an LLMBackend. A nil Prompts uses the embedded defaults.
func NewLLMBackend(s Streamer, opts Options) *LLMBackend {
	if opts.Prompts == nil {
		opts.Prompts = DefaultPrompts()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LLMBackend{
		streamer: s,
		name:     opts.Name,
		avail:    opts.Available && s != nil,
		prompts:  opts.Prompts,
		retry:    opts.Retry,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With(slog.String("component", "backend"), slog.String("model", opts.Name)),
	}
}

// Name implements Backend.
func (b *LLMBackend) Name() string { return b.name }

// Available implements Backend.
func (b *LLMBackend) Available() bool { return b.avail }

// Process implements Backend.
func (b *LLMBackend) Process(ctx context.Context, input string, c Context) iter.Seq2[string, error] {
	prompt, err := b.prompts.Chat(input, c)
	if err != nil {
		return Failure(err)
	}
	return b.run(ctx, "process", prompt)
}

// Summarize implements Summarizer.
func (b *LLMBackend) Summarize(ctx context.Context, batchText string) iter.Seq2[string, error] {
	prompt, err := b.prompts.Summary(batchText)
	if err != nil {
		return Failure(err)
	}
	return b.run(ctx, "summarize", prompt)
}

// GenerateActionPrompt implements ActionPrompter.
func (b *LLMBackend) GenerateActionPrompt(
	ctx context.Context,
	task domain.TaskSnapshot,
) iter.Seq2[string, error] {
	prompt, err := b.prompts.Action(task)
	if err != nil {
		return Failure(err)
	}
	return b.run(ctx, "action_prompt", prompt)
}

func (b *LLMBackend) run(ctx context.Context, op, prompt string) iter.Seq2[string, error] {
	if !b.avail {
		return Failure(fmt.Errorf("%w: %s", ErrBackendUnavailable, b.name))
	}

	return func(yield func(string, error) bool) {
		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}

		b.logger.DebugContext(callCtx, "backend call started",
			slog.String("operation", op),
			slog.Int("prompt_length", len(prompt)))

		open := func(ctx context.Context) iter.Seq2[string, error] {
			return b.streamer.Stream(ctx, prompt)
		}

		fragments := 0
		for fragment, err := range StreamWithRetry(callCtx, b.retry, b.logger, open) {
			if err != nil {
				b.logger.ErrorContext(callCtx, "backend call failed",
					slog.String("operation", op),
					slog.Int("fragments", fragments),
					slog.String("error", redact.Error(err)))
				yield("", err)
				return
			}
			fragments++
			if !yield(fragment, nil) {
				return
			}
		}

		b.logger.DebugContext(callCtx, "backend call finished",
			slog.String("operation", op),
			slog.Int("fragments", fragments))
	}
}
