package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/triage/internal/config"
	"github.com/phrazzld/triage/internal/generation"
	"google.golang.org/genai"
)

// Streamer implements generation.Streamer on the Gemini streaming API.
type Streamer struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

var _ generation.Streamer = (*Streamer)(nil)

// NewStreamer creates a Gemini client for the given model. A non-empty
// baseURL redirects requests, which tests use to reach a local server.
func NewStreamer(ctx context.Context, apiKey, model, baseURL string) (*Streamer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	temperature := float32(0.7)
	return &Streamer{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{Temperature: &temperature},
	}, nil
}

// Stream implements generation.Streamer.
func (s *Streamer) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range s.client.Models.GenerateContentStream(ctx, s.model, genai.Text(prompt), s.config) {
			if err != nil {
				yield("", classifyError(ctx, err))
				return
			}

			text, err := responseText(resp)
			if err != nil {
				yield("", err)
				return
			}
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// NewBackend builds the Gemini-backed generation backend described by cfg.
// A backend without an API key is returned unavailable rather than failing.
func NewBackend(
	ctx context.Context,
	cfg config.BackendConfig,
	prompts *generation.Prompts,
	logger *slog.Logger,
) (*generation.LLMBackend, error) {
	opts := generation.Options{
		Name:    cfg.Model,
		Prompts: prompts,
		Retry: generation.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  time.Duration(cfg.RetryDelaySeconds) * time.Second,
		},
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:  logger,
	}

	if cfg.APIKey == "" {
		logger.Warn("gemini backend has no API key and is unavailable", slog.String("model", cfg.Model))
		return generation.NewLLMBackend(nil, opts), nil
	}

	streamer, err := NewStreamer(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	opts.Available = true
	return generation.NewLLMBackend(streamer, opts), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)",
				generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
		}
		return "", nil
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// classifyError marks failures worth retrying as transient.
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: gemini status %d: %w", generation.ErrTransientFailure, code, err)
	case code != 0:
		return fmt.Errorf("%w: gemini status %d: %w", generation.ErrGenerationFailed, code, err)
	default:
		return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
	}
}
