package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/triage/internal/config"
	"github.com/phrazzld/triage/internal/generation"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// maxErrorBody caps how much of an error response is kept in the error message.
const maxErrorBody = 4 * 1024

// Streamer implements generation.Streamer over /chat/completions with stream=true.
type Streamer struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger
}

var _ generation.Streamer = (*Streamer)(nil)

// NewStreamer creates a Streamer. An empty baseURL selects DefaultBaseURL.
func NewStreamer(apiKey, model, baseURL string, logger *slog.Logger) (*Streamer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Streamer{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		logger:     logger.With(slog.String("component", "openai_streamer")),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream implements generation.Streamer.
func (s *Streamer) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := json.Marshal(chatRequest{
			Model:    s.model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
			Stream:   true,
		})
		if err != nil {
			yield("", fmt.Errorf("marshal request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			yield("", fmt.Errorf("%w: build request: %v", generation.ErrGenerationFailed, err))
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			yield("", wrapRequestError(ctx, err))
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			yield("", mapHTTPError(resp.StatusCode, respBody))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}

			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				s.logger.DebugContext(ctx, "failed to decode stream chunk", slog.String("error", err.Error()))
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.FinishReason != nil && *choice.FinishReason == "content_filter" {
				yield("", fmt.Errorf("%w: response stopped by content filter", generation.ErrContentBlocked))
				return
			}
			if choice.Delta.Content == "" {
				continue
			}
			if !yield(choice.Delta.Content, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield("", wrapRequestError(ctx, err))
		}
	}
}

// NewBackend builds the OpenAI-backed generation backend described by cfg.
// A backend without an API key is returned unavailable rather than failing.
func NewBackend(cfg config.BackendConfig, prompts *generation.Prompts, logger *slog.Logger) (*generation.LLMBackend, error) {
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
		logger.Warn("openai backend has no API key and is unavailable", slog.String("model", cfg.Model))
		return generation.NewLLMBackend(nil, opts), nil
	}

	streamer, err := NewStreamer(cfg.APIKey, cfg.Model, cfg.BaseURL, logger)
	if err != nil {
		return nil, err
	}

	opts.Available = true
	return generation.NewLLMBackend(streamer, opts), nil
}

// mapHTTPError classifies a non-2xx response. Rate limits and server errors
// are transient.
func mapHTTPError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error.Message != "" {
		msg = payload.Error.Message
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: openai status %d: %s", generation.ErrTransientFailure, status, msg)
	}
	return fmt.Errorf("%w: openai status %d: %s", generation.ErrGenerationFailed, status, msg)
}

// wrapRequestError marks transport failures as transient unless the caller
// cancelled or the deadline passed.
func wrapRequestError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", generation.ErrGenerationFailed, err)
	}
	return fmt.Errorf("%w: %w", generation.ErrTransientFailure, err)
}
