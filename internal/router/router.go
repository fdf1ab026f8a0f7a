// Package router selects which backend answers an input and falls back to the
// other backend once when the first choice fails.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/triage/internal/generation"
	"github.com/phrazzld/triage/internal/metrics"
	"github.com/phrazzld/triage/internal/platform/logger"
	"github.com/phrazzld/triage/internal/redact"
)

// Predicate reports whether an input needs the deep-thinking backend.
type Predicate func(input string) bool

// DefaultTriggerWords select the deep backend under KeywordPredicate.
func DefaultTriggerWords() []string {
	return []string{"analyze", "compare", "evaluate", "synthesize"}
}

// KeywordPredicate matches when any word occurs in the input as a
// case-insensitive substring. Empty words are ignored.
func KeywordPredicate(words ...string) Predicate {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			lowered = append(lowered, w)
		}
	}
	return func(input string) bool {
		in := strings.ToLower(input)
		for _, w := range lowered {
			if strings.Contains(in, w) {
				return true
			}
		}
		return false
	}
}

// Answer is a routed response and the backend that produced it.
type Answer struct {
	Text     string
	Model    string
	FellBack bool
}

// Router holds the two backends and the selection rule. It keeps no state
// between calls.
type Router struct {
	defaultBackend    generation.Backend
	deepBackend       generation.Backend
	needsDeepThinking Predicate
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

// Option customizes a Router.
type Option func(*Router)

// WithPredicate replaces the deep-thinking predicate.
func WithPredicate(p Predicate) Option {
	return func(r *Router) {
		if p != nil {
			r.needsDeepThinking = p
		}
	}
}

// WithMetrics records routing activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// New creates a Router. Without WithPredicate the router uses
// KeywordPredicate(DefaultTriggerWords()...).
func New(defaultBackend, deepBackend generation.Backend, log *slog.Logger, opts ...Option) *Router {
	if defaultBackend == nil || deepBackend == nil {
		panic("router requires both backends")
	}
	if log == nil {
		log = slog.Default()
	}

	r := &Router{
		defaultBackend:    defaultBackend,
		deepBackend:       deepBackend,
		needsDeepThinking: KeywordPredicate(DefaultTriggerWords()...),
		logger:            log.With(slog.String("component", "router")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns the default backend.
func (r *Router) Default() generation.Backend { return r.defaultBackend }

// Select returns the primary backend for input and the alternate used on
// failure. The deep backend is primary only when it is available and the
// predicate matches.
func (r *Router) Select(input string) (primary, alternate generation.Backend) {
	if r.deepBackend.Available() && r.needsDeepThinking(input) {
		return r.deepBackend, r.defaultBackend
	}
	return r.defaultBackend, r.deepBackend
}

// RouteAndAnswer answers input with the selected backend, retrying once from
// scratch on the other backend when the first attempt fails and the other is
// available. When the fallback also fails the original error is returned
// with the fallback error joined as secondary detail.
//
// At most two backends are invoked. Each backend may itself retry transient
// failures that occur before its first fragment, so one call reaches the
// providers at most (default.MaxRetries+1)+(deep.MaxRetries+1) times. With the
// default max_retries of 0 that is two.
func (r *Router) RouteAndAnswer(ctx context.Context, input string, c generation.Context) (Answer, error) {
	log := logger.FromContextOrDefault(ctx, r.logger)

	if !r.defaultBackend.Available() && !r.deepBackend.Available() {
		log.Error("no backend available")
		return Answer{}, generation.ErrNoBackendAvailable
	}

	primary, alternate := r.Select(input)
	r.metrics.IncRouteSelection(primary.Name())
	log.Debug("backend selected",
		slog.String("backend", primary.Name()),
		slog.Bool("deep", primary == r.deepBackend))

	text, err := r.attempt(ctx, primary, input, c)
	if err == nil {
		return Answer{Text: text, Model: primary.Name()}, nil
	}

	r.metrics.IncBackendFailure(primary.Name())
	log.Warn("primary backend failed",
		slog.String("backend", primary.Name()),
		slog.String("error", redact.Error(err)))

	if !alternate.Available() {
		return Answer{}, err
	}

	text, fallbackErr := r.attempt(ctx, alternate, input, c)
	if fallbackErr != nil {
		r.metrics.IncBackendFailure(alternate.Name())
		r.metrics.IncFallback(primary.Name(), alternate.Name(), "failure")
		log.Error("fallback backend failed",
			slog.String("backend", alternate.Name()),
			slog.String("error", redact.Error(fallbackErr)))
		return Answer{}, errors.Join(err, fmt.Errorf("fallback %s: %w", alternate.Name(), fallbackErr))
	}

	r.metrics.IncFallback(primary.Name(), alternate.Name(), "success")
	log.Info("answered by fallback backend",
		slog.String("from", primary.Name()),
		slog.String("to", alternate.Name()))
	return Answer{Text: text, Model: alternate.Name(), FellBack: true}, nil
}

func (r *Router) attempt(ctx context.Context, b generation.Backend, input string, c generation.Context) (string, error) {
	if !b.Available() {
		return "", fmt.Errorf("%w: %s", generation.ErrBackendUnavailable, b.Name())
	}
	return generation.Collect(b.Process(ctx, input, c))
}
