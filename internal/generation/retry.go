package generation

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/phrazzld/triage/internal/redact"
)

// RetryPolicy controls how often a stream that fails before producing any
// text is reopened.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// backoff returns the wait before retry number attempt (0-based): the base
// delay doubled per attempt with up to 20% jitter.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	jitter := time.Duration(rand.Float64() * 0.2 * float64(d))
	return d + jitter
}

// StreamWithRetry reopens the stream produced by open while it fails with a
// transient error before its first fragment. Once a fragment has been
// yielded any error is passed through, since the consumer already holds
// partial output.
func StreamWithRetry(
	ctx context.Context,
	policy RetryPolicy,
	logger *slog.Logger,
	open func(ctx context.Context) iter.Seq2[string, error],
) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for attempt := 0; ; attempt++ {
			produced := false
			var failure error

			for fragment, err := range open(ctx) {
				if err != nil {
					failure = err
					break
				}
				produced = true
				if !yield(fragment, nil) {
					return
				}
			}

			if failure == nil {
				return
			}

			if produced || !errors.Is(failure, ErrTransientFailure) || attempt >= policy.MaxRetries {
				yield("", failure)
				return
			}

			wait := policy.backoff(attempt)
			logger.WarnContext(ctx, "transient backend failure, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", policy.MaxRetries),
				slog.Duration("backoff", wait),
				slog.String("error", redact.Error(failure)))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				yield("", errors.Join(failure, ctx.Err()))
				return
			case <-timer.C:
			}
		}
	}
}
