package batch

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/phrazzld/triage/internal/domain"
	"github.com/pkoukk/tiktoken-go"
)

// Estimator approximates the size of a task in tokens.
type Estimator interface {
	Estimate(t domain.Task) int
}

// CharQuarter estimates a quarter token per character of the task's
// serialized form.
type CharQuarter struct{}

// Estimate implements Estimator.
func (CharQuarter) Estimate(t domain.Task) int {
	return len(t.String()) / 4
}

// DefaultEncoding is the tiktoken encoding used by TokenEstimator.
const DefaultEncoding = "cl100k_base"

// TokenEstimator counts tokens of the task's serialized form with tiktoken
// and caches results by serialized text.
type TokenEstimator struct {
	encoding *tiktoken.Tiktoken
	cache    *lru.Cache[string, int]
	fallback CharQuarter
}

// NewTokenEstimator loads the encoding and allocates a cache of cacheSize
// entries. When the encoding cannot be loaded the estimator degrades to
// CharQuarter and logs a warning; it never fails.
func NewTokenEstimator(cacheSize int, logger *slog.Logger) *TokenEstimator {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}

	e := &TokenEstimator{}

	enc, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using character estimate",
			slog.String("encoding", DefaultEncoding),
			slog.String("error", err.Error()))
	} else {
		e.encoding = enc
	}

	cache, err := lru.New[string, int](cacheSize)
	if err == nil {
		e.cache = cache
	}

	return e
}

// Estimate implements Estimator.
func (e *TokenEstimator) Estimate(t domain.Task) int {
	if e == nil || e.encoding == nil {
		return CharQuarter{}.Estimate(t)
	}

	text := t.String()
	if e.cache != nil {
		if n, ok := e.cache.Get(text); ok {
			return n
		}
	}

	n := len(e.encoding.Encode(text, nil, nil))
	if e.cache != nil {
		e.cache.Add(text, n)
	}
	return n
}
