package generation_test

import (
	"errors"
	"testing"

	"github.com/phrazzld/triage/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("concatenates in order", func(t *testing.T) {
		t.Parallel()
		text, err := generation.Collect(generation.Fragments("Hel", "lo", ", ", "world"))
		require.NoError(t, err)
		assert.Equal(t, "Hello, world", text)
	})

	t.Run("empty sequence", func(t *testing.T) {
		t.Parallel()
		text, err := generation.Collect(generation.Fragments())
		require.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("error aborts", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("stream dropped")
		text, err := generation.Collect(generation.Failure(boom, "partial "))
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, text)
	})
}

func TestFragmentsStopsWhenConsumerStops(t *testing.T) {
	t.Parallel()

	var seen []string
	for f, err := range generation.Fragments("a", "b", "c") {
		require.NoError(t, err)
		seen = append(seen, f)
		if f == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}
