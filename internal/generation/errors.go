package generation

import "errors"

// Common errors returned by the generation package and its backends
var (
	// ErrGenerationFailed is returned when a backend fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate text")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during text generation")

	// ErrInvalidConfig is returned when the backend configuration is invalid
	ErrInvalidConfig = errors.New("invalid backend configuration")

	// ErrNoBackendAvailable is returned when neither backend can be used
	ErrNoBackendAvailable = errors.New("no backend available")

	// ErrBackendUnavailable is returned when the specifically required backend is down
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnsupported is returned when a backend lacks a capability its caller requires
	ErrUnsupported = errors.New("capability not supported by backend")
)
