// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidTaskStatus is returned when a task status is not one of the known values.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidUrgency is returned when an urgency tier is empty.
	ErrInvalidUrgency = errors.New("invalid urgency")

	// ErrUnknownDecision is returned when operator input is not one of the decision keywords.
	ErrUnknownDecision = errors.New("unknown decision")

	// ErrAgentTaskFinished is returned when an agent task that already reached a
	// terminal status is asked to transition again.
	ErrAgentTaskFinished = errors.New("agent task already finished")
)
