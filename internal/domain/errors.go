package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when attempting to claim a job that is not enqueued
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in enqueued status")

	// ErrInvalidPayload is returned when job payload JSON is malformed or does not match the job kind
	ErrInvalidPayload = errors.New("invalid job payload")

	ErrInfluencerNotFound = errors.New("influencer not found")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrScheduleNotFound   = errors.New("schedule not found")

	// ErrExportFailed is returned when the provider reports a failed export
	ErrExportFailed = errors.New("export failed")

	// ErrExportPollingExceeded is returned when an export never reached a terminal state
	ErrExportPollingExceeded = errors.New("export polling limit exceeded")
)

// IsNotFound reports whether err refers to a missing job, influencer, profile, account or schedule.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrInfluencerNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrScheduleNotFound)
}

// ValidationError rejects a malformed scheduling request before anything is enqueued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
