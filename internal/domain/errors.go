package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates that a required identity key or argument is absent or malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAmbiguousIdentity indicates that an upsert matched more than one existing entity.
	ErrAmbiguousIdentity = errors.New("ambiguous identity")

	// ErrRateLimited indicates that the request was rate limited by an upstream source.
	ErrRateLimited = errors.New("rate limited")

	// ErrFetchRetryable indicates a transient upstream fetch failure (timeout, 5xx).
	ErrFetchRetryable = errors.New("retryable fetch error")

	// ErrFetchPermanent indicates a non-retryable upstream fetch failure (4xx, bad URL).
	ErrFetchPermanent = errors.New("permanent fetch error")

	// ErrIndexUnavailable indicates that the document store cannot be reached.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrInvalidTransition indicates a directory record status change that is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInsufficientData indicates an indicator run that produced fewer items than the minimum.
	ErrInsufficientData = errors.New("insufficient data")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AmbiguousIdentityError provides details about an upsert that matched multiple rows.
type AmbiguousIdentityError struct {
	Entity  string
	Keys    string
	Matches int
}

// Error implements the error interface.
func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("%s identity is ambiguous (%d matches for %s)", e.Entity, e.Matches, e.Keys)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AmbiguousIdentityError) Unwrap() error {
	return ErrAmbiguousIdentity
}

// InvalidArgumentError reports a missing or malformed identity key.
type InvalidArgumentError struct {
	Entity string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument for %s: %s: %s", e.Entity, e.Field, e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// RetryableFetchError wraps a transient transport failure from an upstream source.
type RetryableFetchError struct {
	Source     string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *RetryableFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch failed (status %d): %v", e.Source, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s fetch failed: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RetryableFetchError) Unwrap() error {
	return ErrFetchRetryable
}

// PermanentFetchError wraps a non-retryable failure from an upstream source.
type PermanentFetchError struct {
	Source     string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *PermanentFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch rejected (status %d): %v", e.Source, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("%s fetch rejected: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *PermanentFetchError) Unwrap() error {
	return ErrFetchPermanent
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// IndexUnavailableError reports a document store connection failure.
type IndexUnavailableError struct {
	Index string
	Cause error
}

// Error implements the error interface.
func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index %s unavailable: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *IndexUnavailableError) Unwrap() error {
	return ErrIndexUnavailable
}

// InvalidTransitionError reports a disallowed directory record status change.
type InvalidTransitionError struct {
	From RecordStatus
	To   RecordStatus
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition record status from %s to %s", e.From, e.To)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAmbiguousIdentityError creates a new AmbiguousIdentityError.
func NewAmbiguousIdentityError(entity, keys string, matches int) *AmbiguousIdentityError {
	return &AmbiguousIdentityError{
		Entity:  entity,
		Keys:    keys,
		Matches: matches,
	}
}

// NewInvalidArgumentError creates a new InvalidArgumentError.
func NewInvalidArgumentError(entity, field, reason string) *InvalidArgumentError {
	return &InvalidArgumentError{
		Entity: entity,
		Field:  field,
		Reason: reason,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRetryableFetchError creates a new RetryableFetchError.
func NewRetryableFetchError(source string, statusCode int, cause error) *RetryableFetchError {
	return &RetryableFetchError{
		Source:     source,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewPermanentFetchError creates a new PermanentFetchError.
func NewPermanentFetchError(source string, statusCode int, cause error) *PermanentFetchError {
	return &PermanentFetchError{
		Source:     source,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewIndexUnavailableError creates a new IndexUnavailableError.
func NewIndexUnavailableError(index string, cause error) *IndexUnavailableError {
	return &IndexUnavailableError{
		Index: index,
		Cause: cause,
	}
}
