// ABOUTME: Error taxonomy shared by providers, storage, core and transports
// ABOUTME: Sentinels plus typed errors that unwrap to them for errors.Is checks
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrProviderUnavailable covers connection failures, timeouts and 5xx responses
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderAuth indicates rejected or missing credentials
	ErrProviderAuth = errors.New("provider authentication failed")
	// ErrProviderRateLimited indicates the provider is throttling requests
	ErrProviderRateLimited = errors.New("provider rate limited")
	// ErrEmbeddingDimensionMismatch is a fatal configuration error
	ErrEmbeddingDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbeddingModelMismatch means a translation was embedded with another model
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")
	// ErrTranslationNotFound is a client error for unknown translation codes
	ErrTranslationNotFound = errors.New("translation not found")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// ProviderError describes a failed call to an embedding or language model backend.
// Kind is one of ErrProviderUnavailable, ErrProviderAuth or ErrProviderRateLimited.
type ProviderError struct {
	Provider   string
	Op         string
	Kind       error
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches the error kind so callers can test errors.Is(err, ErrProviderAuth)
func (e *ProviderError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewProviderError builds a ProviderError. A nil kind means unavailable.
func NewProviderError(provider, op string, kind error, status int, err error) *ProviderError {
	if kind == nil {
		kind = ErrProviderUnavailable
	}
	return &ProviderError{Provider: provider, Op: op, Kind: kind, StatusCode: status, Err: err}
}

// DimensionMismatchError is returned when a backend produces vectors of the wrong size
type DimensionMismatchError struct {
	Provider string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("invalid embedding dimension from %s: expected %d, got %d", e.Provider, e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrEmbeddingDimensionMismatch }

// TranslationNotFoundError is returned for translation codes outside the catalog
type TranslationNotFoundError struct {
	Code string
}

func (e *TranslationNotFoundError) Error() string {
	return fmt.Sprintf("translation not found: %s", e.Code)
}

func (e *TranslationNotFoundError) Unwrap() error { return ErrTranslationNotFound }

// NotFoundError represents a missing corpus row
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// UserFacingError carries a message safe to show callers. Err holds the
// internal cause for logging and errors.Is; it is never rendered.
type UserFacingError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserFacingError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Hint)
	}
	return e.Message
}

func (e *UserFacingError) Unwrap() error { return e.Err }

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsProviderFailure reports whether err is one of the recoverable provider kinds
func IsProviderFailure(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrProviderAuth) ||
		errors.Is(err, ErrProviderRateLimited)
}

// IsFatal reports whether err is a configuration-level error that must not be retried
func IsFatal(err error) bool {
	return errors.Is(err, ErrEmbeddingDimensionMismatch) ||
		errors.Is(err, ErrEmbeddingModelMismatch) ||
		errors.Is(err, ErrInvalidConfig)
}
