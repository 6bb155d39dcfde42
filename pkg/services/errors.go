// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/forgehq/forge/pkg/engine"
)

// Business logic errors. These indicate client errors (4xx responses).
var (
	// Validation errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrFlowNameRequired = errors.New("flow name is required")
	ErrEmptyOrgID       = errors.New("organization ID cannot be empty")
	ErrInvalidStatus    = errors.New("invalid flow status")

	// ErrFlowInvalid carries a findings list; see FlowValidationError.
	ErrFlowInvalid = errors.New("flow definition is invalid")

	// Business logic conflicts (409 Conflict). The run lifecycle conflicts
	// originate in the engine and are re-exported here so callers handle
	// every conflict through one package.
	ErrFlowNotPublished   = engine.ErrFlowNotPublished
	ErrFlowNotDraft       = errors.New("only draft flows can be deleted")
	ErrRunNotQueued       = engine.ErrRunNotQueued
	ErrWebhookPaused      = errors.New("webhook is paused")
	ErrCredentialRevoked  = errors.New("credential is revoked")
	ErrEnvironmentInvalid = errors.New("unknown environment name")

	// Authentication failures (401 Unauthorized).
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	ErrCredentialInvalid = errors.New("credential does not match any active key")

	// ErrRateLimited is surfaced to the caller as retryable (429); nothing
	// retries internally.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrEmptyOrgID) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrFlowInvalid) ||
		errors.Is(err, ErrEnvironmentInvalid)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrFlowNotPublished) ||
		errors.Is(err, ErrFlowNotDraft) ||
		errors.Is(err, ErrRunNotQueued) ||
		errors.Is(err, ErrWebhookPaused)
}

// IsAuthError checks if an error is an authentication failure (HTTP 401).
func IsAuthError(err error) bool {
	return errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrCredentialInvalid) ||
		errors.Is(err, ErrCredentialRevoked)
}
