// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrRunNotFound indicates a run was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNodeNotFound indicates a run node record was not found.
	ErrRunNodeNotFound = errors.New("run node not found")

	// ErrCredentialNotFound indicates a credential was not found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrEnvironmentNotFound indicates an environment was not found.
	ErrEnvironmentNotFound = errors.New("environment not found")

	// ErrWebhookNotFound indicates a webhook was not found by id or slug.
	ErrWebhookNotFound = errors.New("webhook not found")
)

// EntityError wraps persistence errors with operation context.
type EntityError struct {
	Op       string // Operation being performed (e.g. "GetByID", "Save")
	Entity   string // Entity kind ("flow", "run", ...)
	EntityID string // Identifier if applicable
	Err      error  // Underlying error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.EntityID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

func (e *EntityError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewEntityError creates a new persistence error with context.
func NewEntityError(op, entity, entityID string, err error) *EntityError {
	return &EntityError{
		Op:       op,
		Entity:   entity,
		EntityID: entityID,
		Err:      err,
	}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsRunNodeNotFound checks if an error indicates a run node record was not found.
func IsRunNodeNotFound(err error) bool {
	return errors.Is(err, ErrRunNodeNotFound)
}

// IsCredentialNotFound checks if an error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsEnvironmentNotFound checks if an error indicates an environment was not found.
func IsEnvironmentNotFound(err error) bool {
	return errors.Is(err, ErrEnvironmentNotFound)
}

// IsWebhookNotFound checks if an error indicates a webhook was not found.
func IsWebhookNotFound(err error) bool {
	return errors.Is(err, ErrWebhookNotFound)
}
