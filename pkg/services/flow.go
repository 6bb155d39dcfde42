// Package services implements the business operations of the Forge
// automation core on top of the persistence layer.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgehq/forge/pkg/flow"
	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// FlowValidationError carries the full findings list of a rejected
// definition so the API can return it structured.
type FlowValidationError struct {
	Findings []flow.Finding
}

func (e *FlowValidationError) Error() string {
	return fmt.Sprintf("flow definition is invalid: %d findings", len(e.Findings))
}

func (e *FlowValidationError) Unwrap() error {
	return ErrFlowInvalid
}

// Flow is the flow store service. All mutations pass through the validator;
// the engine relies on that and never re-validates.
type Flow struct {
	persistence persistence.Persistence
}

// NewFlow creates a new flow service.
func NewFlow(persistence persistence.Persistence) *Flow {
	return &Flow{persistence: persistence}
}

// Create stores a new draft flow. The definition may be incomplete at this
// point; only error findings on a non-empty definition are rejected, since a
// flow under construction must be saveable.
func (s *Flow) Create(ctx context.Context, f *models.Flow) (*models.Flow, error) {
	if f.OrgID == "" {
		return nil, &ServiceError{Op: "Create", Err: ErrEmptyOrgID}
	}

	if f.Name == "" {
		return nil, &ServiceError{Op: "Create", Err: ErrFlowNameRequired}
	}

	f.ID = uuid.New().String()
	f.Status = models.FlowStatusDraft
	f.Version = 0

	if f.Definition.Nodes == nil {
		f.Definition.Nodes = []*models.Node{}
	}

	if f.Definition.Edges == nil {
		f.Definition.Edges = []*models.Edge{}
	}

	if err := s.persistence.Flows().Save(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return f, nil
}

// FetchByID returns a flow owned by the organization. Flows of other
// organizations are reported as not found, never as forbidden.
func (s *Flow) FetchByID(ctx context.Context, orgID, id string) (*models.Flow, error) {
	f, err := s.persistence.Flows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if f.OrgID != orgID {
		return nil, persistence.NewEntityError("FetchByID", "flow", id, persistence.ErrFlowNotFound)
	}

	return f, nil
}

// List returns one page of the organization's flows.
func (s *Flow) List(ctx context.Context, opts persistence.ListFlowsOptions) (*persistence.FlowListResult, error) {
	if opts.OrgID == "" {
		return nil, &ServiceError{Op: "List", Err: ErrEmptyOrgID}
	}

	if opts.Status != nil {
		switch *opts.Status {
		case models.FlowStatusDraft, models.FlowStatusPublished, models.FlowStatusArchived:
		default:
			return nil, &ServiceError{Op: "List", Err: ErrInvalidStatus}
		}
	}

	return s.persistence.Flows().List(ctx, opts)
}

// Update applies changes to a flow. A changed definition is re-validated and
// rejected with the findings list when any error-severity finding exists.
func (s *Flow) Update(ctx context.Context, orgID, id string, name, description *string, definition *models.FlowDefinition) (*models.Flow, error) {
	f, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		f.Name = *name
	}

	if description != nil {
		f.Description = *description
	}

	if definition != nil {
		findings := flow.ValidateDefinition(definition)
		if flow.HasErrors(findings) {
			return nil, &FlowValidationError{Findings: findings}
		}

		f.Definition = *definition
	}

	if err := s.persistence.Flows().Save(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	return f, nil
}

// Publish re-validates the definition, bumps the version and marks the flow
// published. This is the only path that increments Version.
func (s *Flow) Publish(ctx context.Context, orgID, id string) (*models.Flow, error) {
	f, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	findings := flow.ValidateDefinition(&f.Definition)
	if flow.HasErrors(findings) {
		return nil, &FlowValidationError{Findings: findings}
	}

	now := time.Now().UTC()
	f.Status = models.FlowStatusPublished
	f.Version++
	f.PublishedAt = &now

	if err := s.persistence.Flows().Save(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save published flow: %w", err)
	}

	return f, nil
}

// Archive marks a flow archived; archived flows cannot be queued.
func (s *Flow) Archive(ctx context.Context, orgID, id string) (*models.Flow, error) {
	f, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	f.Status = models.FlowStatusArchived

	if err := s.persistence.Flows().Save(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save archived flow: %w", err)
	}

	return f, nil
}

// Delete removes a flow permanently. Only drafts can be deleted; published
// and archived flows stay for run history provenance.
func (s *Flow) Delete(ctx context.Context, orgID, id string) error {
	f, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return err
	}

	if f.Status != models.FlowStatusDraft {
		return &ServiceError{Op: "Delete", Err: ErrFlowNotDraft}
	}

	return s.persistence.Flows().Delete(ctx, id)
}

// HealthCheck reports persistence health for the API health endpoint.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if err := s.persistence.HealthCheck(ctx); err != nil {
		return err.Error(), false
	}

	return "ok", true
}
