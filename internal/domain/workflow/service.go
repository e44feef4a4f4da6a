package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service carries the read/admin side of the workflow domain: request
// listings and category/workflow configuration. Lifecycle changes go
// through the Engine.
type Service struct {
	Store     *Store
	Directory Directory
}

func NewService(store *Store, directory Directory) *Service {
	return &Service{Store: store, Directory: directory}
}

func (s *Service) ListMine(ctx context.Context, userID string, limit, offset int) ([]*LeaveRequest, error) {
	return s.Store.ListRequestsForUser(ctx, userID, limit, offset)
}

// ListPendingForApprover returns the open requests whose current step the
// actor may decide. Eligibility is evaluated per request against the
// snapshot plan, not live workflow config.
func (s *Service) ListPendingForApprover(ctx context.Context, actorID string, limit, offset int) ([]*LeaveRequest, error) {
	open, err := s.Store.ListOpenRequests(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	var pending []*LeaveRequest
	for _, req := range open {
		step, ok := req.CurrentStep()
		if !ok {
			slog.Warn("request cursor outside plan", "requestId", req.ID, "cursor", req.StepCursor)
			continue
		}
		eligible, err := s.Directory.IsEligibleApprover(ctx, actorID, req.UserID, step.Role)
		if err != nil {
			return nil, err
		}
		if eligible {
			pending = append(pending, req)
		}
	}
	return pending, nil
}

func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]WorkflowCategory, error) {
	return s.Store.ListCategories(ctx, activeOnly)
}

func (s *Service) CreateCategory(ctx context.Context, c WorkflowCategory) (string, error) {
	if err := validateCategory(&c); err != nil {
		return "", err
	}
	s.warnOnCategoryOverlap(ctx, c)
	return s.Store.CreateCategory(ctx, c)
}

func (s *Service) UpdateCategory(ctx context.Context, c WorkflowCategory) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: category id is required", ErrValidation)
	}
	if err := validateCategory(&c); err != nil {
		return err
	}
	s.warnOnCategoryOverlap(ctx, c)
	return s.Store.UpdateCategory(ctx, c)
}

func validateCategory(c *WorkflowCategory) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	if c.MinDays.IsNegative() || c.MaxDays.LessThan(c.MinDays) {
		return fmt.Errorf("%w: category day range is invalid", ErrValidation)
	}
	if c.MaxSteps < 1 {
		return fmt.Errorf("%w: category needs at least one step", ErrValidation)
	}
	return nil
}

// Overlapping ranges are legal (resolution tie-breaks on ascending minDays)
// but usually a configuration mistake, so they are logged.
func (s *Service) warnOnCategoryOverlap(ctx context.Context, c WorkflowCategory) {
	existing, err := s.Store.ListCategories(ctx, true)
	if err != nil {
		return
	}
	for _, other := range existing {
		if other.ID == c.ID {
			continue
		}
		if c.MinDays.LessThanOrEqual(other.MaxDays) && other.MinDays.LessThanOrEqual(c.MaxDays) {
			slog.Warn("category ranges overlap", "category", c.Name, "overlaps", other.Name)
		}
	}
}

func (s *Service) ListWorkflows(ctx context.Context, activeOnly bool) ([]ApprovalWorkflow, error) {
	return s.Store.ListWorkflows(ctx, activeOnly)
}

func (s *Service) CreateWorkflow(ctx context.Context, wf ApprovalWorkflow) (string, error) {
	if err := validateWorkflow(&wf); err != nil {
		return "", err
	}
	s.warnOnWorkflowOverlap(ctx, wf)
	return s.Store.CreateWorkflow(ctx, wf)
}

func (s *Service) UpdateWorkflow(ctx context.Context, wf ApprovalWorkflow) error {
	if strings.TrimSpace(wf.ID) == "" {
		return fmt.Errorf("%w: workflow id is required", ErrValidation)
	}
	if err := validateWorkflow(&wf); err != nil {
		return err
	}
	s.warnOnWorkflowOverlap(ctx, wf)
	return s.Store.UpdateWorkflow(ctx, wf)
}

func validateWorkflow(wf *ApprovalWorkflow) error {
	wf.Name = strings.TrimSpace(wf.Name)
	if wf.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrValidation)
	}
	if wf.MinDays.IsNegative() || wf.MaxDays.LessThan(wf.MinDays) {
		return fmt.Errorf("%w: workflow day range is invalid", ErrValidation)
	}
	if len(wf.ApprovalLevels) == 0 {
		return fmt.Errorf("%w: workflow needs at least one approval level", ErrValidation)
	}
	for _, role := range wf.ApprovalLevels {
		if !role.Valid() {
			return fmt.Errorf("%w: unknown approver role %q", ErrValidation, role)
		}
	}
	return nil
}

func (s *Service) warnOnWorkflowOverlap(ctx context.Context, wf ApprovalWorkflow) {
	existing, err := s.Store.ListWorkflows(ctx, true)
	if err != nil {
		return
	}
	for _, other := range existing {
		if other.ID == wf.ID {
			continue
		}
		if wf.MinDays.LessThanOrEqual(other.MaxDays) && other.MinDays.LessThanOrEqual(wf.MaxDays) {
			slog.Warn("workflow ranges overlap", "workflow", wf.Name, "overlaps", other.Name)
		}
	}
}
