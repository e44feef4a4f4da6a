package directory

import (
	"context"
	"errors"
	"strings"
	"time"

	"lms/internal/domain/auth"
	"lms/internal/domain/workflow"
)

var ErrInvalidUser = errors.New("invalid user payload")

// Timeout applied to each eligibility lookup so a slow directory query
// surfaces as a retryable failure instead of stalling a decision.
const eligibilityTimeout = 3 * time.Second

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

// IsEligibleApprover reports whether the actor may decide a step requiring
// the given role for the submitter's request. Unknown roles are ineligible
// rather than an error, so a stale plan snapshot cannot block on lookup.
func (s *Service) IsEligibleApprover(ctx context.Context, actorID, submitterID string, role workflow.ApproverRole) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, eligibilityTimeout)
	defer cancel()

	switch role {
	case workflow.RoleManager:
		return s.Store.IsManagerOf(ctx, actorID, submitterID)
	case workflow.RoleTeamLead:
		return s.Store.IsTeamLeadOf(ctx, actorID, submitterID)
	case workflow.RoleDepartmentHead:
		return s.Store.IsDepartmentHeadOf(ctx, actorID, submitterID)
	case workflow.RoleHR:
		assigned, err := s.Store.IsAssignedHROf(ctx, actorID, submitterID)
		if err != nil {
			return false, err
		}
		if assigned {
			return true, nil
		}
		return s.Store.ActiveUserHasRole(ctx, actorID, auth.RoleHR)
	case workflow.RoleSuperAdmin:
		return s.Store.ActiveUserHasRole(ctx, actorID, auth.RoleSuperAdmin)
	}
	return false, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	return s.Store.GetUser(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	return s.Store.ListUsers(ctx, limit, offset)
}

func (s *Service) CreateUser(ctx context.Context, u User, password string) (string, error) {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Email == "" || strings.TrimSpace(u.FirstName) == "" || strings.TrimSpace(u.RoleID) == "" {
		return "", ErrInvalidUser
	}
	if len(password) < 8 {
		return "", ErrInvalidUser
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	return s.Store.CreateUser(ctx, u, hash)
}

func (s *Service) UpdateUser(ctx context.Context, u User) error {
	if strings.TrimSpace(u.ID) == "" {
		return ErrInvalidUser
	}
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Email == "" || strings.TrimSpace(u.RoleID) == "" {
		return ErrInvalidUser
	}
	return s.Store.UpdateUser(ctx, u)
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.Store.ListRoles(ctx)
}

func (s *Service) ListDepartments(ctx context.Context) ([]Department, error) {
	return s.Store.ListDepartments(ctx)
}

func (s *Service) CreateDepartment(ctx context.Context, d Department) (string, error) {
	if strings.TrimSpace(d.Name) == "" {
		return "", errors.New("department name is required")
	}
	return s.Store.CreateDepartment(ctx, d)
}

func (s *Service) UpdateDepartment(ctx context.Context, d Department) error {
	if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Name) == "" {
		return errors.New("department id and name are required")
	}
	return s.Store.UpdateDepartment(ctx, d)
}

func (s *Service) ListPositions(ctx context.Context) ([]Position, error) {
	return s.Store.ListPositions(ctx)
}

func (s *Service) CreatePosition(ctx context.Context, p Position) (string, error) {
	if strings.TrimSpace(p.Name) == "" {
		return "", errors.New("position name is required")
	}
	return s.Store.CreatePosition(ctx, p)
}
