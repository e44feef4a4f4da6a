package workflow

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusPartiallyApproved Status = "partially_approved"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusPendingDeletion   Status = "pending_deletion"
)

// Terminal reports whether no further decision or cancellation may touch a
// request in this status. partially_approved is not terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusPendingDeletion:
		return true
	}
	return false
}

type RequestType string

const (
	RequestFullDay    RequestType = "full_day"
	RequestFirstHalf  RequestType = "first_half"
	RequestSecondHalf RequestType = "second_half"
)

func (t RequestType) Valid() bool {
	switch t {
	case RequestFullDay, RequestFirstHalf, RequestSecondHalf:
		return true
	}
	return false
}

func (t RequestType) HalfDay() bool {
	return t == RequestFirstHalf || t == RequestSecondHalf
}

type ApproverRole string

const (
	RoleTeamLead       ApproverRole = "team_lead"
	RoleManager        ApproverRole = "manager"
	RoleDepartmentHead ApproverRole = "department_head"
	RoleHR             ApproverRole = "hr"
	RoleSuperAdmin     ApproverRole = "super_admin"
)

func (r ApproverRole) Valid() bool {
	switch r {
	case RoleTeamLead, RoleManager, RoleDepartmentHead, RoleHR, RoleSuperAdmin:
		return true
	}
	return false
}

type WorkflowCategory struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	MinDays  decimal.Decimal `json:"minDays"`
	MaxDays  decimal.Decimal `json:"maxDays"`
	MaxSteps int             `json:"maxSteps"`
	IsActive bool            `json:"isActive"`
}

// Contains reports whether days falls inside the category's inclusive range.
func (c WorkflowCategory) Contains(days decimal.Decimal) bool {
	return days.GreaterThanOrEqual(c.MinDays) && days.LessThanOrEqual(c.MaxDays)
}

type ApprovalWorkflow struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	MinDays        decimal.Decimal `json:"minDays"`
	MaxDays        decimal.Decimal `json:"maxDays"`
	ApprovalLevels []ApproverRole  `json:"approvalLevels"`
	IsActive       bool            `json:"isActive"`
}

func (w ApprovalWorkflow) Contains(days decimal.Decimal) bool {
	return days.GreaterThanOrEqual(w.MinDays) && days.LessThanOrEqual(w.MaxDays)
}

// PlanStep is one entry of the step plan snapshotted onto a request at
// submission. Level is 1-based.
type PlanStep struct {
	Level int          `json:"level"`
	Role  ApproverRole `json:"role"`
}

// StepPlan is the immutable approval route captured when a request is
// submitted. Later edits to categories or workflows never affect it.
type StepPlan struct {
	CategoryID   string     `json:"categoryId"`
	CategoryName string     `json:"categoryName"`
	WorkflowID   string     `json:"workflowId"`
	WorkflowName string     `json:"workflowName"`
	Steps        []PlanStep `json:"steps"`
}

const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

type Decision struct {
	ID         string    `json:"id,omitempty"`
	StepLevel  int       `json:"stepLevel"`
	ApproverID string    `json:"approverId"`
	Outcome    string    `json:"outcome"`
	Comment    string    `json:"comment,omitempty"`
	DecidedAt  time.Time `json:"decidedAt"`
}

type LeaveRequest struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	LeaveTypeID  string          `json:"leaveTypeId"`
	StartDate    time.Time       `json:"startDate"`
	EndDate      time.Time       `json:"endDate"`
	RequestType  RequestType     `json:"requestType"`
	NumberOfDays decimal.Decimal `json:"numberOfDays"`
	Reason       string          `json:"reason"`
	Status       Status          `json:"status"`
	StepCursor   int             `json:"stepCursor"`
	Plan         StepPlan        `json:"plan"`
	Decisions    []Decision      `json:"decisions,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// CurrentStep returns the plan entry awaiting a decision. ok is false when
// the cursor has run past the plan, which only happens on a corrupted row.
func (r *LeaveRequest) CurrentStep() (PlanStep, bool) {
	if r.StepCursor < 0 || r.StepCursor >= len(r.Plan.Steps) {
		return PlanStep{}, false
	}
	return r.Plan.Steps[r.StepCursor], true
}
