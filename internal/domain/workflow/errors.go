package workflow

import "errors"

var (
	ErrNotFound             = errors.New("leave request not found")
	ErrValidation           = errors.New("invalid leave request")
	ErrNoCategoryMatch      = errors.New("no workflow category covers the requested duration")
	ErrNoWorkflowMatch      = errors.New("no approval workflow covers the requested duration")
	ErrInsufficientBalance  = errors.New("insufficient leave balance")
	ErrUnauthorizedApprover = errors.New("approver is not eligible for the current step")
	ErrAlreadyTerminal      = errors.New("leave request is already settled")
	ErrTransient            = errors.New("temporary storage failure")
	ErrInvariantViolation   = errors.New("leave balance invariant violated")
)
