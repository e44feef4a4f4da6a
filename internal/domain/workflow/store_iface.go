package workflow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lms/internal/domain/leave"
)

// Submitter is the slice of a user record the engine needs at submission.
type Submitter struct {
	ID       string
	Gender   string
	IsActive bool
}

type StoreAPI interface {
	ListActiveCategories(ctx context.Context) ([]WorkflowCategory, error)
	ListActiveWorkflows(ctx context.Context) ([]ApprovalWorkflow, error)
	LeaveTypeByID(ctx context.Context, leaveTypeID string) (leave.LeaveType, error)
	SubmitterByID(ctx context.Context, userID string) (Submitter, error)
	HolidayDates(ctx context.Context, from, to time.Time) (map[string]bool, error)
	BalanceFor(ctx context.Context, userID, leaveTypeID string, year int) (leave.Balance, error)
	CreateRequest(ctx context.Context, req *LeaveRequest) (string, error)
	GetRequest(ctx context.Context, requestID string) (*LeaveRequest, error)
	// InTx runs fn inside one transaction; the row locks taken by TxAPI
	// methods hold until fn returns.
	InTx(ctx context.Context, fn func(tx TxAPI) error) error
}

// TxAPI is the transactional surface used by decision and cancellation
// processing. RequestForUpdate and BalanceForUpdate lock the row they read.
type TxAPI interface {
	RequestForUpdate(ctx context.Context, requestID string) (*LeaveRequest, error)
	UpdateRequestState(ctx context.Context, requestID string, status Status, cursor int) error
	InsertDecision(ctx context.Context, requestID string, d Decision) error
	BalanceForUpdate(ctx context.Context, userID, leaveTypeID string, year int) (leave.Balance, error)
	ApplyDebit(ctx context.Context, balanceID string, days decimal.Decimal) error
}
