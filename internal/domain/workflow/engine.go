package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lms/internal/domain/leave"
	"lms/internal/platform/metrics"
)

// Directory answers approver-eligibility questions. Implemented by the
// directory service; the engine only sees this interface.
type Directory interface {
	IsEligibleApprover(ctx context.Context, actorID, submitterID string, role ApproverRole) (bool, error)
}

type Engine struct {
	Store     StoreAPI
	Directory Directory
	Now       func() time.Time
}

func NewEngine(store StoreAPI, directory Directory) *Engine {
	return &Engine{Store: store, Directory: directory, Now: time.Now}
}

var halfDay = decimal.NewFromFloat(0.5)

type SubmitInput struct {
	UserID      string
	LeaveTypeID string
	StartDate   time.Time
	EndDate     time.Time
	RequestType RequestType
	Reason      string
}

// SubmitRequest validates the submission, prices it in days, checks the
// ledger, resolves the approval route, and creates the pending request with
// its step plan snapshot. No balance is debited here.
func (e *Engine) SubmitRequest(ctx context.Context, in SubmitInput) (*LeaveRequest, error) {
	if err := e.validateSubmit(&in); err != nil {
		metrics.SubmissionsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	leaveType, err := e.Store.LeaveTypeByID(ctx, in.LeaveTypeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown leave type", ErrValidation)
		}
		return nil, storeErr(err)
	}
	if !leaveType.IsActive {
		return nil, fmt.Errorf("%w: leave type is inactive", ErrValidation)
	}
	if in.RequestType.HalfDay() && !leaveType.IsHalfDayAllowed {
		return nil, fmt.Errorf("%w: leave type does not allow half days", ErrValidation)
	}

	submitter, err := e.Store.SubmitterByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: unknown user", ErrValidation)
		}
		return nil, storeErr(err)
	}
	if !submitter.IsActive {
		return nil, fmt.Errorf("%w: user is inactive", ErrValidation)
	}
	if !leaveType.AppliesTo(submitter.Gender) {
		return nil, fmt.Errorf("%w: leave type is not applicable to this user", ErrValidation)
	}

	days, err := e.computeDays(ctx, in)
	if err != nil {
		metrics.SubmissionsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	// Advisory check against the current year's ledger row. The debit at
	// final approval re-checks under a row lock.
	balance, err := e.Store.BalanceFor(ctx, in.UserID, in.LeaveTypeID, e.Now().Year())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.SubmissionsRejected.WithLabelValues("balance").Inc()
			return nil, fmt.Errorf("%w: no balance allocated", ErrInsufficientBalance)
		}
		return nil, storeErr(err)
	}
	if !balance.CanConsume(days) {
		metrics.SubmissionsRejected.WithLabelValues("balance").Inc()
		return nil, fmt.Errorf("%w: %s days available, %s requested",
			ErrInsufficientBalance, balance.Available(), days)
	}

	categories, err := e.Store.ListActiveCategories(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	category, err := ResolveCategory(categories, days)
	if err != nil {
		metrics.SubmissionsRejected.WithLabelValues("no_category").Inc()
		return nil, err
	}

	workflows, err := e.Store.ListActiveWorkflows(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	wf, err := ResolveWorkflow(workflows, days)
	if err != nil {
		metrics.SubmissionsRejected.WithLabelValues("no_workflow").Inc()
		return nil, err
	}

	if category.MaxSteps != len(wf.ApprovalLevels) {
		slog.Warn("category step count disagrees with workflow levels",
			"category", category.Name,
			"maxSteps", category.MaxSteps,
			"workflow", wf.Name,
			"levels", len(wf.ApprovalLevels),
		)
	}

	req := &LeaveRequest{
		UserID:       in.UserID,
		LeaveTypeID:  in.LeaveTypeID,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		RequestType:  in.RequestType,
		NumberOfDays: days,
		Reason:       strings.TrimSpace(in.Reason),
		Status:       StatusPending,
		StepCursor:   0,
		Plan:         BuildPlan(category, wf),
	}
	id, err := e.Store.CreateRequest(ctx, req)
	if err != nil {
		return nil, storeErr(err)
	}
	req.ID = id

	metrics.RequestsSubmitted.Inc()
	slog.Info("leave request submitted",
		"requestId", id,
		"userId", in.UserID,
		"days", days.String(),
		"workflow", wf.Name,
		"steps", len(req.Plan.Steps),
	)
	return req, nil
}

func (e *Engine) validateSubmit(in *SubmitInput) error {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.LeaveTypeID) == "" {
		return fmt.Errorf("%w: user and leave type are required", ErrValidation)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	if in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrValidation)
	}
	if !in.RequestType.Valid() {
		return fmt.Errorf("%w: unknown request type", ErrValidation)
	}
	if in.RequestType.HalfDay() && !in.StartDate.Equal(in.EndDate) {
		return fmt.Errorf("%w: half-day requests must cover a single day", ErrValidation)
	}
	return nil
}

func (e *Engine) computeDays(ctx context.Context, in SubmitInput) (decimal.Decimal, error) {
	holidays, err := e.Store.HolidayDates(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	if in.RequestType.HalfDay() {
		if !leave.IsWorkingDay(in.StartDate, holidays) {
			return decimal.Zero, fmt.Errorf("%w: requested day is not a working day", ErrValidation)
		}
		return halfDay, nil
	}

	days, err := leave.CalculateDays(in.StartDate, in.EndDate, holidays)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if days.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: range contains no working days", ErrValidation)
	}
	return days, nil
}

type DecisionInput struct {
	RequestID string
	ActorID   string
	Approve   bool
	Comment   string
}

// RecordDecision applies one approver's verdict to the request's current
// step. All state changes, including the final-approval debit, happen in a
// single transaction holding the request's row lock.
func (e *Engine) RecordDecision(ctx context.Context, in DecisionInput) (*LeaveRequest, error) {
	if strings.TrimSpace(in.RequestID) == "" || strings.TrimSpace(in.ActorID) == "" {
		return nil, fmt.Errorf("%w: request and actor are required", ErrValidation)
	}

	var updated *LeaveRequest
	err := e.Store.InTx(ctx, func(tx TxAPI) error {
		req, err := tx.RequestForUpdate(ctx, in.RequestID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return storeErr(err)
		}
		if req.Status.Terminal() {
			return ErrAlreadyTerminal
		}

		step, ok := req.CurrentStep()
		if !ok {
			return fmt.Errorf("%w: step cursor %d outside plan of %d steps",
				ErrInvariantViolation, req.StepCursor, len(req.Plan.Steps))
		}

		eligible, err := e.Directory.IsEligibleApprover(ctx, in.ActorID, req.UserID, step.Role)
		if err != nil {
			return storeErr(err)
		}
		if !eligible {
			return fmt.Errorf("%w: step %d requires role %s", ErrUnauthorizedApprover, step.Level, step.Role)
		}

		decision := Decision{
			StepLevel:  step.Level,
			ApproverID: in.ActorID,
			Outcome:    OutcomeApproved,
			Comment:    strings.TrimSpace(in.Comment),
			DecidedAt:  e.Now().UTC(),
		}
		if !in.Approve {
			decision.Outcome = OutcomeRejected
		}
		if err := tx.InsertDecision(ctx, req.ID, decision); err != nil {
			return storeErr(err)
		}
		req.Decisions = append(req.Decisions, decision)

		switch {
		case !in.Approve:
			req.Status = StatusRejected
		case req.StepCursor == len(req.Plan.Steps)-1:
			if err := e.debitFinalApproval(ctx, tx, req); err != nil {
				return err
			}
			req.Status = StatusApproved
			req.StepCursor++
		default:
			req.Status = StatusPartiallyApproved
			req.StepCursor++
		}

		if err := tx.UpdateRequestState(ctx, req.ID, req.Status, req.StepCursor); err != nil {
			return storeErr(err)
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Decisions.WithLabelValues(string(updated.Status)).Inc()
	slog.Info("decision recorded",
		"requestId", updated.ID,
		"actorId", in.ActorID,
		"status", string(updated.Status),
		"cursor", updated.StepCursor,
	)
	return updated, nil
}

// debitFinalApproval consumes the request's days from the ledger row of the
// start date's year, under a row lock. It runs inside the decision
// transaction so a failed debit rolls the status change back too.
func (e *Engine) debitFinalApproval(ctx context.Context, tx TxAPI, req *LeaveRequest) error {
	year := req.StartDate.Year()
	balance, err := tx.BalanceForUpdate(ctx, req.UserID, req.LeaveTypeID, year)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: no balance row for year %d", ErrInvariantViolation, year)
		}
		return storeErr(err)
	}
	if !balance.CanConsume(req.NumberOfDays) {
		return fmt.Errorf("%w: debit of %s exceeds available %s",
			ErrInvariantViolation, req.NumberOfDays, balance.Available())
	}
	if err := tx.ApplyDebit(ctx, balance.ID, req.NumberOfDays); err != nil {
		return storeErr(err)
	}
	metrics.BalanceDebits.Inc()
	return nil
}

// CancelRequest withdraws a live request. The row is flagged for deletion
// and later removed by the purge job; no balance is touched because debits
// only ever happen at final approval.
func (e *Engine) CancelRequest(ctx context.Context, requestID string) (*LeaveRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, fmt.Errorf("%w: request id is required", ErrValidation)
	}

	var updated *LeaveRequest
	err := e.Store.InTx(ctx, func(tx TxAPI) error {
		req, err := tx.RequestForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return storeErr(err)
		}
		if req.Status != StatusPending && req.Status != StatusPartiallyApproved {
			return ErrAlreadyTerminal
		}

		req.Status = StatusPendingDeletion
		if err := tx.UpdateRequestState(ctx, req.ID, req.Status, req.StepCursor); err != nil {
			return storeErr(err)
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Decisions.WithLabelValues(string(StatusPendingDeletion)).Inc()
	slog.Info("leave request cancelled", "requestId", updated.ID)
	return updated, nil
}

func (e *Engine) GetRequest(ctx context.Context, requestID string) (*LeaveRequest, error) {
	req, err := e.Store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(err)
	}
	return req, nil
}

// storeErr folds context timeouts and cancellations into the retryable
// error class; everything else passes through.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
