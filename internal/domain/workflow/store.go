package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"lms/internal/domain/leave"
)

type Store struct {
	DB    *pgxpool.Pool
	Leave *leave.Store

	// LockTimeout bounds how long a decision transaction may wait on row
	// locks. Zero means no bound.
	LockTimeout time.Duration
}

func NewStore(db *pgxpool.Pool, leaveStore *leave.Store) *Store {
	return &Store{DB: db, Leave: leaveStore}
}

func (s *Store) LeaveTypeByID(ctx context.Context, leaveTypeID string) (leave.LeaveType, error) {
	return s.Leave.GetType(ctx, leaveTypeID)
}

func (s *Store) HolidayDates(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	return s.Leave.HolidayDates(ctx, from, to)
}

func (s *Store) BalanceFor(ctx context.Context, userID, leaveTypeID string, year int) (leave.Balance, error) {
	return s.Leave.BalanceFor(ctx, userID, leaveTypeID, year)
}

func (s *Store) SubmitterByID(ctx context.Context, userID string) (Submitter, error) {
	var sub Submitter
	err := s.DB.QueryRow(ctx, `
    SELECT id, COALESCE(gender, ''), is_active
    FROM users
    WHERE id = $1
  `, userID).Scan(&sub.ID, &sub.Gender, &sub.IsActive)
	return sub, err
}

func (s *Store) ListCategories(ctx context.Context, activeOnly bool) ([]WorkflowCategory, error) {
	query := `
    SELECT id, name, min_days, max_days, max_steps, is_active
    FROM workflow_categories`
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY min_days"

	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []WorkflowCategory
	for rows.Next() {
		var c WorkflowCategory
		var minDays, maxDays float64
		if err := rows.Scan(&c.ID, &c.Name, &minDays, &maxDays, &c.MaxSteps, &c.IsActive); err != nil {
			return nil, err
		}
		c.MinDays = decimal.NewFromFloat(minDays)
		c.MaxDays = decimal.NewFromFloat(maxDays)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) ListActiveCategories(ctx context.Context) ([]WorkflowCategory, error) {
	return s.ListCategories(ctx, true)
}

func (s *Store) CreateCategory(ctx context.Context, c WorkflowCategory) (string, error) {
	var id string
	minDays, _ := c.MinDays.Float64()
	maxDays, _ := c.MaxDays.Float64()
	err := s.DB.QueryRow(ctx, `
    INSERT INTO workflow_categories (name, min_days, max_days, max_steps, is_active)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, c.Name, minDays, maxDays, c.MaxSteps, c.IsActive).Scan(&id)
	return id, err
}

func (s *Store) UpdateCategory(ctx context.Context, c WorkflowCategory) error {
	minDays, _ := c.MinDays.Float64()
	maxDays, _ := c.MaxDays.Float64()
	_, err := s.DB.Exec(ctx, `
    UPDATE workflow_categories
    SET name = $1, min_days = $2, max_days = $3, max_steps = $4, is_active = $5
    WHERE id = $6
  `, c.Name, minDays, maxDays, c.MaxSteps, c.IsActive, c.ID)
	return err
}

func (s *Store) ListWorkflows(ctx context.Context, activeOnly bool) ([]ApprovalWorkflow, error) {
	query := `
    SELECT id, name, min_days, max_days, approval_levels, is_active
    FROM approval_workflows`
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY min_days"

	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []ApprovalWorkflow
	for rows.Next() {
		var wf ApprovalWorkflow
		var minDays, maxDays float64
		var levelsJSON []byte
		if err := rows.Scan(&wf.ID, &wf.Name, &minDays, &maxDays, &levelsJSON, &wf.IsActive); err != nil {
			return nil, err
		}
		wf.MinDays = decimal.NewFromFloat(minDays)
		wf.MaxDays = decimal.NewFromFloat(maxDays)
		if err := json.Unmarshal(levelsJSON, &wf.ApprovalLevels); err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (s *Store) ListActiveWorkflows(ctx context.Context) ([]ApprovalWorkflow, error) {
	return s.ListWorkflows(ctx, true)
}

func (s *Store) CreateWorkflow(ctx context.Context, wf ApprovalWorkflow) (string, error) {
	levelsJSON, err := json.Marshal(wf.ApprovalLevels)
	if err != nil {
		return "", err
	}
	minDays, _ := wf.MinDays.Float64()
	maxDays, _ := wf.MaxDays.Float64()
	var id string
	err = s.DB.QueryRow(ctx, `
    INSERT INTO approval_workflows (name, min_days, max_days, approval_levels, is_active)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, wf.Name, minDays, maxDays, levelsJSON, wf.IsActive).Scan(&id)
	return id, err
}

func (s *Store) UpdateWorkflow(ctx context.Context, wf ApprovalWorkflow) error {
	levelsJSON, err := json.Marshal(wf.ApprovalLevels)
	if err != nil {
		return err
	}
	minDays, _ := wf.MinDays.Float64()
	maxDays, _ := wf.MaxDays.Float64()
	_, err = s.DB.Exec(ctx, `
    UPDATE approval_workflows
    SET name = $1, min_days = $2, max_days = $3, approval_levels = $4, is_active = $5
    WHERE id = $6
  `, wf.Name, minDays, maxDays, levelsJSON, wf.IsActive, wf.ID)
	return err
}

func (s *Store) CreateRequest(ctx context.Context, req *LeaveRequest) (string, error) {
	planJSON, err := json.Marshal(req.Plan)
	if err != nil {
		return "", err
	}
	days, _ := req.NumberOfDays.Float64()
	var id string
	err = s.DB.QueryRow(ctx, `
    INSERT INTO leave_requests (user_id, leave_type_id, start_date, end_date, request_type,
                                number_of_days, reason, status, step_cursor, plan)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING id
  `, req.UserID, req.LeaveTypeID, req.StartDate, req.EndDate, string(req.RequestType),
		days, req.Reason, string(req.Status), req.StepCursor, planJSON).Scan(&id)
	return id, err
}

const requestColumns = `
    id, user_id, leave_type_id, start_date, end_date, request_type,
    number_of_days, reason, status, step_cursor, plan, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*LeaveRequest, error) {
	var req LeaveRequest
	var days float64
	var requestType, status string
	var planJSON []byte
	err := row.Scan(&req.ID, &req.UserID, &req.LeaveTypeID, &req.StartDate, &req.EndDate,
		&requestType, &days, &req.Reason, &status, &req.StepCursor, &planJSON,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.RequestType = RequestType(requestType)
	req.NumberOfDays = decimal.NewFromFloat(days)
	req.Status = Status(status)
	if err := json.Unmarshal(planJSON, &req.Plan); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Store) GetRequest(ctx context.Context, requestID string) (*LeaveRequest, error) {
	row := s.DB.QueryRow(ctx, "SELECT"+requestColumns+" FROM leave_requests WHERE id = $1", requestID)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	req.Decisions, err = s.listDecisions(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) listDecisions(ctx context.Context, requestID string) ([]Decision, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, step_level, approver_id, outcome, COALESCE(comment, ''), decided_at
    FROM leave_approvals
    WHERE request_id = $1
    ORDER BY decided_at, step_level
  `, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.StepLevel, &d.ApproverID, &d.Outcome, &d.Comment, &d.DecidedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (s *Store) ListRequestsForUser(ctx context.Context, userID string, limit, offset int) ([]*LeaveRequest, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+requestColumns+`
    FROM leave_requests
    WHERE user_id = $1
    ORDER BY created_at DESC
    LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListOpenRequests returns requests still awaiting a decision, oldest first.
func (s *Store) ListOpenRequests(ctx context.Context, limit, offset int) ([]*LeaveRequest, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+requestColumns+`
    FROM leave_requests
    WHERE status IN ($1, $2)
    ORDER BY created_at
    LIMIT $3 OFFSET $4
  `, string(StatusPending), string(StatusPartiallyApproved), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]*LeaveRequest, error) {
	var requests []*LeaveRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// PurgeDeleted removes cancelled requests past the grace period.
func (s *Store) PurgeDeleted(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.DB.Exec(ctx, `
    DELETE FROM leave_requests
    WHERE status = $1 AND updated_at < $2
  `, string(StatusPendingDeletion), olderThan)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx TxAPI) error) error {
	if s.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.LockTimeout)
		defer cancel()
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&txStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			slog.Warn("workflow tx rollback failed", "err", rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) RequestForUpdate(ctx context.Context, requestID string) (*LeaveRequest, error) {
	row := t.tx.QueryRow(ctx, "SELECT"+requestColumns+" FROM leave_requests WHERE id = $1 FOR UPDATE", requestID)
	return scanRequest(row)
}

func (t *txStore) UpdateRequestState(ctx context.Context, requestID string, status Status, cursor int) error {
	_, err := t.tx.Exec(ctx, `
    UPDATE leave_requests
    SET status = $1, step_cursor = $2, updated_at = now()
    WHERE id = $3
  `, string(status), cursor, requestID)
	return err
}

func (t *txStore) InsertDecision(ctx context.Context, requestID string, d Decision) error {
	_, err := t.tx.Exec(ctx, `
    INSERT INTO leave_approvals (request_id, step_level, approver_id, outcome, comment, decided_at)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, requestID, d.StepLevel, d.ApproverID, d.Outcome, d.Comment, d.DecidedAt)
	return err
}

func (t *txStore) BalanceForUpdate(ctx context.Context, userID, leaveTypeID string, year int) (leave.Balance, error) {
	row := t.tx.QueryRow(ctx, `
    SELECT id, user_id, leave_type_id, year, allotted, used, carry_forward, updated_at
    FROM leave_balances
    WHERE user_id = $1 AND leave_type_id = $2 AND year = $3
    FOR UPDATE
  `, userID, leaveTypeID, year)

	var b leave.Balance
	var allotted, used, carry float64
	err := row.Scan(&b.ID, &b.UserID, &b.LeaveTypeID, &b.Year, &allotted, &used, &carry, &b.UpdatedAt)
	if err != nil {
		return leave.Balance{}, err
	}
	b.Allotted = decimal.NewFromFloat(allotted)
	b.Used = decimal.NewFromFloat(used)
	b.CarryForward = decimal.NewFromFloat(carry)
	return b, nil
}

func (t *txStore) ApplyDebit(ctx context.Context, balanceID string, days decimal.Decimal) error {
	value, _ := days.Float64()
	_, err := t.tx.Exec(ctx, `
    UPDATE leave_balances
    SET used = used + $1, updated_at = now()
    WHERE id = $2
  `, value, balanceID)
	return err
}
