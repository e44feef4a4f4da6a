package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lms/internal/domain/leave"
)

type fakeStore struct {
	mu         sync.Mutex
	categories []WorkflowCategory
	workflows  []ApprovalWorkflow
	leaveTypes map[string]leave.LeaveType
	submitters map[string]Submitter
	holidays   map[string]bool
	balances   []*leave.Balance
	requests   map[string]*LeaveRequest
	nextID     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		categories: seedCategories(),
		workflows:  seedWorkflows(),
		leaveTypes: map[string]leave.LeaveType{
			"annual": {ID: "annual", Name: "Annual Leave", ApplicableGender: "all", IsHalfDayAllowed: true, IsActive: true},
			"strict": {ID: "strict", Name: "Strict Leave", ApplicableGender: "all", IsHalfDayAllowed: false, IsActive: true},
		},
		submitters: map[string]Submitter{
			"alice": {ID: "alice", Gender: "female", IsActive: true},
			"frank": {ID: "frank", Gender: "male", IsActive: false},
		},
		holidays: map[string]bool{},
		requests: map[string]*LeaveRequest{},
	}
}

func (f *fakeStore) addBalance(userID, typeID string, year int, allotted, used, carry float64) {
	f.balances = append(f.balances, &leave.Balance{
		ID:           fmt.Sprintf("bal-%d", len(f.balances)+1),
		UserID:       userID,
		LeaveTypeID:  typeID,
		Year:         year,
		Allotted:     dec(allotted),
		Used:         dec(used),
		CarryForward: dec(carry),
	})
}

func (f *fakeStore) findBalance(userID, typeID string, year int) *leave.Balance {
	for _, b := range f.balances {
		if b.UserID == userID && b.LeaveTypeID == typeID && b.Year == year {
			return b
		}
	}
	return nil
}

func (f *fakeStore) ListActiveCategories(ctx context.Context) ([]WorkflowCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]WorkflowCategory, len(f.categories))
	copy(out, f.categories)
	return out, nil
}

func (f *fakeStore) ListActiveWorkflows(ctx context.Context) ([]ApprovalWorkflow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ApprovalWorkflow, len(f.workflows))
	copy(out, f.workflows)
	return out, nil
}

func (f *fakeStore) LeaveTypeByID(ctx context.Context, leaveTypeID string) (leave.LeaveType, error) {
	t, ok := f.leaveTypes[leaveTypeID]
	if !ok {
		return leave.LeaveType{}, pgx.ErrNoRows
	}
	return t, nil
}

func (f *fakeStore) SubmitterByID(ctx context.Context, userID string) (Submitter, error) {
	s, ok := f.submitters[userID]
	if !ok {
		return Submitter{}, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStore) HolidayDates(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	return f.holidays, nil
}

func (f *fakeStore) BalanceFor(ctx context.Context, userID, leaveTypeID string, year int) (leave.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.findBalance(userID, leaveTypeID, year)
	if b == nil {
		return leave.Balance{}, pgx.ErrNoRows
	}
	return *b, nil
}

func (f *fakeStore) CreateRequest(ctx context.Context, req *LeaveRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("req-%d", f.nextID)
	stored := copyRequest(req)
	stored.ID = id
	f.requests[id] = stored
	return id, nil
}

func (f *fakeStore) GetRequest(ctx context.Context, requestID string) (*LeaveRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyRequest(req), nil
}

// InTx serializes transactions with a mutex, standing in for the row locks
// the real store takes. Staged writes apply only when fn succeeds.
func (f *fakeStore) InTx(ctx context.Context, fn func(tx TxAPI) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeTx{store: f}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type stagedState struct {
	requestID string
	status    Status
	cursor    int
}

type stagedDecision struct {
	requestID string
	decision  Decision
}

type stagedDebit struct {
	balanceID string
	days      decimal.Decimal
}

type fakeTx struct {
	store     *fakeStore
	states    []stagedState
	decisions []stagedDecision
	debits    []stagedDebit
}

func (t *fakeTx) RequestForUpdate(ctx context.Context, requestID string) (*LeaveRequest, error) {
	req, ok := t.store.requests[requestID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyRequest(req), nil
}

func (t *fakeTx) UpdateRequestState(ctx context.Context, requestID string, status Status, cursor int) error {
	t.states = append(t.states, stagedState{requestID: requestID, status: status, cursor: cursor})
	return nil
}

func (t *fakeTx) InsertDecision(ctx context.Context, requestID string, d Decision) error {
	t.decisions = append(t.decisions, stagedDecision{requestID: requestID, decision: d})
	return nil
}

func (t *fakeTx) BalanceForUpdate(ctx context.Context, userID, leaveTypeID string, year int) (leave.Balance, error) {
	b := t.store.findBalance(userID, leaveTypeID, year)
	if b == nil {
		return leave.Balance{}, pgx.ErrNoRows
	}
	return *b, nil
}

func (t *fakeTx) ApplyDebit(ctx context.Context, balanceID string, days decimal.Decimal) error {
	t.debits = append(t.debits, stagedDebit{balanceID: balanceID, days: days})
	return nil
}

func (t *fakeTx) commit() {
	for _, d := range t.decisions {
		if req, ok := t.store.requests[d.requestID]; ok {
			req.Decisions = append(req.Decisions, d.decision)
		}
	}
	for _, s := range t.states {
		if req, ok := t.store.requests[s.requestID]; ok {
			req.Status = s.status
			req.StepCursor = s.cursor
		}
	}
	for _, d := range t.debits {
		for _, b := range t.store.balances {
			if b.ID == d.balanceID {
				b.Used = b.Used.Add(d.days)
			}
		}
	}
}

func copyRequest(req *LeaveRequest) *LeaveRequest {
	clone := *req
	clone.Plan.Steps = append([]PlanStep(nil), req.Plan.Steps...)
	clone.Decisions = append([]Decision(nil), req.Decisions...)
	return &clone
}

// fakeDirectory grants eligibility per actor and role.
type fakeDirectory struct {
	grants map[string]bool
	err    error
}

func (d *fakeDirectory) grant(actorID string, role ApproverRole) {
	if d.grants == nil {
		d.grants = map[string]bool{}
	}
	d.grants[actorID+"|"+string(role)] = true
}

func (d *fakeDirectory) IsEligibleApprover(ctx context.Context, actorID, submitterID string, role ApproverRole) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.grants[actorID+"|"+string(role)], nil
}

func testEngine(store *fakeStore, dir *fakeDirectory) *Engine {
	engine := NewEngine(store, dir)
	// Fixed clock: Monday 2025-06-02.
	engine.Now = func() time.Time {
		return time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	}
	return engine
}

func workdays(startDay, endDay int) (time.Time, time.Time) {
	start := time.Date(2025, time.June, startDay, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.June, endDay, 0, 0, 0, 0, time.UTC)
	return start, end
}

func TestSubmitRequestBuildsPlanSnapshot(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	engine := testEngine(store, &fakeDirectory{})

	start, end := workdays(2, 6) // Mon..Fri, 5 working days
	req, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: start, EndDate: end,
		RequestType: RequestFullDay, Reason: "trip",
	})
	if err != nil {
		t.Fatal(err)
	}

	if !req.NumberOfDays.Equal(dec(5)) {
		t.Errorf("NumberOfDays = %s, want 5", req.NumberOfDays)
	}
	if req.Status != StatusPending || req.StepCursor != 0 {
		t.Errorf("status/cursor = %s/%d", req.Status, req.StepCursor)
	}
	if req.Plan.WorkflowName != "Medium Leave" || len(req.Plan.Steps) != 3 {
		t.Errorf("plan = %q with %d steps", req.Plan.WorkflowName, len(req.Plan.Steps))
	}

	// Later config edits must not alter the stored snapshot.
	store.workflows[1].ApprovalLevels = []ApproverRole{RoleSuperAdmin}
	stored, err := engine.GetRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored.Plan.Steps) != 3 || stored.Plan.Steps[0].Role != RoleTeamLead {
		t.Errorf("snapshot changed after config edit: %+v", stored.Plan.Steps)
	}
}

func TestSubmitRequestHalfDay(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	store.addBalance("alice", "strict", 2025, 20, 0, 0)
	engine := testEngine(store, &fakeDirectory{})
	day, _ := workdays(3, 3)

	req, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: day, EndDate: day, RequestType: RequestFirstHalf,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !req.NumberOfDays.Equal(dec(0.5)) {
		t.Errorf("half day priced at %s", req.NumberOfDays)
	}
	if req.Plan.WorkflowName != "Short Leave" {
		t.Errorf("half day resolved to %q", req.Plan.WorkflowName)
	}

	// Half day across a range is invalid.
	start, end := workdays(3, 4)
	if _, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: start, EndDate: end, RequestType: RequestSecondHalf,
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("multi-day half request: %v", err)
	}

	// Leave type that forbids half days.
	if _, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "strict",
		StartDate: day, EndDate: day, RequestType: RequestFirstHalf,
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("half day on strict type: %v", err)
	}
}

func TestSubmitRequestValidation(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	engine := testEngine(store, &fakeDirectory{})
	start, end := workdays(2, 6)

	cases := []struct {
		name string
		in   SubmitInput
	}{
		{"missing user", SubmitInput{LeaveTypeID: "annual", StartDate: start, EndDate: end, RequestType: RequestFullDay}},
		{"end before start", SubmitInput{UserID: "alice", LeaveTypeID: "annual", StartDate: end, EndDate: start, RequestType: RequestFullDay}},
		{"unknown type", SubmitInput{UserID: "alice", LeaveTypeID: "nope", StartDate: start, EndDate: end, RequestType: RequestFullDay}},
		{"bad request type", SubmitInput{UserID: "alice", LeaveTypeID: "annual", StartDate: start, EndDate: end, RequestType: "whole_week"}},
		{"inactive user", SubmitInput{UserID: "frank", LeaveTypeID: "annual", StartDate: start, EndDate: end, RequestType: RequestFullDay}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.SubmitRequest(context.Background(), tc.in); !errors.Is(err, ErrValidation) {
				t.Errorf("got %v, want ErrValidation", err)
			}
		})
	}

	if len(store.requests) != 0 {
		t.Errorf("%d requests created by invalid submissions", len(store.requests))
	}
}

func TestSubmitRequestWeekendOnlyRange(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	engine := testEngine(store, &fakeDirectory{})

	start, end := workdays(7, 8) // Sat..Sun
	if _, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: start, EndDate: end, RequestType: RequestFullDay,
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("weekend-only range: %v", err)
	}
}

func TestSubmitRequestInsufficientBalance(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 3, 0, 0)
	engine := testEngine(store, &fakeDirectory{})

	start, end := workdays(2, 6) // 5 days against 3 available
	_, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: start, EndDate: end, RequestType: RequestFullDay,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	if len(store.requests) != 0 {
		t.Error("request created despite insufficient balance")
	}

	// Carry-forward counts toward the available pool.
	store.findBalance("alice", "annual", 2025).CarryForward = dec(2)
	if _, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: start, EndDate: end, RequestType: RequestFullDay,
	}); err != nil {
		t.Errorf("submission with carry-forward headroom failed: %v", err)
	}

	// No ledger row at all.
	if _, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "strict",
		StartDate: start, EndDate: end, RequestType: RequestFullDay,
	}); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("missing balance row: %v", err)
	}
}

func submitMedium(t *testing.T, engine *Engine) *LeaveRequest {
	t.Helper()
	start, end := workdays(2, 6)
	req, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: start, EndDate: end, RequestType: RequestFullDay,
	})
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestRecordDecisionFullApprovalChain(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 2, 0)
	dir := &fakeDirectory{}
	dir.grant("lead", RoleTeamLead)
	dir.grant("mgr", RoleManager)
	dir.grant("hr", RoleHR)
	engine := testEngine(store, dir)

	req := submitMedium(t, engine)

	step1, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "lead", Approve: true})
	if err != nil {
		t.Fatal(err)
	}
	if step1.Status != StatusPartiallyApproved || step1.StepCursor != 1 {
		t.Fatalf("after step 1: %s/%d", step1.Status, step1.StepCursor)
	}
	if got := store.findBalance("alice", "annual", 2025).Used; !got.Equal(dec(2)) {
		t.Errorf("balance debited before final approval: used = %s", got)
	}

	step2, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "mgr", Approve: true})
	if err != nil {
		t.Fatal(err)
	}
	if step2.Status != StatusPartiallyApproved || step2.StepCursor != 2 {
		t.Fatalf("after step 2: %s/%d", step2.Status, step2.StepCursor)
	}

	final, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "hr", Approve: true, Comment: "enjoy"})
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != StatusApproved {
		t.Fatalf("final status = %s", final.Status)
	}
	if got := store.findBalance("alice", "annual", 2025).Used; !got.Equal(dec(7)) {
		t.Errorf("used = %s after final approval, want 7", got)
	}
	if len(final.Decisions) != 3 {
		t.Errorf("%d decisions in trail", len(final.Decisions))
	}

	// Terminal request rejects further decisions.
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "hr", Approve: true}); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("decision on approved request: %v", err)
	}
}

func TestRecordDecisionReject(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	dir := &fakeDirectory{}
	dir.grant("lead", RoleTeamLead)
	dir.grant("mgr", RoleManager)
	engine := testEngine(store, dir)

	req := submitMedium(t, engine)
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "lead", Approve: true}); err != nil {
		t.Fatal(err)
	}

	rejected, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "mgr", Approve: false, Comment: "coverage gap"})
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != StatusRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if got := store.findBalance("alice", "annual", 2025).Used; !got.IsZero() {
		t.Errorf("rejection touched the ledger: used = %s", got)
	}
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "mgr", Approve: true}); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("decision on rejected request: %v", err)
	}
}

func TestRecordDecisionUnauthorizedApprover(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	dir := &fakeDirectory{}
	dir.grant("mgr", RoleManager)
	engine := testEngine(store, dir)

	req := submitMedium(t, engine)

	// Current step wants a team lead; a manager may not take it.
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "mgr", Approve: true}); !errors.Is(err, ErrUnauthorizedApprover) {
		t.Fatalf("got %v, want ErrUnauthorizedApprover", err)
	}

	stored, _ := engine.GetRequest(context.Background(), req.ID)
	if stored.Status != StatusPending || stored.StepCursor != 0 || len(stored.Decisions) != 0 {
		t.Errorf("unauthorized decision left a trace: %s/%d/%d decisions",
			stored.Status, stored.StepCursor, len(stored.Decisions))
	}
}

func TestRecordDecisionNotFound(t *testing.T) {
	store := newFakeStore()
	engine := testEngine(store, &fakeDirectory{})

	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: "missing", ActorID: "mgr", Approve: true}); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestRecordDecisionDebitUsesStartDateYear(t *testing.T) {
	store := newFakeStore()
	// Advisory check reads the clock year (2025); the debit must hit 2026,
	// the year of the start date.
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	store.addBalance("alice", "annual", 2026, 20, 0, 0)
	dir := &fakeDirectory{}
	dir.grant("mgr", RoleManager)
	dir.grant("hr", RoleHR)
	engine := testEngine(store, dir)

	start := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC)
	req, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: start, EndDate: end, RequestType: RequestFullDay,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "mgr", Approve: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "hr", Approve: true}); err != nil {
		t.Fatal(err)
	}

	if got := store.findBalance("alice", "annual", 2026).Used; !got.Equal(dec(2)) {
		t.Errorf("2026 used = %s, want 2", got)
	}
	if got := store.findBalance("alice", "annual", 2025).Used; !got.IsZero() {
		t.Errorf("2025 used = %s, want 0", got)
	}
}

func TestRecordDecisionDebitFailureRollsBack(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	dir := &fakeDirectory{}
	dir.grant("mgr", RoleManager)
	dir.grant("hr", RoleHR)
	engine := testEngine(store, dir)

	day, _ := workdays(3, 3)
	req, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: day, EndDate: day, RequestType: RequestFullDay,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "mgr", Approve: true}); err != nil {
		t.Fatal(err)
	}

	// Drain the balance between submission and final approval.
	store.findBalance("alice", "annual", 2025).Used = dec(20)

	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "hr", Approve: true}); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("got %v, want ErrInvariantViolation", err)
	}

	stored, _ := engine.GetRequest(context.Background(), req.ID)
	if stored.Status != StatusPartiallyApproved || stored.StepCursor != 1 {
		t.Errorf("failed debit committed state: %s/%d", stored.Status, stored.StepCursor)
	}
	if got := store.findBalance("alice", "annual", 2025).Used; !got.Equal(dec(20)) {
		t.Errorf("used = %s after rolled-back debit", got)
	}
}

func TestCancelRequest(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	dir := &fakeDirectory{}
	dir.grant("lead", RoleTeamLead)
	engine := testEngine(store, dir)

	req := submitMedium(t, engine)

	cancelled, err := engine.CancelRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != StatusPendingDeletion {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if got := store.findBalance("alice", "annual", 2025).Used; !got.IsZero() {
		t.Errorf("cancel touched the ledger: used = %s", got)
	}

	if _, err := engine.CancelRequest(context.Background(), req.ID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("double cancel: %v", err)
	}
	if _, err := engine.CancelRequest(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancel missing: %v", err)
	}

	// Partially approved requests may still be cancelled.
	second := submitMedium(t, engine)
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: second.ID, ActorID: "lead", Approve: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.CancelRequest(context.Background(), second.ID); err != nil {
		t.Errorf("cancel after partial approval: %v", err)
	}
}

func TestConcurrentFinalApprovalsDebitOnce(t *testing.T) {
	store := newFakeStore()
	store.addBalance("alice", "annual", 2025, 20, 0, 0)
	dir := &fakeDirectory{}
	dir.grant("mgr", RoleManager)
	dir.grant("hr", RoleHR)
	engine := testEngine(store, dir)

	day, _ := workdays(3, 3)
	req, err := engine.SubmitRequest(context.Background(), SubmitInput{
		UserID: "alice", LeaveTypeID: "annual",
		StartDate: day, EndDate: day, RequestType: RequestFullDay,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "mgr", Approve: true}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.RecordDecision(context.Background(), DecisionInput{RequestID: req.ID, ActorID: "hr", Approve: true})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, terminal int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyTerminal):
			terminal++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || terminal != 1 {
		t.Errorf("succeeded=%d terminal=%d, want exactly one of each", succeeded, terminal)
	}
	if got := store.findBalance("alice", "annual", 2025).Used; !got.Equal(dec(1)) {
		t.Errorf("used = %s, want a single 1-day debit", got)
	}
}

func TestStoreErrClassifiesTimeouts(t *testing.T) {
	if err := storeErr(context.DeadlineExceeded); !errors.Is(err, ErrTransient) {
		t.Errorf("deadline: %v", err)
	}
	if err := storeErr(context.Canceled); !errors.Is(err, ErrTransient) {
		t.Errorf("cancel: %v", err)
	}
	sentinel := errors.New("boom")
	if err := storeErr(sentinel); !errors.Is(err, sentinel) {
		t.Errorf("other errors must pass through, got %v", err)
	}
	if storeErr(nil) != nil {
		t.Error("nil must stay nil")
	}
}
