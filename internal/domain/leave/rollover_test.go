package leave

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// stubTx satisfies pgx.Tx for the rollover loop, which only commits or rolls
// back; any other method panics on the embedded nil interface.
type stubTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type upsertCall struct {
	userID       string
	leaveTypeID  string
	year         int
	allotted     decimal.Decimal
	carryForward decimal.Decimal
}

type fakeRolloverStore struct {
	types    []LeaveType
	balances map[string][]Balance // key "typeID|year"
	txs      []*stubTx
	upserts  []upsertCall
	failOn   string // leave type ID whose upsert fails
}

func (f *fakeRolloverStore) ListCarryForwardTypes(ctx context.Context) ([]LeaveType, error) {
	return f.types, nil
}

func (f *fakeRolloverStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx := &stubTx{}
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeRolloverStore) ListBalancesForTypeTx(ctx context.Context, tx pgx.Tx, leaveTypeID string, year int) ([]Balance, error) {
	return f.balances[fmt.Sprintf("%s|%d", leaveTypeID, year)], nil
}

func (f *fakeRolloverStore) UpsertRolledBalanceTx(ctx context.Context, tx pgx.Tx, userID, leaveTypeID string, year int, allotted, carryForward decimal.Decimal) error {
	if leaveTypeID == f.failOn {
		return errors.New("upsert failed")
	}
	f.upserts = append(f.upserts, upsertCall{
		userID:       userID,
		leaveTypeID:  leaveTypeID,
		year:         year,
		allotted:     allotted,
		carryForward: carryForward,
	})
	return nil
}

func TestRunRollover(t *testing.T) {
	store := &fakeRolloverStore{
		types: []LeaveType{
			{ID: "annual", DefaultDays: decimal.NewFromInt(20), IsCarryForward: true, MaxCarryForwardDays: decimal.NewFromInt(10)},
			{ID: "casual", DefaultDays: decimal.NewFromInt(7), IsCarryForward: true, MaxCarryForwardDays: decimal.NewFromInt(3)},
		},
		balances: map[string][]Balance{
			"annual|2025": {
				{UserID: "alice", Allotted: decimal.NewFromInt(20), Used: decimal.NewFromInt(16)},
				{UserID: "bob", Allotted: decimal.NewFromInt(20), Used: decimal.NewFromInt(2)},
			},
			"casual|2025": {
				{UserID: "alice", Allotted: decimal.NewFromInt(7), Used: decimal.NewFromInt(7)},
			},
		},
	}

	summary, err := RunRollover(context.Background(), store, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TypesProcessed != 2 || summary.RowsRolled != 3 {
		t.Fatalf("summary = %+v", summary)
	}

	want := []upsertCall{
		{userID: "alice", leaveTypeID: "annual", year: 2026, allotted: decimal.NewFromInt(20), carryForward: decimal.NewFromInt(4)},
		{userID: "bob", leaveTypeID: "annual", year: 2026, allotted: decimal.NewFromInt(20), carryForward: decimal.NewFromInt(10)},
		{userID: "alice", leaveTypeID: "casual", year: 2026, allotted: decimal.NewFromInt(7), carryForward: decimal.Zero},
	}
	if len(store.upserts) != len(want) {
		t.Fatalf("%d upserts, want %d", len(store.upserts), len(want))
	}
	for i, got := range store.upserts {
		w := want[i]
		if got.userID != w.userID || got.leaveTypeID != w.leaveTypeID || got.year != w.year {
			t.Errorf("upsert %d = %+v", i, got)
		}
		if !got.allotted.Equal(w.allotted) || !got.carryForward.Equal(w.carryForward) {
			t.Errorf("upsert %d values = %s/%s, want %s/%s",
				i, got.allotted, got.carryForward, w.allotted, w.carryForward)
		}
	}

	// One transaction per leave type, all committed.
	if len(store.txs) != 2 {
		t.Fatalf("%d transactions, want 2", len(store.txs))
	}
	for i, tx := range store.txs {
		if !tx.committed || tx.rolledBack {
			t.Errorf("tx %d committed=%v rolledBack=%v", i, tx.committed, tx.rolledBack)
		}
	}
}

func TestRunRolloverRollsBackFailedType(t *testing.T) {
	store := &fakeRolloverStore{
		types: []LeaveType{
			{ID: "annual", DefaultDays: decimal.NewFromInt(20), IsCarryForward: true, MaxCarryForwardDays: decimal.NewFromInt(10)},
		},
		balances: map[string][]Balance{
			"annual|2025": {{UserID: "alice", Allotted: decimal.NewFromInt(20)}},
		},
		failOn: "annual",
	}

	if _, err := RunRollover(context.Background(), store, 2026); err == nil {
		t.Fatal("expected error")
	}
	if len(store.txs) != 1 || !store.txs[0].rolledBack || store.txs[0].committed {
		t.Errorf("failed type's transaction not rolled back: %+v", store.txs)
	}
}

func TestRunRolloverNoCarryForwardTypes(t *testing.T) {
	store := &fakeRolloverStore{}
	summary, err := RunRollover(context.Background(), store, 2026)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TypesProcessed != 0 || summary.RowsRolled != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.txs) != 0 {
		t.Errorf("%d transactions opened for nothing", len(store.txs))
	}
}
