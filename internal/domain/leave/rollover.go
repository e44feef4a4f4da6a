package leave

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type RolloverSummary struct {
	TypesProcessed int `json:"typesProcessed"`
	RowsRolled     int `json:"rowsRolled"`
}

type RolloverStore interface {
	ListCarryForwardTypes(ctx context.Context) ([]LeaveType, error)
	BeginTx(ctx context.Context) (pgx.Tx, error)
	ListBalancesForTypeTx(ctx context.Context, tx pgx.Tx, leaveTypeID string, year int) ([]Balance, error)
	UpsertRolledBalanceTx(ctx context.Context, tx pgx.Tx, userID, leaveTypeID string, year int, allotted, carryForward decimal.Decimal) error
}

// RunRollover computes next-year carry-forward credit from the closing year's
// ledger rows. The engine never computes carry-forward itself; it only reads
// what this batch wrote. Safe to re-run: each run recomputes the target-year
// credit from the source year.
func RunRollover(ctx context.Context, store RolloverStore, targetYear int) (RolloverSummary, error) {
	var summary RolloverSummary
	sourceYear := targetYear - 1

	types, err := store.ListCarryForwardTypes(ctx)
	if err != nil {
		return summary, err
	}

	for _, leaveType := range types {
		tx, err := store.BeginTx(ctx)
		if err != nil {
			return summary, err
		}

		balances, err := store.ListBalancesForTypeTx(ctx, tx, leaveType.ID, sourceYear)
		if err != nil {
			rollbackTx(ctx, tx)
			return summary, err
		}

		for _, balance := range balances {
			carry := ComputeCarryForward(balance.Available(), leaveType.MaxCarryForwardDays)
			if err := store.UpsertRolledBalanceTx(ctx, tx, balance.UserID, leaveType.ID, targetYear, leaveType.DefaultDays, carry); err != nil {
				rollbackTx(ctx, tx)
				return summary, err
			}
			summary.RowsRolled++
		}

		if err := tx.Commit(ctx); err != nil {
			return summary, err
		}
		summary.TypesProcessed++
	}

	return summary, nil
}

func rollbackTx(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil {
		slog.Warn("rollover rollback failed", "err", err)
	}
}

func (s *Store) ListCarryForwardTypes(ctx context.Context) ([]LeaveType, error) {
	types, err := s.ListTypes(ctx, true)
	if err != nil {
		return nil, err
	}
	carryTypes := types[:0]
	for _, t := range types {
		if t.IsCarryForward {
			carryTypes = append(carryTypes, t)
		}
	}
	return carryTypes, nil
}

func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return s.DB.Begin(ctx)
}

func (s *Store) ListBalancesForTypeTx(ctx context.Context, tx pgx.Tx, leaveTypeID string, year int) ([]Balance, error) {
	rows, err := tx.Query(ctx, `
    SELECT id, user_id, leave_type_id, year, allotted, used, carry_forward, updated_at
    FROM leave_balances
    WHERE leave_type_id = $1 AND year = $2
  `, leaveTypeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *Store) UpsertRolledBalanceTx(ctx context.Context, tx pgx.Tx, userID, leaveTypeID string, year int, allotted, carryForward decimal.Decimal) error {
	allottedValue, _ := allotted.Float64()
	carryValue, _ := carryForward.Float64()
	_, err := tx.Exec(ctx, `
    INSERT INTO leave_balances (user_id, leave_type_id, year, allotted, used, carry_forward)
    VALUES ($1,$2,$3,$4,0,$5)
    ON CONFLICT (user_id, leave_type_id, year)
    DO UPDATE SET carry_forward = EXCLUDED.carry_forward, updated_at = now()
  `, userID, leaveTypeID, year, allottedValue, carryValue)
	return err
}
