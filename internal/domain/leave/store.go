package leave

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ListTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error) {
	query := `
    SELECT id, name, COALESCE(description, ''), default_days, is_carry_forward,
           max_carry_forward_days, COALESCE(applicable_gender, 'all'),
           is_half_day_allowed, is_paid_leave, is_active, created_at
    FROM leave_types`
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY name"

	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []LeaveType
	for rows.Next() {
		t, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Store) GetType(ctx context.Context, id string) (LeaveType, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, name, COALESCE(description, ''), default_days, is_carry_forward,
           max_carry_forward_days, COALESCE(applicable_gender, 'all'),
           is_half_day_allowed, is_paid_leave, is_active, created_at
    FROM leave_types
    WHERE id = $1
  `, id)
	return scanLeaveType(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeaveType(row rowScanner) (LeaveType, error) {
	var t LeaveType
	var defaultDays, maxCarry float64
	err := row.Scan(&t.ID, &t.Name, &t.Description, &defaultDays, &t.IsCarryForward,
		&maxCarry, &t.ApplicableGender, &t.IsHalfDayAllowed, &t.IsPaidLeave, &t.IsActive, &t.CreatedAt)
	if err != nil {
		return LeaveType{}, err
	}
	t.DefaultDays = decimal.NewFromFloat(defaultDays)
	t.MaxCarryForwardDays = decimal.NewFromFloat(maxCarry)
	return t, nil
}

func (s *Store) CreateType(ctx context.Context, t LeaveType) (string, error) {
	var id string
	defaultDays, _ := t.DefaultDays.Float64()
	maxCarry, _ := t.MaxCarryForwardDays.Float64()
	err := s.DB.QueryRow(ctx, `
    INSERT INTO leave_types (name, description, default_days, is_carry_forward, max_carry_forward_days,
                             applicable_gender, is_half_day_allowed, is_paid_leave, is_active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, t.Name, t.Description, defaultDays, t.IsCarryForward, maxCarry,
		t.ApplicableGender, t.IsHalfDayAllowed, t.IsPaidLeave, t.IsActive).Scan(&id)
	return id, err
}

func (s *Store) UpdateType(ctx context.Context, t LeaveType) error {
	defaultDays, _ := t.DefaultDays.Float64()
	maxCarry, _ := t.MaxCarryForwardDays.Float64()
	_, err := s.DB.Exec(ctx, `
    UPDATE leave_types
    SET name = $1, description = $2, default_days = $3, is_carry_forward = $4,
        max_carry_forward_days = $5, applicable_gender = $6, is_half_day_allowed = $7,
        is_paid_leave = $8, is_active = $9
    WHERE id = $10
  `, t.Name, t.Description, defaultDays, t.IsCarryForward, maxCarry,
		t.ApplicableGender, t.IsHalfDayAllowed, t.IsPaidLeave, t.IsActive, t.ID)
	return err
}

func (s *Store) ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, date, COALESCE(description, ''), is_active
    FROM holidays
    WHERE date >= $1 AND date <= $2
    ORDER BY date
  `, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Name, &h.Date, &h.Description, &h.IsActive); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// HolidayDates returns the active holiday dates in [from, to] keyed by
// YYYY-MM-DD, the shape CalculateDays consumes.
func (s *Store) HolidayDates(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT date
    FROM holidays
    WHERE is_active AND date >= $1 AND date <= $2
  `, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := map[string]bool{}
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		dates[DateKey(day)] = true
	}
	return dates, rows.Err()
}

func (s *Store) CreateHoliday(ctx context.Context, h Holiday) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO holidays (name, date, description, is_active)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, h.Name, h.Date, h.Description, h.IsActive).Scan(&id)
	return id, err
}

func (s *Store) DeleteHoliday(ctx context.Context, holidayID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM holidays WHERE id = $1", holidayID)
	return err
}

func (s *Store) BalanceFor(ctx context.Context, userID, leaveTypeID string, year int) (Balance, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, user_id, leave_type_id, year, allotted, used, carry_forward, updated_at
    FROM leave_balances
    WHERE user_id = $1 AND leave_type_id = $2 AND year = $3
  `, userID, leaveTypeID, year)
	return scanBalance(row)
}

func scanBalance(row rowScanner) (Balance, error) {
	var b Balance
	var allotted, used, carry float64
	err := row.Scan(&b.ID, &b.UserID, &b.LeaveTypeID, &b.Year, &allotted, &used, &carry, &b.UpdatedAt)
	if err != nil {
		return Balance{}, err
	}
	b.Allotted = decimal.NewFromFloat(allotted)
	b.Used = decimal.NewFromFloat(used)
	b.CarryForward = decimal.NewFromFloat(carry)
	return b, nil
}

func (s *Store) ListBalancesForUser(ctx context.Context, userID string, year int) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, leave_type_id, year, allotted, used, carry_forward, updated_at
    FROM leave_balances
    WHERE user_id = $1 AND year = $2
    ORDER BY leave_type_id
  `, userID, year)
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

// AdjustAllotment sets the allotted figure for one ledger row, creating the
// row if it does not exist yet.
func (s *Store) AdjustAllotment(ctx context.Context, userID, leaveTypeID string, year int, allotted decimal.Decimal) error {
	value, _ := allotted.Float64()
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_balances (user_id, leave_type_id, year, allotted, used, carry_forward)
    VALUES ($1,$2,$3,$4,0,0)
    ON CONFLICT (user_id, leave_type_id, year)
    DO UPDATE SET allotted = EXCLUDED.allotted, updated_at = now()
  `, userID, leaveTypeID, year, value)
	return err
}

// InitializeYearBalances lazily creates ledger rows for every active user and
// active leave type for the given year, using the type's default allotment.
// Existing rows are left untouched.
func (s *Store) InitializeYearBalances(ctx context.Context, year int) (int, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO leave_balances (user_id, leave_type_id, year, allotted, used, carry_forward)
    SELECT u.id, t.id, $1, t.default_days, 0, 0
    FROM users u
    CROSS JOIN leave_types t
    WHERE u.is_active AND t.is_active
      AND (t.applicable_gender IS NULL OR t.applicable_gender = 'all' OR t.applicable_gender = u.gender)
    ON CONFLICT (user_id, leave_type_id, year) DO NOTHING
  `, year)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
