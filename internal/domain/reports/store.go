package reports

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

type BalanceLine struct {
	LeaveTypeID   string          `json:"leaveTypeId"`
	LeaveTypeName string          `json:"leaveTypeName"`
	Allotted      decimal.Decimal `json:"allotted"`
	Used          decimal.Decimal `json:"used"`
	CarryForward  decimal.Decimal `json:"carryForward"`
	Available     decimal.Decimal `json:"available"`
}

type BalanceSummary struct {
	UserID    string        `json:"userId"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Email     string        `json:"email"`
	Year      int           `json:"year"`
	Lines     []BalanceLine `json:"lines"`
}

func (s *Store) BalanceSummary(ctx context.Context, userID string, year int) (*BalanceSummary, error) {
	summary := &BalanceSummary{UserID: userID, Year: year}
	err := s.DB.QueryRow(ctx, `
    SELECT first_name, last_name, email FROM users WHERE id = $1
  `, userID).Scan(&summary.FirstName, &summary.LastName, &summary.Email)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT t.id, t.name, b.allotted, b.used, b.carry_forward
    FROM leave_balances b
    JOIN leave_types t ON b.leave_type_id = t.id
    WHERE b.user_id = $1 AND b.year = $2
    ORDER BY t.name
  `, userID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line BalanceLine
		var allotted, used, carry float64
		if err := rows.Scan(&line.LeaveTypeID, &line.LeaveTypeName, &allotted, &used, &carry); err != nil {
			return nil, err
		}
		line.Allotted = decimal.NewFromFloat(allotted)
		line.Used = decimal.NewFromFloat(used)
		line.CarryForward = decimal.NewFromFloat(carry)
		line.Available = line.Allotted.Add(line.CarryForward).Sub(line.Used)
		summary.Lines = append(summary.Lines, line)
	}
	return summary, rows.Err()
}

type CalendarEntry struct {
	UserID        string          `json:"userId"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	LeaveTypeName string          `json:"leaveTypeName"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       time.Time       `json:"endDate"`
	NumberOfDays  decimal.Decimal `json:"numberOfDays"`
	Status        string          `json:"status"`
}

// CalendarEntries lists approved and in-flight requests overlapping the window,
// optionally restricted to one department.
func (s *Store) CalendarEntries(ctx context.Context, from, to time.Time, departmentID string) ([]CalendarEntry, error) {
	query := `
    SELECT u.id, u.first_name, u.last_name, t.name,
           r.start_date, r.end_date, r.number_of_days, r.status
    FROM leave_requests r
    JOIN users u ON r.user_id = u.id
    JOIN leave_types t ON r.leave_type_id = t.id
    WHERE r.status IN ('pending', 'partially_approved', 'approved')
      AND r.start_date <= $2 AND r.end_date >= $1`
	args := []any{from, to}
	if departmentID != "" {
		query += " AND u.department_id = $3"
		args = append(args, departmentID)
	}
	query += " ORDER BY r.start_date, u.last_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CalendarEntry
	for rows.Next() {
		var entry CalendarEntry
		var days float64
		if err := rows.Scan(&entry.UserID, &entry.FirstName, &entry.LastName, &entry.LeaveTypeName,
			&entry.StartDate, &entry.EndDate, &days, &entry.Status); err != nil {
			return nil, err
		}
		entry.NumberOfDays = decimal.NewFromFloat(days)
		out = append(out, entry)
	}
	return out, rows.Err()
}

type DashboardCounts struct {
	PendingRequests  int `json:"pendingRequests"`
	ApprovedThisYear int `json:"approvedThisYear"`
	RejectedThisYear int `json:"rejectedThisYear"`
	ActiveUsers      int `json:"activeUsers"`
	UpcomingHolidays int `json:"upcomingHolidays"`
}

func (s *Store) Dashboard(ctx context.Context, now time.Time) (*DashboardCounts, error) {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	counts := &DashboardCounts{}
	err := s.DB.QueryRow(ctx, `
    SELECT
      (SELECT COUNT(1) FROM leave_requests WHERE status IN ('pending', 'partially_approved')),
      (SELECT COUNT(1) FROM leave_requests WHERE status = 'approved' AND updated_at >= $1),
      (SELECT COUNT(1) FROM leave_requests WHERE status = 'rejected' AND updated_at >= $1),
      (SELECT COUNT(1) FROM users WHERE is_active),
      (SELECT COUNT(1) FROM holidays WHERE is_active AND date BETWEEN $2 AND $2 + INTERVAL '30 days')
  `, yearStart, now).Scan(&counts.PendingRequests, &counts.ApprovedThisYear, &counts.RejectedThisYear,
		&counts.ActiveUsers, &counts.UpcomingHolidays)
	if err != nil {
		return nil, err
	}
	return counts, nil
}
