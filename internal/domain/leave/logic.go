package leave

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const dateKeyFormat = "2006-01-02"

var ErrInvalidRange = errors.New("end date before start date")

// DateKey normalizes a timestamp to its YYYY-MM-DD form, the key used for
// holiday lookups.
func DateKey(day time.Time) string {
	return day.Format(dateKeyFormat)
}

// IsWorkingDay reports whether day is neither a weekend nor a listed holiday.
func IsWorkingDay(day time.Time, holidays map[string]bool) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !holidays[DateKey(day)]
}

// CalculateDays returns the number of working days between start and end
// inclusive, skipping weekends and holidays.
func CalculateDays(start, end time.Time, holidays map[string]bool) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, ErrInvalidRange
	}
	count := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if IsWorkingDay(day, holidays) {
			count++
		}
	}
	return decimal.NewFromInt(int64(count)), nil
}

// ComputeCarryForward returns the carry-forward credit for the next year:
// whatever is left of the balance, capped at the leave type's limit. Negative
// remainders carry nothing.
func ComputeCarryForward(available, maxCarryForwardDays decimal.Decimal) decimal.Decimal {
	if available.IsNegative() {
		return decimal.Zero
	}
	if available.GreaterThan(maxCarryForwardDays) {
		return maxCarryForwardDays
	}
	return available
}
