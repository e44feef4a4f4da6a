package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	GenderAll    = "all"
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

type LeaveType struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	DefaultDays         decimal.Decimal `json:"defaultDays"`
	IsCarryForward      bool            `json:"isCarryForward"`
	MaxCarryForwardDays decimal.Decimal `json:"maxCarryForwardDays"`
	ApplicableGender    string          `json:"applicableGender"`
	IsHalfDayAllowed    bool            `json:"isHalfDayAllowed"`
	IsPaidLeave         bool            `json:"isPaidLeave"`
	IsActive            bool            `json:"isActive"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// AppliesTo reports whether the leave type may be requested by a user of the
// given gender. An empty or "all" filter admits everyone.
func (t LeaveType) AppliesTo(gender string) bool {
	if t.ApplicableGender == "" || t.ApplicableGender == GenderAll {
		return true
	}
	return t.ApplicableGender == gender
}

type Holiday struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
}

// Balance is one ledger row: the allotment, consumption, and carry-forward
// for a user, leave type, and calendar year.
type Balance struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	LeaveTypeID  string          `json:"leaveTypeId"`
	Year         int             `json:"year"`
	Allotted     decimal.Decimal `json:"allotted"`
	Used         decimal.Decimal `json:"used"`
	CarryForward decimal.Decimal `json:"carryForward"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (b Balance) Available() decimal.Decimal {
	return b.Allotted.Add(b.CarryForward).Sub(b.Used)
}

func (b Balance) CanConsume(days decimal.Decimal) bool {
	return b.Available().GreaterThanOrEqual(days)
}
