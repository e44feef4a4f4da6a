package leave

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidType = errors.New("invalid leave type")

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) ListTypes(ctx context.Context, activeOnly bool) ([]LeaveType, error) {
	return s.Store.ListTypes(ctx, activeOnly)
}

func (s *Service) GetType(ctx context.Context, id string) (LeaveType, error) {
	return s.Store.GetType(ctx, id)
}

func (s *Service) CreateType(ctx context.Context, t LeaveType) (string, error) {
	if err := validateType(&t); err != nil {
		return "", err
	}
	return s.Store.CreateType(ctx, t)
}

func (s *Service) UpdateType(ctx context.Context, t LeaveType) error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrInvalidType
	}
	if err := validateType(&t); err != nil {
		return err
	}
	return s.Store.UpdateType(ctx, t)
}

func validateType(t *LeaveType) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return ErrInvalidType
	}
	if t.DefaultDays.IsNegative() || t.MaxCarryForwardDays.IsNegative() {
		return ErrInvalidType
	}
	if t.ApplicableGender == "" {
		t.ApplicableGender = GenderAll
	}
	switch t.ApplicableGender {
	case GenderAll, GenderMale, GenderFemale, GenderOther:
	default:
		return ErrInvalidType
	}
	return nil
}

func (s *Service) ListHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	if from.IsZero() {
		from = time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = from.AddDate(1, 0, 0)
	}
	return s.Store.ListHolidays(ctx, from, to)
}

func (s *Service) CreateHoliday(ctx context.Context, h Holiday) (string, error) {
	if strings.TrimSpace(h.Name) == "" || h.Date.IsZero() {
		return "", errors.New("holiday name and date are required")
	}
	return s.Store.CreateHoliday(ctx, h)
}

func (s *Service) DeleteHoliday(ctx context.Context, holidayID string) error {
	return s.Store.DeleteHoliday(ctx, holidayID)
}

func (s *Service) ListBalancesForUser(ctx context.Context, userID string, year int) ([]Balance, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	return s.Store.ListBalancesForUser(ctx, userID, year)
}

func (s *Service) AdjustAllotment(ctx context.Context, userID, leaveTypeID string, year int, allotted decimal.Decimal) error {
	if allotted.IsNegative() {
		return errors.New("allotment cannot be negative")
	}
	return s.Store.AdjustAllotment(ctx, userID, leaveTypeID, year, allotted)
}

func (s *Service) InitializeYearBalances(ctx context.Context, year int) (int, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	return s.Store.InitializeYearBalances(ctx, year)
}
