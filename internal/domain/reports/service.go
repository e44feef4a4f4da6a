package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) BalanceSummary(ctx context.Context, userID string, year int) (*BalanceSummary, error) {
	if year == 0 {
		year = time.Now().Year()
	}
	return s.store.BalanceSummary(ctx, userID, year)
}

// WriteBalancePDF renders a one-page balance statement for the user.
func (s *Service) WriteBalancePDF(ctx context.Context, w io.Writer, userID string, year int) error {
	summary, err := s.BalanceSummary(ctx, userID, year)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Balance Statement")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s %s", summary.FirstName, summary.LastName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Email: %s", summary.Email))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Year: %d", summary.Year))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(60, 8, "Leave Type", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, "Allotted", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Carried", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Used", "1", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Available", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range summary.Lines {
		pdf.CellFormat(60, 8, line.LeaveTypeName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 8, line.Allotted.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, line.CarryForward.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, line.Used.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 8, line.Available.String(), "1", 1, "R", false, 0, "")
	}

	return pdf.Output(w)
}

func (s *Service) CalendarEntries(ctx context.Context, from, to time.Time, departmentID string) ([]CalendarEntry, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: to before from")
	}
	return s.store.CalendarEntries(ctx, from, to, departmentID)
}

// WriteCalendarCSV streams the leave calendar for the window as CSV.
func (s *Service) WriteCalendarCSV(ctx context.Context, w io.Writer, from, to time.Time, departmentID string) error {
	entries, err := s.CalendarEntries(ctx, from, to, departmentID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"employee", "leave_type", "start_date", "end_date", "days", "status"}); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			entry.FirstName + " " + entry.LastName,
			entry.LeaveTypeName,
			entry.StartDate.Format("2006-01-02"),
			entry.EndDate.Format("2006-01-02"),
			entry.NumberOfDays.String(),
			entry.Status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) Dashboard(ctx context.Context) (*DashboardCounts, error) {
	return s.store.Dashboard(ctx, time.Now())
}
