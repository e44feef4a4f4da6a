package reportshandler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"lms/internal/domain/auth"
	"lms/internal/domain/reports"
	"lms/internal/transport/http/api"
	"lms/internal/transport/http/middleware"
	"lms/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/balances/me", h.handleMyBalanceSummary)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/balances/me/pdf", h.handleMyBalancePDF)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Get("/balances/{userID}", h.handleBalanceSummary)
		r.With(middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)).Get("/balances/{userID}/pdf", h.handleBalancePDF)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/calendar", h.handleCalendar)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/calendar.csv", h.handleCalendarCSV)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/dashboard", h.handleDashboard)
	})
}

func (h *Handler) handleMyBalanceSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	h.writeSummary(w, r, user.UserID)
}

func (h *Handler) handleBalanceSummary(w http.ResponseWriter, r *http.Request) {
	h.writeSummary(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) writeSummary(w http.ResponseWriter, r *http.Request, userID string) {
	year := parseYear(r)
	summary, err := h.Service.BalanceSummary(r.Context(), userID, year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build balance summary", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMyBalancePDF(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	h.writePDF(w, r, user.UserID)
}

func (h *Handler) handleBalancePDF(w http.ResponseWriter, r *http.Request) {
	h.writePDF(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) writePDF(w http.ResponseWriter, r *http.Request, userID string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="leave-balance.pdf"`)
	if err := h.Service.WriteBalancePDF(r.Context(), w, userID, parseYear(r)); err != nil {
		// Headers may already be written, nothing more we can do.
		return
	}
}

func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseWindow(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.CalendarEntries(r.Context(), from, to, r.URL.Query().Get("departmentId"))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build calendar", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCalendarCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.parseWindow(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leave-calendar.csv"`)
	if err := h.Service.WriteCalendarCSV(r.Context(), w, from, to, r.URL.Query().Get("departmentId")); err != nil {
		return
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Service.Dashboard(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build dashboard", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, counts, middleware.GetRequestID(r.Context()))
}

func (h *Handler) parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", "from must be YYYY-MM-DD", middleware.GetRequestID(r.Context()))
			return from, to, false
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "validation_error", "to must be YYYY-MM-DD", middleware.GetRequestID(r.Context()))
			return from, to, false
		}
		to = parsed
	}
	if to.Before(from) {
		api.Fail(w, http.StatusBadRequest, "validation_error", "to must not be before from", middleware.GetRequestID(r.Context()))
		return from, to, false
	}
	return from, to, true
}

func parseYear(r *http.Request) int {
	if raw := r.URL.Query().Get("year"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return 0
}
