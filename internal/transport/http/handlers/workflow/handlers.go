package workflowhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lms/internal/domain/audit"
	"lms/internal/domain/auth"
	"lms/internal/domain/workflow"
	"lms/internal/transport/http/api"
	"lms/internal/transport/http/middleware"
	"lms/internal/transport/http/shared"
)

type Handler struct {
	Engine  *workflow.Engine
	Service *workflow.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(engine *workflow.Engine, service *workflow.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Engine: engine, Service: service, Perms: perms, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave/requests", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/", h.handleListMine)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Get("/pending", h.handleListPending)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/{requestID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/{requestID}/decide", h.handleDecide)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/{requestID}/cancel", h.handleCancel)
	})
	r.Route("/workflow", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermWorkflowRead, h.Perms)).Get("/categories", h.handleListCategories)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Post("/categories", h.handleCreateCategory)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Put("/categories/{categoryID}", h.handleUpdateCategory)
		r.With(middleware.RequirePermission(auth.PermWorkflowRead, h.Perms)).Get("/workflows", h.handleListWorkflows)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Post("/workflows", h.handleCreateWorkflow)
		r.With(middleware.RequirePermission(auth.PermWorkflowWrite, h.Perms)).Put("/workflows/{workflowID}", h.handleUpdateWorkflow)
	})
}

// failEngine maps workflow errors onto HTTP statuses.
func failEngine(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, workflow.ErrNoCategoryMatch):
		api.Fail(w, http.StatusUnprocessableEntity, "no_category_match", err.Error(), requestID)
	case errors.Is(err, workflow.ErrNoWorkflowMatch):
		api.Fail(w, http.StatusUnprocessableEntity, "no_workflow_match", err.Error(), requestID)
	case errors.Is(err, workflow.ErrInsufficientBalance):
		api.Fail(w, http.StatusUnprocessableEntity, "insufficient_balance", err.Error(), requestID)
	case errors.Is(err, workflow.ErrUnauthorizedApprover):
		api.Fail(w, http.StatusForbidden, "unauthorized_approver", err.Error(), requestID)
	case errors.Is(err, workflow.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "leave request not found", requestID)
	case errors.Is(err, workflow.ErrAlreadyTerminal):
		api.Fail(w, http.StatusConflict, "already_terminal", err.Error(), requestID)
	case errors.Is(err, workflow.ErrTransient):
		api.Fail(w, http.StatusServiceUnavailable, "transient_error", "temporarily unavailable, retry the request", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal error", requestID)
	}
}

type submitRequest struct {
	LeaveTypeID string `json:"leaveTypeId"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	RequestType string `json:"requestType"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload submitRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("leaveTypeId", payload.LeaveTypeID, "leaveTypeId is required")
	start, startOK := v.Date("startDate", payload.StartDate)
	end, endOK := v.Date("endDate", payload.EndDate)
	if startOK && endOK {
		v.DateOrder("startDate", start, "endDate", end)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	requestType := workflow.RequestType(payload.RequestType)
	if payload.RequestType == "" {
		requestType = workflow.RequestFullDay
	}

	created, err := h.Engine.SubmitRequest(r.Context(), workflow.SubmitInput{
		UserID:      user.UserID,
		LeaveTypeID: payload.LeaveTypeID,
		StartDate:   start,
		EndDate:     end,
		RequestType: requestType,
		Reason:      payload.Reason,
	})
	if err != nil {
		failEngine(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "leave.request.submit", "leave_request", created.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
		"leaveTypeId":  created.LeaveTypeID,
		"numberOfDays": created.NumberOfDays,
		"workflow":     created.Plan.WorkflowName,
	}); err != nil {
		slog.Warn("audit leave.request.submit failed", "err", err)
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	requests, err := h.Service.ListMine(r.Context(), user.UserID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "requests_list_failed", "failed to list requests", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, requests, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	requests, err := h.Service.ListPendingForApprover(r.Context(), user.UserID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "pending_list_failed", "failed to list pending approvals", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, requests, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	req, err := h.Engine.GetRequest(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		failEngine(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if req.UserID != user.UserID && !h.hasPermission(r, user.RoleID, auth.PermLeaveApprove) && !h.hasPermission(r, user.RoleID, auth.PermLeaveAdmin) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to view this request", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

type decideRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload decideRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Decision != "approve" && payload.Decision != "reject" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "decision must be approve or reject", middleware.GetRequestID(r.Context()))
		return
	}

	requestID := chi.URLParam(r, "requestID")
	updated, err := h.Engine.RecordDecision(r.Context(), workflow.DecisionInput{
		RequestID: requestID,
		ActorID:   user.UserID,
		Approve:   payload.Decision == "approve",
		Comment:   payload.Comment,
	})
	if err != nil {
		failEngine(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "leave.request."+payload.Decision, "leave_request", requestID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{
		"status":     updated.Status,
		"stepCursor": updated.StepCursor,
	}); err != nil {
		slog.Warn("audit leave.request.decide failed", "err", err)
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	requestID := chi.URLParam(r, "requestID")
	req, err := h.Engine.GetRequest(r.Context(), requestID)
	if err != nil {
		failEngine(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if req.UserID != user.UserID && !h.hasPermission(r, user.RoleID, auth.PermLeaveAdmin) {
		api.Fail(w, http.StatusForbidden, "forbidden", "only the submitter may cancel this request", middleware.GetRequestID(r.Context()))
		return
	}

	updated, err := h.Engine.CancelRequest(r.Context(), requestID)
	if err != nil {
		failEngine(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "leave.request.cancel", "leave_request", requestID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{"status": updated.Status}); err != nil {
		slog.Warn("audit leave.request.cancel failed", "err", err)
	}
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) hasPermission(r *http.Request, roleID, permission string) bool {
	allowed, err := h.Perms.HasPermission(r.Context(), roleID, permission)
	if err != nil {
		slog.Warn("permission check failed", "permission", permission, "err", err)
		return false
	}
	return allowed
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""
	categories, err := h.Service.ListCategories(r.Context(), activeOnly)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "categories_list_failed", "failed to list categories", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, categories, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload workflow.WorkflowCategory
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	id, err := h.Service.CreateCategory(r.Context(), payload)
	if err != nil {
		if errors.Is(err, workflow.ErrValidation) {
			api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "category_create_failed", "failed to create category", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "workflow.category.create", "workflow_category", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit workflow.category.create failed", "err", err)
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload workflow.WorkflowCategory
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	payload.ID = chi.URLParam(r, "categoryID")

	if err := h.Service.UpdateCategory(r.Context(), payload); err != nil {
		switch {
		case errors.Is(err, workflow.ErrValidation):
			api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), middleware.GetRequestID(r.Context()))
		case errors.Is(err, workflow.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "not_found", "category not found", middleware.GetRequestID(r.Context()))
		default:
			api.Fail(w, http.StatusInternalServerError, "category_update_failed", "failed to update category", middleware.GetRequestID(r.Context()))
		}
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "workflow.category.update", "workflow_category", payload.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit workflow.category.update failed", "err", err)
	}
	api.Success(w, map[string]string{"id": payload.ID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") == ""
	workflows, err := h.Service.ListWorkflows(r.Context(), activeOnly)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "workflows_list_failed", "failed to list workflows", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, workflows, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload workflow.ApprovalWorkflow
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	id, err := h.Service.CreateWorkflow(r.Context(), payload)
	if err != nil {
		if errors.Is(err, workflow.ErrValidation) {
			api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "workflow_create_failed", "failed to create workflow", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "workflow.workflow.create", "approval_workflow", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit workflow.workflow.create failed", "err", err)
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload workflow.ApprovalWorkflow
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	payload.ID = chi.URLParam(r, "workflowID")

	if err := h.Service.UpdateWorkflow(r.Context(), payload); err != nil {
		switch {
		case errors.Is(err, workflow.ErrValidation):
			api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), middleware.GetRequestID(r.Context()))
		case errors.Is(err, workflow.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "not_found", "workflow not found", middleware.GetRequestID(r.Context()))
		default:
			api.Fail(w, http.StatusInternalServerError, "workflow_update_failed", "failed to update workflow", middleware.GetRequestID(r.Context()))
		}
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "workflow.workflow.update", "approval_workflow", payload.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit workflow.workflow.update failed", "err", err)
	}
	api.Success(w, map[string]string{"id": payload.ID}, middleware.GetRequestID(r.Context()))
}
