package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/auth"
	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
)

// CallRequest is the body for POST /api/calls.
type CallRequest struct {
	Project         string     `json:"project"`
	LeadID          *uuid.UUID `json:"lead_id,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	Direction       string     `json:"direction"`
	DurationSeconds int        `json:"duration_seconds"`
	Outcome         string     `json:"outcome,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
}

// CallListResponse is the body for GET /api/calls.
type CallListResponse struct {
	Calls []*models.Call `json:"calls"`
	Total int            `json:"total"`
}

// CallHandler handles call log HTTP requests.
type CallHandler struct {
	calls  repositories.CallRepository
	logger *zap.Logger
}

// NewCallHandler creates a new call handler.
func NewCallHandler(calls repositories.CallRepository, logger *zap.Logger) *CallHandler {
	return &CallHandler{calls: calls, logger: logger}
}

// RegisterRoutes registers the call handler's routes on the given mux.
func (h *CallHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/calls", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/calls", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("DELETE /api/calls/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/leads/{id}/calls", authMiddleware.RequireAuth(h.ListByLead))
}

// Create handles POST /api/calls.
func (h *CallHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if req.Project == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_call", "project is required")
		return
	}
	switch req.Direction {
	case models.CallDirectionInbound, models.CallDirectionOutbound:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_call", "direction must be inbound or outbound")
		return
	}

	call := &models.Call{
		Project:         req.Project,
		LeadID:          req.LeadID,
		Phone:           req.Phone,
		Direction:       req.Direction,
		DurationSeconds: req.DurationSeconds,
		Outcome:         req.Outcome,
		Notes:           req.Notes,
	}
	if req.OccurredAt != nil {
		call.OccurredAt = *req.OccurredAt
	}

	if err := h.calls.Create(r.Context(), call); err != nil {
		h.logger.Error("Failed to create call", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "create_call_failed", "failed to create call")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, call); err != nil {
		h.logger.Error("Failed to encode call response", zap.Error(err))
	}
}

// List handles GET /api/calls.
func (h *CallHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := RequireProject(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset := ParsePagination(r)

	calls, err := h.calls.ListByProject(r.Context(), project, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list calls", zap.String("project", project), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_calls_failed", "failed to list calls")
		return
	}

	if err := WriteJSON(w, http.StatusOK, CallListResponse{Calls: calls, Total: len(calls)}); err != nil {
		h.logger.Error("Failed to encode calls response", zap.Error(err))
	}
}

// ListByLead handles GET /api/leads/{id}/calls.
func (h *CallHandler) ListByLead(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	calls, err := h.calls.ListByLead(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list calls for lead", zap.String("lead_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_calls_failed", "failed to list calls")
		return
	}

	if err := WriteJSON(w, http.StatusOK, CallListResponse{Calls: calls, Total: len(calls)}); err != nil {
		h.logger.Error("Failed to encode calls response", zap.Error(err))
	}
}

// Delete handles DELETE /api/calls/{id}.
func (h *CallHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	err := h.calls.Delete(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "call_not_found", "call not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete call", zap.String("call_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "delete_call_failed", "failed to delete call")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CallHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
