package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/auth"
	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
	"github.com/clearpath-health/intake-engine/pkg/services"
)

// LeadRequest is the body for POST /api/leads and PUT /api/leads/{id}.
// These are the ingestion endpoints: ad platforms and form integrations
// submit raw leads here, free-text notes included.
type LeadRequest struct {
	ExternalID *string `json:"external_id,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Name       string  `json:"name"`
	Project    string  `json:"project"`
	Source     string  `json:"source,omitempty"`
	Campaign   string  `json:"campaign,omitempty"`
	Status     string  `json:"status,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// LeadListResponse is the body for GET /api/leads.
type LeadListResponse struct {
	Leads []*models.Lead `json:"leads"`
	Total int            `json:"total"`
}

// LeadHandler handles lead HTTP requests.
type LeadHandler struct {
	leads   repositories.LeadRepository
	matcher services.IdentityMatcher
	logger  *zap.Logger
}

// NewLeadHandler creates a new lead handler. The matcher resolves a lead's
// identity against the appointments table.
func NewLeadHandler(leads repositories.LeadRepository, matcher services.IdentityMatcher, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		leads:   leads,
		matcher: matcher,
		logger:  logger,
	}
}

// RegisterRoutes registers the lead handler's routes on the given mux.
func (h *LeadHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/leads", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/leads", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/leads/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/leads/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/leads/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/leads/{id}/match", authMiddleware.RequireAuth(h.Match))
}

// Create handles POST /api/leads.
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_lead", msg)
		return
	}

	lead := req.toModel()
	if err := h.leads.Create(r.Context(), lead); err != nil {
		h.logger.Error("Failed to create lead", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "create_lead_failed", "failed to create lead")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, lead); err != nil {
		h.logger.Error("Failed to encode lead response", zap.Error(err))
	}
}

// List handles GET /api/leads.
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := RequireProject(w, r, h.logger)
	if !ok {
		return
	}
	search, ok := ScreenedSearch(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset := ParsePagination(r)

	leads, err := h.leads.List(r.Context(), project, search, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list leads", zap.String("project", project), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_leads_failed", "failed to list leads")
		return
	}

	if err := WriteJSON(w, http.StatusOK, LeadListResponse{Leads: leads, Total: len(leads)}); err != nil {
		h.logger.Error("Failed to encode leads response", zap.Error(err))
	}
}

// Get handles GET /api/leads/{id}.
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	lead, err := h.leads.Get(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "lead_not_found", "lead not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get lead", zap.String("lead_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get_lead_failed", "failed to get lead")
		return
	}

	if err := WriteJSON(w, http.StatusOK, lead); err != nil {
		h.logger.Error("Failed to encode lead response", zap.Error(err))
	}
}

// Update handles PUT /api/leads/{id}.
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_lead", msg)
		return
	}

	lead := req.toModel()
	lead.ID = id
	err := h.leads.Update(r.Context(), lead)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "lead_not_found", "lead not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to update lead", zap.String("lead_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "update_lead_failed", "failed to update lead")
		return
	}

	updated, err := h.leads.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to reload lead", zap.String("lead_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "update_lead_failed", "failed to reload lead")
		return
	}

	if err := WriteJSON(w, http.StatusOK, updated); err != nil {
		h.logger.Error("Failed to encode lead response", zap.Error(err))
	}
}

// Delete handles DELETE /api/leads/{id}.
func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	err := h.leads.Delete(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "lead_not_found", "lead not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete lead", zap.String("lead_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "delete_lead_failed", "failed to delete lead")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Match handles GET /api/leads/{id}/match: it resolves the lead's identity
// against the appointments table.
func (h *LeadHandler) Match(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	lead, err := h.leads.Get(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "lead_not_found", "lead not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get lead", zap.String("lead_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get_lead_failed", "failed to get lead")
		return
	}

	result, err := h.matcher.Match(r.Context(), &models.PartialIdentity{
		ExternalID: lead.ExternalID,
		Phone:      lead.Phone,
		Email:      lead.Email,
		Name:       lead.Name,
		Project:    lead.Project,
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no_match", "no matching appointment found")
		return
	}
	if err != nil {
		h.logger.Error("Lead match failed", zap.String("lead_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "match_failed", "failed to match lead")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode match response", zap.Error(err))
	}
}

func (r *LeadRequest) validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(r.Project) == "" {
		return "project is required"
	}
	return ""
}

func (r *LeadRequest) toModel() *models.Lead {
	return &models.Lead{
		SubjectRecord: models.SubjectRecord{
			ExternalID: r.ExternalID,
			Phone:      r.Phone,
			Email:      r.Email,
			Name:       r.Name,
			Project:    r.Project,
			Notes:      r.Notes,
		},
		Source:   r.Source,
		Campaign: r.Campaign,
		Status:   r.Status,
	}
}

func (h *LeadHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
