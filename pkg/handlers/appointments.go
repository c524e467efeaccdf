package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/auth"
	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
	"github.com/clearpath-health/intake-engine/pkg/services"
)

// AppointmentRequest is the body for POST /api/appointments and
// PUT /api/appointments/{id}. The booking system sync submits here.
type AppointmentRequest struct {
	ExternalID  *string    `json:"external_id,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Name        string     `json:"name"`
	Project     string     `json:"project"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Status      string     `json:"status,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// AppointmentListResponse is the body for GET /api/appointments.
type AppointmentListResponse struct {
	Appointments []*models.Appointment `json:"appointments"`
	Total        int                   `json:"total"`
}

// AppointmentHandler handles appointment HTTP requests.
type AppointmentHandler struct {
	appointments repositories.AppointmentRepository
	matcher      services.IdentityMatcher
	logger       *zap.Logger
}

// NewAppointmentHandler creates a new appointment handler. The matcher
// resolves an appointment's identity against the leads table.
func NewAppointmentHandler(appointments repositories.AppointmentRepository, matcher services.IdentityMatcher, logger *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		appointments: appointments,
		matcher:      matcher,
		logger:       logger,
	}
}

// RegisterRoutes registers the appointment handler's routes on the given mux.
func (h *AppointmentHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/appointments", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/appointments", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/appointments/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/appointments/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/appointments/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("GET /api/appointments/{id}/match", authMiddleware.RequireAuth(h.Match))
}

// Create handles POST /api/appointments.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_appointment", msg)
		return
	}

	appointment := req.toModel()
	if err := h.appointments.Create(r.Context(), appointment); err != nil {
		h.logger.Error("Failed to create appointment", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "create_appointment_failed", "failed to create appointment")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, appointment); err != nil {
		h.logger.Error("Failed to encode appointment response", zap.Error(err))
	}
}

// List handles GET /api/appointments.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := RequireProject(w, r, h.logger)
	if !ok {
		return
	}
	search, ok := ScreenedSearch(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset := ParsePagination(r)

	appointments, err := h.appointments.List(r.Context(), project, search, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list appointments", zap.String("project", project), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_appointments_failed", "failed to list appointments")
		return
	}

	if err := WriteJSON(w, http.StatusOK, AppointmentListResponse{Appointments: appointments, Total: len(appointments)}); err != nil {
		h.logger.Error("Failed to encode appointments response", zap.Error(err))
	}
}

// Get handles GET /api/appointments/{id}.
func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	appointment, err := h.appointments.Get(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get appointment", zap.String("appointment_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get_appointment_failed", "failed to get appointment")
		return
	}

	if err := WriteJSON(w, http.StatusOK, appointment); err != nil {
		h.logger.Error("Failed to encode appointment response", zap.Error(err))
	}
}

// Update handles PUT /api/appointments/{id}.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, "invalid_appointment", msg)
		return
	}

	appointment := req.toModel()
	appointment.ID = id
	err := h.appointments.Update(r.Context(), appointment)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to update appointment", zap.String("appointment_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "update_appointment_failed", "failed to update appointment")
		return
	}

	updated, err := h.appointments.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to reload appointment", zap.String("appointment_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "update_appointment_failed", "failed to reload appointment")
		return
	}

	if err := WriteJSON(w, http.StatusOK, updated); err != nil {
		h.logger.Error("Failed to encode appointment response", zap.Error(err))
	}
}

// Delete handles DELETE /api/appointments/{id}.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	err := h.appointments.Delete(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete appointment", zap.String("appointment_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "delete_appointment_failed", "failed to delete appointment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Match handles GET /api/appointments/{id}/match: it resolves the
// appointment's identity against the leads table.
func (h *AppointmentHandler) Match(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	appointment, err := h.appointments.Get(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "appointment_not_found", "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get appointment", zap.String("appointment_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "get_appointment_failed", "failed to get appointment")
		return
	}

	result, err := h.matcher.Match(r.Context(), &models.PartialIdentity{
		ExternalID: appointment.ExternalID,
		Phone:      appointment.Phone,
		Email:      appointment.Email,
		Name:       appointment.Name,
		Project:    appointment.Project,
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "no_match", "no matching lead found")
		return
	}
	if err != nil {
		h.logger.Error("Appointment match failed", zap.String("appointment_id", id.String()), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "match_failed", "failed to match appointment")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode match response", zap.Error(err))
	}
}

func (r *AppointmentRequest) validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(r.Project) == "" {
		return "project is required"
	}
	return ""
}

func (r *AppointmentRequest) toModel() *models.Appointment {
	return &models.Appointment{
		SubjectRecord: models.SubjectRecord{
			ExternalID: r.ExternalID,
			Phone:      r.Phone,
			Email:      r.Email,
			Name:       r.Name,
			Project:    r.Project,
			Notes:      r.Notes,
		},
		ScheduledAt: r.ScheduledAt,
		Status:      r.Status,
	}
}

func (h *AppointmentHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
