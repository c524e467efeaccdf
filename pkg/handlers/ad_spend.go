package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/auth"
	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
)

// AdSpendRequest is the body for POST /api/adspend. Spend feeds re-deliver
// whole days, so the endpoint upserts on (project, platform, campaign, date).
type AdSpendRequest struct {
	Project     string `json:"project"`
	Platform    string `json:"platform"`
	Campaign    string `json:"campaign,omitempty"`
	Date        string `json:"date"` // YYYY-MM-DD
	AmountCents int64  `json:"amount_cents"`
	LeadCount   int    `json:"lead_count"`
}

// AdSpendListResponse is the body for GET /api/adspend.
type AdSpendListResponse struct {
	Entries []*models.AdSpend `json:"entries"`
	Total   int               `json:"total"`
}

// AdSpendHandler handles ad spend HTTP requests.
type AdSpendHandler struct {
	spend  repositories.AdSpendRepository
	logger *zap.Logger
}

// NewAdSpendHandler creates a new ad spend handler.
func NewAdSpendHandler(spend repositories.AdSpendRepository, logger *zap.Logger) *AdSpendHandler {
	return &AdSpendHandler{spend: spend, logger: logger}
}

// RegisterRoutes registers the ad spend handler's routes on the given mux.
func (h *AdSpendHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/adspend", authMiddleware.RequireAuth(h.Upsert))
	mux.HandleFunc("GET /api/adspend", authMiddleware.RequireAuth(h.List))
}

// Upsert handles POST /api/adspend.
func (h *AdSpendHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req AdSpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if req.Project == "" || req.Platform == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_spend", "project and platform are required")
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_spend", "date must be YYYY-MM-DD")
		return
	}

	spend := &models.AdSpend{
		Project:     req.Project,
		Platform:    req.Platform,
		Campaign:    req.Campaign,
		Date:        date,
		AmountCents: req.AmountCents,
		LeadCount:   req.LeadCount,
	}

	if err := h.spend.Upsert(r.Context(), spend); err != nil {
		h.logger.Error("Failed to upsert ad spend", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "upsert_spend_failed", "failed to save ad spend")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, spend); err != nil {
		h.logger.Error("Failed to encode spend response", zap.Error(err))
	}
}

// List handles GET /api/adspend. The from/to query parameters default to
// the last 30 days.
func (h *AdSpendHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := RequireProject(w, r, h.logger)
	if !ok {
		return
	}

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_range", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_range", "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}

	entries, err := h.spend.ListByProject(r.Context(), project, from, to)
	if err != nil {
		h.logger.Error("Failed to list ad spend", zap.String("project", project), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "list_spend_failed", "failed to list ad spend")
		return
	}

	if err := WriteJSON(w, http.StatusOK, AdSpendListResponse{Entries: entries, Total: len(entries)}); err != nil {
		h.logger.Error("Failed to encode spend response", zap.Error(err))
	}
}

func (h *AdSpendHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
