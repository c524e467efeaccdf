package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/auth"
	"github.com/clearpath-health/intake-engine/pkg/services"
)

// PipelineRole is the role required to trigger bulk pipeline runs.
const PipelineRole = "staff"

// ParseRunRequest is the body for POST /api/parse/run.
type ParseRunRequest struct {
	Source     string `json:"source"`
	MaxRecords int    `json:"max_records,omitempty"`
}

// ParseBackfillRequest is the body for POST /api/parse/backfill.
type ParseBackfillRequest struct {
	BatchSize int `json:"batch_size,omitempty"`
}

// DedupRunRequest is the body for POST /api/dedup/run.
type DedupRunRequest struct {
	Project  string `json:"project"`
	Source   string `json:"source,omitempty"`
	Backfill bool   `json:"backfill,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// PipelineHandler exposes the parsing queue and deduplication pipelines
// over HTTP. These endpoints mutate data in bulk, so they sit behind a
// role check on top of authentication.
type PipelineHandler struct {
	runner   services.ParsingQueueRunner
	resolver services.DeduplicationResolver
	sources  []services.ParseSource
	logger   *zap.Logger
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(
	runner services.ParsingQueueRunner,
	resolver services.DeduplicationResolver,
	sources []services.ParseSource,
	logger *zap.Logger,
) *PipelineHandler {
	return &PipelineHandler{
		runner:   runner,
		resolver: resolver,
		sources:  sources,
		logger:   logger,
	}
}

// RegisterRoutes registers the pipeline handler's routes on the given mux.
func (h *PipelineHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	requireStaff := authMiddleware.RequireRole(PipelineRole)
	mux.HandleFunc("POST /api/parse/run", requireStaff(h.ParseRun))
	mux.HandleFunc("POST /api/parse/backfill", requireStaff(h.ParseBackfill))
	mux.HandleFunc("POST /api/dedup/run", requireStaff(h.DedupRun))
}

// ParseRun handles POST /api/parse/run: one batch from one source.
func (h *PipelineHandler) ParseRun(w http.ResponseWriter, r *http.Request) {
	var req ParseRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	source, ok := h.findSource(req.Source)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "unknown_source", "source must be one of: "+h.sourceNames())
		return
	}

	report, err := h.runner.RunBatch(r.Context(), source, req.MaxRecords)
	if err != nil {
		h.logger.Error("Parse run failed", zap.String("source", req.Source), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "parse_run_failed", "parse run failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode parse report", zap.Error(err))
	}
}

// ParseBackfill handles POST /api/parse/backfill: drain every source.
func (h *PipelineHandler) ParseBackfill(w http.ResponseWriter, r *http.Request) {
	var req ParseBackfillRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
			return
		}
	}

	reports, err := h.runner.RunAll(r.Context(), req.BatchSize)
	if err != nil {
		h.logger.Error("Parse backfill failed", zap.Error(err))
		// Partial reports are still returned below only on success; a
		// drain error means some source stopped early.
		h.writeError(w, http.StatusInternalServerError, "parse_backfill_failed", "parse backfill failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"reports": reports}); err != nil {
		h.logger.Error("Failed to encode backfill reports", zap.Error(err))
	}
}

// DedupRun handles POST /api/dedup/run. With dry_run it returns the plan
// without deleting anything.
func (h *PipelineHandler) DedupRun(w http.ResponseWriter, r *http.Request) {
	var req DedupRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Project) == "" {
		h.writeError(w, http.StatusBadRequest, "missing_project", "project is required")
		return
	}

	opts := services.DedupOptions{
		Project:  req.Project,
		Source:   req.Source,
		Backfill: req.Backfill,
	}

	if req.DryRun {
		plans, err := h.resolver.Plan(r.Context(), opts)
		if err != nil {
			h.logger.Error("Dedup plan failed", zap.String("project", req.Project), zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "dedup_plan_failed", "dedup plan failed")
			return
		}
		if err := WriteJSON(w, http.StatusOK, map[string]any{"dry_run": true, "plans": plans}); err != nil {
			h.logger.Error("Failed to encode dedup plan", zap.Error(err))
		}
		return
	}

	reports, err := h.resolver.Run(r.Context(), opts)
	if err != nil {
		h.logger.Error("Dedup run failed", zap.String("project", req.Project), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "dedup_run_failed", "dedup run failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"reports": reports}); err != nil {
		h.logger.Error("Failed to encode dedup reports", zap.Error(err))
	}
}

func (h *PipelineHandler) findSource(name string) (services.ParseSource, bool) {
	for _, source := range h.sources {
		if source.Name == name {
			return source, true
		}
	}
	return services.ParseSource{}, false
}

func (h *PipelineHandler) sourceNames() string {
	names := make([]string, 0, len(h.sources))
	for _, source := range h.sources {
		names = append(names, source.Name)
	}
	return strings.Join(names, ", ")
}

func (h *PipelineHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
