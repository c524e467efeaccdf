package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/sqlguard"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ParseID extracts and parses the {id} path value. Writes a 400 response
// and returns false when the id is not a UUID.
func ParseID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "id must be a UUID"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}

// RequireProject extracts the required project query parameter.
func RequireProject(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	project := r.URL.Query().Get("project")
	if project == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_project", "project query parameter is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return project, true
}

// ScreenedSearch extracts the optional search query parameter after running
// it through injection screening. Hostile input is rejected with a 400 and
// the libinjection fingerprint is logged.
func ScreenedSearch(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	search := r.URL.Query().Get("search")
	if result := sqlguard.CheckParameterForInjection("search", search); result != nil {
		logger.Warn("Rejected search parameter",
			zap.String("fingerprint", result.Fingerprint),
			zap.String("remote_addr", r.RemoteAddr))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_search", "search parameter rejected"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return search, true
}

// ParsePagination extracts limit and offset query parameters with defaults
// and an upper bound on limit.
func ParsePagination(r *http.Request) (limit, offset int) {
	limit = defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}
