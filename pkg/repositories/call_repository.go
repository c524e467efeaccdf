package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/database"
	"github.com/clearpath-health/intake-engine/pkg/models"
)

// CallRepository defines the interface for call log data access.
type CallRepository interface {
	Create(ctx context.Context, call *models.Call) error
	Get(ctx context.Context, id uuid.UUID) (*models.Call, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, project string, limit, offset int) ([]*models.Call, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]*models.Call, error)
}

// callRepository implements CallRepository using PostgreSQL.
type callRepository struct {
	db *database.DB
}

// NewCallRepository creates a new call repository.
func NewCallRepository(db *database.DB) CallRepository {
	return &callRepository{db: db}
}

const callColumns = `id, project, lead_id, phone, direction, duration_seconds, outcome, notes, occurred_at, created_at`

// Create inserts a new call log entry.
func (r *callRepository) Create(ctx context.Context, call *models.Call) error {
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}
	if call.OccurredAt.IsZero() {
		call.OccurredAt = call.CreatedAt
	}

	query := `
		INSERT INTO calls (id, project, lead_id, phone, direction, duration_seconds, outcome, notes, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		call.ID,
		call.Project,
		call.LeadID,
		call.Phone,
		call.Direction,
		call.DurationSeconds,
		call.Outcome,
		call.Notes,
		call.OccurredAt,
		call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

// Get retrieves a call by ID.
func (r *callRepository) Get(ctx context.Context, id uuid.UUID) (*models.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`

	call, err := scanCall(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}

// Delete removes a call by ID.
func (r *callRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM calls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete call: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListByProject returns calls for a project, most recent first.
func (r *callRepository) ListByProject(ctx context.Context, project string, limit, offset int) ([]*models.Call, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE project = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, project, limit, offset)
}

// ListByLead returns all calls attached to a lead, most recent first.
func (r *callRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]*models.Call, error) {
	query := `
		SELECT ` + callColumns + `
		FROM calls
		WHERE lead_id = $1
		ORDER BY occurred_at DESC`

	return r.list(ctx, query, leadID)
}

func (r *callRepository) list(ctx context.Context, query string, args ...any) ([]*models.Call, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	var calls []*models.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, rows.Err()
}

func scanCall(row pgx.Row) (*models.Call, error) {
	var call models.Call
	err := row.Scan(
		&call.ID,
		&call.Project,
		&call.LeadID,
		&call.Phone,
		&call.Direction,
		&call.DurationSeconds,
		&call.Outcome,
		&call.Notes,
		&call.OccurredAt,
		&call.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &call, nil
}
