package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/database"
	"github.com/clearpath-health/intake-engine/pkg/models"
)

// AdSpendRepository defines the interface for ad spend data access.
type AdSpendRepository interface {
	Upsert(ctx context.Context, spend *models.AdSpend) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByProject(ctx context.Context, project string, from, to time.Time) ([]*models.AdSpend, error)
}

// adSpendRepository implements AdSpendRepository using PostgreSQL.
type adSpendRepository struct {
	db *database.DB
}

// NewAdSpendRepository creates a new ad spend repository.
func NewAdSpendRepository(db *database.DB) AdSpendRepository {
	return &adSpendRepository{db: db}
}

// Upsert inserts a daily spend row or replaces it if the platform and
// campaign already reported for that date. Spend feeds re-deliver whole days,
// so replays must be safe.
func (r *adSpendRepository) Upsert(ctx context.Context, spend *models.AdSpend) error {
	if spend.ID == uuid.Nil {
		spend.ID = uuid.New()
	}
	if spend.CreatedAt.IsZero() {
		spend.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO ad_spend (id, project, platform, campaign, date, amount_cents, lead_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project, platform, campaign, date) DO UPDATE
		SET amount_cents = EXCLUDED.amount_cents,
		    lead_count = EXCLUDED.lead_count`

	_, err := r.db.Exec(ctx, query,
		spend.ID,
		spend.Project,
		spend.Platform,
		spend.Campaign,
		spend.Date,
		spend.AmountCents,
		spend.LeadCount,
		spend.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ad spend: %w", err)
	}

	return nil
}

// Delete removes a spend row by ID.
func (r *adSpendRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM ad_spend WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ad spend: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListByProject returns spend rows for a project within the date range,
// oldest first.
func (r *adSpendRepository) ListByProject(ctx context.Context, project string, from, to time.Time) ([]*models.AdSpend, error) {
	query := `
		SELECT id, project, platform, campaign, date, amount_cents, lead_count, created_at
		FROM ad_spend
		WHERE project = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC, platform ASC`

	rows, err := r.db.Query(ctx, query, project, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list ad spend: %w", err)
	}
	defer rows.Close()

	var entries []*models.AdSpend
	for rows.Next() {
		var spend models.AdSpend
		err := rows.Scan(
			&spend.ID,
			&spend.Project,
			&spend.Platform,
			&spend.Campaign,
			&spend.Date,
			&spend.AmountCents,
			&spend.LeadCount,
			&spend.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad spend: %w", err)
		}
		entries = append(entries, &spend)
	}

	return entries, rows.Err()
}
