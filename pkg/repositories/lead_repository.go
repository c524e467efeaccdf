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

// LeadRepository defines the interface for lead data access. It also carries
// the narrower pipeline views (SubjectStore, ParseQueueStore, DedupStore) so
// services depend only on the slice they use.
type LeadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	Get(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, project, search string, limit, offset int) ([]*models.Lead, error)

	SubjectStore
	ParseQueueStore
	ListByProject(ctx context.Context, project string) ([]*models.SubjectRecord, error)
	Backfill(ctx context.Context, id uuid.UUID, fields BackfillFields) error
}

// leadRepository implements LeadRepository using PostgreSQL.
type leadRepository struct {
	db *database.DB
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(db *database.DB) LeadRepository {
	return &leadRepository{db: db}
}

var _ SubjectStore = (*leadRepository)(nil)
var _ ParseQueueStore = (*leadRepository)(nil)
var _ DedupStore = (*leadRepository)(nil)

const leadColumns = `id, external_id, phone, email, name, project, source, campaign, status, notes,
	insurance, contact, demographics, pathology, parsed_at, created_at, updated_at`

// Create inserts a new lead.
func (r *leadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	lead.Kind = models.SubjectKindLead

	now := time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}

	query := `
		INSERT INTO leads (id, external_id, phone, email, name, project, source, campaign, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		lead.ID,
		lead.ExternalID,
		lead.Phone,
		lead.Email,
		lead.Name,
		lead.Project,
		lead.Source,
		lead.Campaign,
		lead.Status,
		lead.Notes,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}

	return nil
}

// Get retrieves a lead by ID.
func (r *leadRepository) Get(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead, err := scanLead(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return lead, nil
}

// Update rewrites a lead's editable fields. When the notes change, the parse
// completion timestamp is cleared so the record is picked up again by the
// parsing queue.
func (r *leadRepository) Update(ctx context.Context, lead *models.Lead) error {
	lead.UpdatedAt = time.Now()

	query := `
		UPDATE leads
		SET external_id = $2, phone = $3, email = $4, name = $5, source = $6,
		    campaign = $7, status = $8,
		    parsed_at = CASE WHEN notes IS DISTINCT FROM $9 THEN NULL ELSE parsed_at END,
		    notes = $9, updated_at = $10
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		lead.ID,
		lead.ExternalID,
		lead.Phone,
		lead.Email,
		lead.Name,
		lead.Source,
		lead.Campaign,
		lead.Status,
		lead.Notes,
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a lead by ID.
func (r *leadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// List returns leads for a project, newest first, optionally filtered by a
// search term against name, email, and phone. The search value must already
// have passed injection screening at the handler.
func (r *leadRepository) List(ctx context.Context, project, search string, limit, offset int) ([]*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE project = $1
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%' OR phone LIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query, project, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}

// FindByExternalID returns the newest lead in the project carrying the given
// external system id.
func (r *leadRepository) FindByExternalID(ctx context.Context, project, externalID string) (*models.SubjectRecord, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE project = $1 AND external_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, externalID)
}

// FindByPhone returns the newest lead in the project whose phone matches the
// normalized input. US numbers compare on the last ten digits so country-code
// prefixes do not break matching.
func (r *leadRepository) FindByPhone(ctx context.Context, project, phone string) (*models.SubjectRecord, error) {
	normalized := models.NormalizePhone(phone)
	if normalized == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE project = $1
		  AND phone IS NOT NULL
		  AND right(regexp_replace(phone, '[^0-9]', '', 'g'), 10) = right($2, 10)
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, normalized)
}

// FindByEmail returns the newest lead in the project with the given email,
// compared case-insensitively.
func (r *leadRepository) FindByEmail(ctx context.Context, project, email string) (*models.SubjectRecord, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE project = $1 AND lower(email) = lower($2)
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, email)
}

// FindByName returns the newest lead in the project whose display name
// matches after trimming, lowercasing, and whitespace collapsing.
func (r *leadRepository) FindByName(ctx context.Context, project, name string) (*models.SubjectRecord, error) {
	normalized := models.NormalizeName(name)
	if normalized == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE project = $1
		  AND lower(regexp_replace(btrim(name), '\s+', ' ', 'g')) = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, normalized)
}

// ListPendingParse returns up to limit leads awaiting enrichment, oldest
// first. Records with blank or whitespace-only notes are never selected;
// the btrim character set mirrors Go's strings.TrimSpace so selection and
// the extractor's blank check agree.
func (r *leadRepository) ListPendingParse(ctx context.Context, limit int) ([]*models.SubjectRecord, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE parsed_at IS NULL AND notes IS NOT NULL AND btrim(notes, E' \t\r\n\v\f') <> ''
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending leads: %w", err)
	}
	defer rows.Close()

	return collectSubjects(rows, scanLead)
}

// SaveExtraction writes all four extraction groups and the completion
// timestamp in one statement. Either the whole enrichment lands or none of
// it does.
func (r *leadRepository) SaveExtraction(ctx context.Context, id uuid.UUID, extraction models.Extraction, parsedAt time.Time) error {
	insurance, contact, demographics, pathology, err := marshalExtraction(extraction)
	if err != nil {
		return err
	}

	query := `
		UPDATE leads
		SET insurance = $2, contact = $3, demographics = $4, pathology = $5,
		    parsed_at = $6, updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, insurance, contact, demographics, pathology, parsedAt)
	if err != nil {
		return fmt.Errorf("failed to save lead extraction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListByProject returns every lead in the project, oldest first, for the
// deduplication pass.
func (r *leadRepository) ListByProject(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE project = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads for project: %w", err)
	}
	defer rows.Close()

	return collectSubjects(rows, scanLead)
}

// Backfill writes the given identifier fields onto a surviving lead. Nil
// fields are left untouched; non-nil fields replace whatever the survivor
// holds, since the caller already picked the latest observed value.
func (r *leadRepository) Backfill(ctx context.Context, id uuid.UUID, fields BackfillFields) error {
	if fields.IsEmpty() {
		return nil
	}

	query := `
		UPDATE leads
		SET external_id = COALESCE($2, external_id),
		    phone = COALESCE($3, phone),
		    email = COALESCE($4, email),
		    notes = COALESCE($5, notes),
		    updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, fields.ExternalID, fields.Phone, fields.Email, fields.Notes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to backfill lead: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *leadRepository) findSubject(ctx context.Context, query string, args ...any) (*models.SubjectRecord, error) {
	lead, err := scanLead(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find lead: %w", err)
	}

	return &lead.SubjectRecord, nil
}

// scanLead reads one lead row in leadColumns order.
func scanLead(row pgx.Row) (*models.Lead, error) {
	var lead models.Lead
	var insurance, contact, demographics, pathology []byte

	err := row.Scan(
		&lead.ID,
		&lead.ExternalID,
		&lead.Phone,
		&lead.Email,
		&lead.Name,
		&lead.Project,
		&lead.Source,
		&lead.Campaign,
		&lead.Status,
		&lead.Notes,
		&insurance,
		&contact,
		&demographics,
		&pathology,
		&lead.ParsedAt,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Kind = models.SubjectKindLead
	lead.Extraction, err = unmarshalExtraction(insurance, contact, demographics, pathology)
	if err != nil {
		return nil, err
	}

	return &lead, nil
}
