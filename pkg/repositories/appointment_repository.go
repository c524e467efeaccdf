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

// AppointmentRepository defines the interface for appointment data access,
// including the pipeline views.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	Update(ctx context.Context, appointment *models.Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, project, search string, limit, offset int) ([]*models.Appointment, error)

	SubjectStore
	ParseQueueStore
	ListByProject(ctx context.Context, project string) ([]*models.SubjectRecord, error)
	Backfill(ctx context.Context, id uuid.UUID, fields BackfillFields) error
}

// appointmentRepository implements AppointmentRepository using PostgreSQL.
type appointmentRepository struct {
	db *database.DB
}

// NewAppointmentRepository creates a new appointment repository.
func NewAppointmentRepository(db *database.DB) AppointmentRepository {
	return &appointmentRepository{db: db}
}

var _ SubjectStore = (*appointmentRepository)(nil)
var _ ParseQueueStore = (*appointmentRepository)(nil)
var _ DedupStore = (*appointmentRepository)(nil)

const appointmentColumns = `id, external_id, phone, email, name, project, scheduled_at, status, notes,
	insurance, contact, demographics, pathology, parsed_at, created_at, updated_at`

// Create inserts a new appointment.
func (r *appointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.Kind = models.SubjectKindAppointment

	now := time.Now()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	appointment.UpdatedAt = now
	if appointment.Status == "" {
		appointment.Status = models.AppointmentStatusScheduled
	}

	query := `
		INSERT INTO appointments (id, external_id, phone, email, name, project, scheduled_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		appointment.ID,
		appointment.ExternalID,
		appointment.Phone,
		appointment.Email,
		appointment.Name,
		appointment.Project,
		appointment.ScheduledAt,
		appointment.Status,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

// Get retrieves an appointment by ID.
func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appointment, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return appointment, nil
}

// Update rewrites an appointment's editable fields, clearing the parse
// completion timestamp when the notes change.
func (r *appointmentRepository) Update(ctx context.Context, appointment *models.Appointment) error {
	appointment.UpdatedAt = time.Now()

	query := `
		UPDATE appointments
		SET external_id = $2, phone = $3, email = $4, name = $5, scheduled_at = $6, status = $7,
		    parsed_at = CASE WHEN notes IS DISTINCT FROM $8 THEN NULL ELSE parsed_at END,
		    notes = $8, updated_at = $9
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		appointment.ID,
		appointment.ExternalID,
		appointment.Phone,
		appointment.Email,
		appointment.Name,
		appointment.ScheduledAt,
		appointment.Status,
		appointment.Notes,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes an appointment by ID.
func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// List returns appointments for a project, newest first, optionally filtered
// by a pre-screened search term.
func (r *appointmentRepository) List(ctx context.Context, project, search string, limit, offset int) ([]*models.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project = $1
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%' OR phone LIKE '%' || $2 || '%')
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.db.Query(ctx, query, project, search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, appointment)
	}

	return appointments, rows.Err()
}

// FindByExternalID returns the newest appointment in the project carrying
// the given booking-system id.
func (r *appointmentRepository) FindByExternalID(ctx context.Context, project, externalID string) (*models.SubjectRecord, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project = $1 AND external_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, externalID)
}

// FindByPhone returns the newest appointment in the project whose phone
// matches the normalized input on the last ten digits.
func (r *appointmentRepository) FindByPhone(ctx context.Context, project, phone string) (*models.SubjectRecord, error) {
	normalized := models.NormalizePhone(phone)
	if normalized == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project = $1
		  AND phone IS NOT NULL
		  AND right(regexp_replace(phone, '[^0-9]', '', 'g'), 10) = right($2, 10)
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, normalized)
}

// FindByEmail returns the newest appointment in the project with the given
// email, compared case-insensitively.
func (r *appointmentRepository) FindByEmail(ctx context.Context, project, email string) (*models.SubjectRecord, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project = $1 AND lower(email) = lower($2)
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, email)
}

// FindByName returns the newest appointment in the project whose display
// name matches after normalization.
func (r *appointmentRepository) FindByName(ctx context.Context, project, name string) (*models.SubjectRecord, error) {
	normalized := models.NormalizeName(name)
	if normalized == "" {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project = $1
		  AND lower(regexp_replace(btrim(name), '\s+', ' ', 'g')) = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.findSubject(ctx, query, project, normalized)
}

// ListPendingParse returns up to limit appointments awaiting enrichment,
// oldest first. The btrim character set mirrors Go's strings.TrimSpace so
// selection and the extractor's blank check agree.
func (r *appointmentRepository) ListPendingParse(ctx context.Context, limit int) ([]*models.SubjectRecord, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE parsed_at IS NULL AND notes IS NOT NULL AND btrim(notes, E' \t\r\n\v\f') <> ''
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending appointments: %w", err)
	}
	defer rows.Close()

	return collectSubjects(rows, scanAppointment)
}

// SaveExtraction writes all four extraction groups and the completion
// timestamp in one statement.
func (r *appointmentRepository) SaveExtraction(ctx context.Context, id uuid.UUID, extraction models.Extraction, parsedAt time.Time) error {
	insurance, contact, demographics, pathology, err := marshalExtraction(extraction)
	if err != nil {
		return err
	}

	query := `
		UPDATE appointments
		SET insurance = $2, contact = $3, demographics = $4, pathology = $5,
		    parsed_at = $6, updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, insurance, contact, demographics, pathology, parsedAt)
	if err != nil {
		return fmt.Errorf("failed to save appointment extraction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListByProject returns every appointment in the project, oldest first.
func (r *appointmentRepository) ListByProject(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE project = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments for project: %w", err)
	}
	defer rows.Close()

	return collectSubjects(rows, scanAppointment)
}

// Backfill writes the given identifier fields onto a surviving appointment.
// Nil fields are left untouched; non-nil fields replace whatever the survivor
// holds, since the caller already picked the latest observed value.
func (r *appointmentRepository) Backfill(ctx context.Context, id uuid.UUID, fields BackfillFields) error {
	if fields.IsEmpty() {
		return nil
	}

	query := `
		UPDATE appointments
		SET external_id = COALESCE($2, external_id),
		    phone = COALESCE($3, phone),
		    email = COALESCE($4, email),
		    notes = COALESCE($5, notes),
		    updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, fields.ExternalID, fields.Phone, fields.Email, fields.Notes, time.Now())
	if err != nil {
		return fmt.Errorf("failed to backfill appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *appointmentRepository) findSubject(ctx context.Context, query string, args ...any) (*models.SubjectRecord, error) {
	appointment, err := scanAppointment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}

	return &appointment.SubjectRecord, nil
}

// scanAppointment reads one appointment row in appointmentColumns order.
func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var appointment models.Appointment
	var insurance, contact, demographics, pathology []byte

	err := row.Scan(
		&appointment.ID,
		&appointment.ExternalID,
		&appointment.Phone,
		&appointment.Email,
		&appointment.Name,
		&appointment.Project,
		&appointment.ScheduledAt,
		&appointment.Status,
		&appointment.Notes,
		&insurance,
		&contact,
		&demographics,
		&pathology,
		&appointment.ParsedAt,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	appointment.Kind = models.SubjectKindAppointment
	appointment.Extraction, err = unmarshalExtraction(insurance, contact, demographics, pathology)
	if err != nil {
		return nil, err
	}

	return &appointment, nil
}
