package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clearpath-health/intake-engine/pkg/models"
)

// SubjectStore is the read-only view the identity matcher resolves against.
// Both lead and appointment repositories satisfy it, so either table can be
// the counterpart side of a match.
type SubjectStore interface {
	// FindByExternalID returns the newest record with the given external
	// system id within the project.
	FindByExternalID(ctx context.Context, project, externalID string) (*models.SubjectRecord, error)

	// FindByPhone returns the newest record whose phone number matches after
	// normalization within the project.
	FindByPhone(ctx context.Context, project, phone string) (*models.SubjectRecord, error)

	// FindByEmail returns the newest record with the given email
	// (case-insensitive) within the project.
	FindByEmail(ctx context.Context, project, email string) (*models.SubjectRecord, error)

	// FindByName returns the newest record whose display name matches
	// case-insensitively (trimmed, whitespace-collapsed) within the project.
	FindByName(ctx context.Context, project, name string) (*models.SubjectRecord, error)
}

// ParseQueueStore is the view the parsing queue drains.
type ParseQueueStore interface {
	// ListPendingParse returns up to limit records with non-blank notes and
	// no completed parse, oldest first.
	ListPendingParse(ctx context.Context, limit int) ([]*models.SubjectRecord, error)

	// SaveExtraction persists all extraction sub-records and the completion
	// timestamp in a single statement, so a record can never be observed
	// with a partial enrichment.
	SaveExtraction(ctx context.Context, id uuid.UUID, extraction models.Extraction, parsedAt time.Time) error
}

// BackfillFields are the identifier fields dedup copies from discarded
// duplicates onto the surviving record: per field the latest non-null value
// seen in the group. Nil fields are left untouched.
type BackfillFields struct {
	ExternalID *string
	Phone      *string
	Email      *string
	Notes      *string
}

// IsEmpty reports whether there is nothing to backfill.
func (f *BackfillFields) IsEmpty() bool {
	return f.ExternalID == nil && f.Phone == nil && f.Email == nil && f.Notes == nil
}

// DedupStore is the view the deduplication resolver reads and repairs.
type DedupStore interface {
	// ListByProject returns every record in the project, oldest first.
	ListByProject(ctx context.Context, project string) ([]*models.SubjectRecord, error)

	// Delete removes a record by id.
	Delete(ctx context.Context, id uuid.UUID) error

	// Backfill writes the given identifier fields onto the record. Non-nil
	// fields replace existing values; nil fields are left untouched.
	Backfill(ctx context.Context, id uuid.UUID, fields BackfillFields) error
}

// marshalExtraction converts the four extraction groups to JSONB bytes.
// Nil groups map to SQL NULL, except when every group is nil: a parse that
// found nothing still marks completion, so all four columns get empty
// objects rather than NULL alongside a set parsed_at.
func marshalExtraction(ext models.Extraction) (insurance, contact, demographics, pathology []byte, err error) {
	if ext.IsEmpty() {
		empty := []byte("{}")
		return empty, empty, empty, empty, nil
	}

	marshal := func(v any, present bool) []byte {
		if err != nil || !present {
			return nil
		}
		var data []byte
		data, err = json.Marshal(v)
		return data
	}

	insurance = marshal(ext.Insurance, ext.Insurance != nil)
	contact = marshal(ext.Contact, ext.Contact != nil)
	demographics = marshal(ext.Demographics, ext.Demographics != nil)
	pathology = marshal(ext.Pathology, ext.Pathology != nil)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal extraction: %w", err)
	}
	return insurance, contact, demographics, pathology, nil
}

// collectSubjects drains rows into the common subject view shared by leads
// and appointments.
func collectSubjects[T interface{ Subject() *models.SubjectRecord }](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]*models.SubjectRecord, error) {
	var subjects []*models.SubjectRecord
	for rows.Next() {
		record, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		subjects = append(subjects, record.Subject())
	}
	return subjects, rows.Err()
}

// unmarshalExtraction rebuilds an Extraction from the four JSONB columns.
func unmarshalExtraction(insurance, contact, demographics, pathology []byte) (models.Extraction, error) {
	var ext models.Extraction
	if len(insurance) > 0 {
		ext.Insurance = &models.Insurance{}
		if err := json.Unmarshal(insurance, ext.Insurance); err != nil {
			return ext, fmt.Errorf("unmarshal insurance: %w", err)
		}
	}
	if len(contact) > 0 {
		ext.Contact = &models.Contact{}
		if err := json.Unmarshal(contact, ext.Contact); err != nil {
			return ext, fmt.Errorf("unmarshal contact: %w", err)
		}
	}
	if len(demographics) > 0 {
		ext.Demographics = &models.Demographics{}
		if err := json.Unmarshal(demographics, ext.Demographics); err != nil {
			return ext, fmt.Errorf("unmarshal demographics: %w", err)
		}
	}
	if len(pathology) > 0 {
		ext.Pathology = &models.Pathology{}
		if err := json.Unmarshal(pathology, ext.Pathology); err != nil {
			return ext, fmt.Errorf("unmarshal pathology: %w", err)
		}
	}
	return ext, nil
}
