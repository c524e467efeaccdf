package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
)

// mockSubjectStore is a function-field mock of repositories.SubjectStore.
type mockSubjectStore struct {
	FindByExternalIDFunc func(ctx context.Context, project, externalID string) (*models.SubjectRecord, error)
	FindByPhoneFunc      func(ctx context.Context, project, phone string) (*models.SubjectRecord, error)
	FindByEmailFunc      func(ctx context.Context, project, email string) (*models.SubjectRecord, error)
	FindByNameFunc       func(ctx context.Context, project, name string) (*models.SubjectRecord, error)
}

func (m *mockSubjectStore) FindByExternalID(ctx context.Context, project, externalID string) (*models.SubjectRecord, error) {
	if m.FindByExternalIDFunc != nil {
		return m.FindByExternalIDFunc(ctx, project, externalID)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSubjectStore) FindByPhone(ctx context.Context, project, phone string) (*models.SubjectRecord, error) {
	if m.FindByPhoneFunc != nil {
		return m.FindByPhoneFunc(ctx, project, phone)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSubjectStore) FindByEmail(ctx context.Context, project, email string) (*models.SubjectRecord, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, project, email)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSubjectStore) FindByName(ctx context.Context, project, name string) (*models.SubjectRecord, error) {
	if m.FindByNameFunc != nil {
		return m.FindByNameFunc(ctx, project, name)
	}
	return nil, apperrors.ErrNotFound
}

// mockParseQueueStore is a function-field mock of repositories.ParseQueueStore.
type mockParseQueueStore struct {
	ListPendingParseFunc func(ctx context.Context, limit int) ([]*models.SubjectRecord, error)
	SaveExtractionFunc   func(ctx context.Context, id uuid.UUID, extraction models.Extraction, parsedAt time.Time) error
}

func (m *mockParseQueueStore) ListPendingParse(ctx context.Context, limit int) ([]*models.SubjectRecord, error) {
	if m.ListPendingParseFunc != nil {
		return m.ListPendingParseFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockParseQueueStore) SaveExtraction(ctx context.Context, id uuid.UUID, extraction models.Extraction, parsedAt time.Time) error {
	if m.SaveExtractionFunc != nil {
		return m.SaveExtractionFunc(ctx, id, extraction, parsedAt)
	}
	return nil
}

// mockDedupStore is a function-field mock of repositories.DedupStore.
type mockDedupStore struct {
	ListByProjectFunc func(ctx context.Context, project string) ([]*models.SubjectRecord, error)
	DeleteFunc        func(ctx context.Context, id uuid.UUID) error
	BackfillFunc      func(ctx context.Context, id uuid.UUID, fields repositories.BackfillFields) error
}

func (m *mockDedupStore) ListByProject(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
	if m.ListByProjectFunc != nil {
		return m.ListByProjectFunc(ctx, project)
	}
	return nil, nil
}

func (m *mockDedupStore) Delete(ctx context.Context, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *mockDedupStore) Backfill(ctx context.Context, id uuid.UUID, fields repositories.BackfillFields) error {
	if m.BackfillFunc != nil {
		return m.BackfillFunc(ctx, id, fields)
	}
	return nil
}

// mockExtractor is a function-field mock of EnrichmentExtractor.
type mockExtractor struct {
	ExtractFunc func(ctx context.Context, notes string) (*models.Extraction, error)
	Calls       int
}

func (m *mockExtractor) Extract(ctx context.Context, notes string) (*models.Extraction, error) {
	m.Calls++
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, notes)
	}
	return &models.Extraction{}, nil
}

func strPtr(s string) *string { return &s }

func subjectAt(name, project string, createdAt time.Time) *models.SubjectRecord {
	return &models.SubjectRecord{
		ID:        uuid.New(),
		Kind:      models.SubjectKindLead,
		Name:      name,
		Project:   project,
		CreatedAt: createdAt,
	}
}
