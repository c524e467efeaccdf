package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/models"
)

func TestIdentityMatcher_PriorityOrder(t *testing.T) {
	byExternalID := subjectAt("By External", "ortho-west", time.Now())
	byPhone := subjectAt("By Phone", "ortho-west", time.Now())

	store := &mockSubjectStore{
		FindByExternalIDFunc: func(ctx context.Context, project, externalID string) (*models.SubjectRecord, error) {
			return byExternalID, nil
		},
		FindByPhoneFunc: func(ctx context.Context, project, phone string) (*models.SubjectRecord, error) {
			return byPhone, nil
		},
	}
	matcher := NewIdentityMatcher(store, zap.NewNop())

	// Both external id and phone would hit; external id must win.
	result, err := matcher.Match(context.Background(), &models.PartialIdentity{
		ExternalID: strPtr("crm-123"),
		Phone:      strPtr("5558675309"),
		Project:    "ortho-west",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchByExternalID, result.Strategy)
	assert.Equal(t, byExternalID.ID, result.Record.ID)
}

func TestIdentityMatcher_FallsThroughOnMiss(t *testing.T) {
	byName := subjectAt("Jane Smith", "ortho-west", time.Now())

	var tried []string
	store := &mockSubjectStore{
		FindByExternalIDFunc: func(ctx context.Context, project, externalID string) (*models.SubjectRecord, error) {
			tried = append(tried, "external_id")
			return nil, apperrors.ErrNotFound
		},
		FindByPhoneFunc: func(ctx context.Context, project, phone string) (*models.SubjectRecord, error) {
			tried = append(tried, "phone")
			return nil, apperrors.ErrNotFound
		},
		FindByNameFunc: func(ctx context.Context, project, name string) (*models.SubjectRecord, error) {
			tried = append(tried, "name")
			return byName, nil
		},
	}
	matcher := NewIdentityMatcher(store, zap.NewNop())

	result, err := matcher.Match(context.Background(), &models.PartialIdentity{
		ExternalID: strPtr("crm-123"),
		Phone:      strPtr("5558675309"),
		Name:       "Jane Smith",
		Project:    "ortho-west",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchByName, result.Strategy)
	assert.Equal(t, []string{"external_id", "phone", "name"}, tried)
}

func TestIdentityMatcher_SkipsAbsentIdentifiers(t *testing.T) {
	store := &mockSubjectStore{
		FindByExternalIDFunc: func(ctx context.Context, project, externalID string) (*models.SubjectRecord, error) {
			t.Fatal("external id lookup must not run without an external id")
			return nil, nil
		},
		FindByEmailFunc: func(ctx context.Context, project, email string) (*models.SubjectRecord, error) {
			return subjectAt("Jane Smith", project, time.Now()), nil
		},
	}
	matcher := NewIdentityMatcher(store, zap.NewNop())

	result, err := matcher.Match(context.Background(), &models.PartialIdentity{
		Email:   strPtr("jane@example.com"),
		Project: "ortho-west",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MatchByEmail, result.Strategy)
}

func TestIdentityMatcher_NoMatch(t *testing.T) {
	matcher := NewIdentityMatcher(&mockSubjectStore{}, zap.NewNop())

	_, err := matcher.Match(context.Background(), &models.PartialIdentity{
		Name:    "Jane Smith",
		Project: "ortho-west",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIdentityMatcher_StoreErrorAborts(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &mockSubjectStore{
		FindByPhoneFunc: func(ctx context.Context, project, phone string) (*models.SubjectRecord, error) {
			return nil, storeErr
		},
		FindByNameFunc: func(ctx context.Context, project, name string) (*models.SubjectRecord, error) {
			t.Fatal("chain must abort on a real store error")
			return nil, nil
		},
	}
	matcher := NewIdentityMatcher(store, zap.NewNop())

	_, err := matcher.Match(context.Background(), &models.PartialIdentity{
		Phone:   strPtr("5558675309"),
		Name:    "Jane Smith",
		Project: "ortho-west",
	})
	assert.ErrorIs(t, err, storeErr)
}

func TestIdentityMatcher_InvalidIdentity(t *testing.T) {
	matcher := NewIdentityMatcher(&mockSubjectStore{}, zap.NewNop())

	tests := []struct {
		name     string
		identity models.PartialIdentity
	}{
		{"missing project", models.PartialIdentity{Name: "Jane Smith"}},
		{"no identifiers", models.PartialIdentity{Project: "ortho-west"}},
		{"blank identifiers", models.PartialIdentity{Project: "ortho-west", Phone: strPtr("  "), Name: " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := matcher.Match(context.Background(), &tt.identity)
			assert.Error(t, err)
		})
	}
}
