package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
)

// IdentityMatcher resolves a partial identity to an existing record in a
// counterpart store. Matching is read-only: it never creates or mutates
// records.
type IdentityMatcher interface {
	// Match walks the strategy chain in priority order and returns the first
	// hit. Returns apperrors.ErrNotFound when no strategy matches.
	Match(ctx context.Context, identity *models.PartialIdentity) (*models.MatchResult, error)
}

// identityMatcher implements IdentityMatcher over a SubjectStore.
type identityMatcher struct {
	store  repositories.SubjectStore
	logger *zap.Logger
}

// NewIdentityMatcher creates a new identity matcher.
func NewIdentityMatcher(store repositories.SubjectStore, logger *zap.Logger) IdentityMatcher {
	return &identityMatcher{
		store:  store,
		logger: logger.Named("identity-matcher"),
	}
}

var _ IdentityMatcher = (*identityMatcher)(nil)

// matchStrategy is one rung of the priority chain: the identifier value it
// keys on (empty means skip) and the lookup it performs.
type matchStrategy struct {
	name  models.MatchStrategy
	value string
	find  func(ctx context.Context, project, value string) (*models.SubjectRecord, error)
}

// Match tries external id, then phone, then email, then name. A strategy is
// skipped when the identity does not carry its identifier; a miss falls
// through to the next strategy; any other store error aborts the chain.
func (m *identityMatcher) Match(ctx context.Context, identity *models.PartialIdentity) (*models.MatchResult, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	strategies := []matchStrategy{
		{models.MatchByExternalID, deref(identity.ExternalID), m.store.FindByExternalID},
		{models.MatchByPhone, deref(identity.Phone), m.store.FindByPhone},
		{models.MatchByEmail, deref(identity.Email), m.store.FindByEmail},
		{models.MatchByName, identity.Name, m.store.FindByName},
	}

	for _, s := range strategies {
		if strings.TrimSpace(s.value) == "" {
			continue
		}

		record, err := s.find(ctx, identity.Project, s.value)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("match by %s: %w", s.name, err)
		}

		m.logger.Debug("Identity matched",
			zap.String("strategy", string(s.name)),
			zap.String("project", identity.Project),
			zap.String("record_id", record.ID.String()))

		return &models.MatchResult{Record: record, Strategy: s.name}, nil
	}

	return nil, apperrors.ErrNotFound
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
