package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
)

func dedupRecord(name string, createdAt time.Time, mutate func(*models.SubjectRecord)) *models.SubjectRecord {
	record := subjectAt(name, "ortho-west", createdAt)
	if mutate != nil {
		mutate(record)
	}
	return record
}

func TestDeduplicationResolver_Resolve_ByExternalID(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, func(r *models.SubjectRecord) { r.ExternalID = strPtr("crm-1") })
	b := dedupRecord("J. Smith", base.Add(time.Minute), func(r *models.SubjectRecord) { r.ExternalID = strPtr("crm-1") })
	c := dedupRecord("Someone Else", base.Add(2*time.Minute), func(r *models.SubjectRecord) { r.ExternalID = strPtr("crm-2") })

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b, c})

	require.Len(t, groups, 1)
	assert.Equal(t, a.ID, groups[0].Survivor.ID, "earliest record survives")
	require.Len(t, groups[0].Duplicates, 1)
	assert.Equal(t, b.ID, groups[0].Duplicates[0].ID)
}

func TestDeduplicationResolver_Resolve_PhoneVariants(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, func(r *models.SubjectRecord) { r.Phone = strPtr("(555) 867-5309") })
	b := dedupRecord("Jane S", base.Add(time.Minute), func(r *models.SubjectRecord) { r.Phone = strPtr("+1 555 867 5309") })

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b})

	require.Len(t, groups, 1)
	assert.Equal(t, a.ID, groups[0].Survivor.ID)
}

func TestDeduplicationResolver_Resolve_NameNormalization(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, nil)
	b := dedupRecord("  JANE   smith ", base.Add(time.Minute), nil)
	c := dedupRecord("Jane Smithson", base.Add(2*time.Minute), nil)

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b, c})

	require.Len(t, groups, 1)
	assert.Equal(t, a.ID, groups[0].Survivor.ID)
	require.Len(t, groups[0].Duplicates, 1)
	assert.Equal(t, b.ID, groups[0].Duplicates[0].ID)
}

func TestDeduplicationResolver_Resolve_KeyPriority(t *testing.T) {
	// Same name but distinct external ids: external id is checked first and
	// keeps them apart only if it maps to different groups. The name map
	// still links the second record to the first group, because external id
	// misses before name is consulted.
	base := time.Now()
	a := dedupRecord("Jane Smith", base, func(r *models.SubjectRecord) { r.ExternalID = strPtr("crm-1") })
	b := dedupRecord("Jane Smith", base.Add(time.Minute), func(r *models.SubjectRecord) { r.ExternalID = strPtr("crm-9") })

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b})

	require.Len(t, groups, 1)
	assert.Equal(t, a.ID, groups[0].Survivor.ID)
}

func TestDeduplicationResolver_Resolve_DuplicateKeysDoNotBridge(t *testing.T) {
	// b joins a's group through the shared phone. b also carries a name, but
	// identifiers held only by a discarded duplicate must not register, so c
	// (matching b's name alone) stays its own survivor.
	base := time.Now()
	a := dedupRecord("Alice Adams", base, func(r *models.SubjectRecord) { r.Phone = strPtr("5558675309") })
	b := dedupRecord("Bobbie Banks", base.Add(time.Minute), func(r *models.SubjectRecord) { r.Phone = strPtr("5558675309") })
	c := dedupRecord("Bobbie Banks", base.Add(2*time.Minute), nil)

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b, c})

	require.Len(t, groups, 1)
	assert.Equal(t, a.ID, groups[0].Survivor.ID)
	require.Len(t, groups[0].Duplicates, 1)
	assert.Equal(t, b.ID, groups[0].Duplicates[0].ID, "c must not be pulled in via b's name")
}

func TestDeduplicationResolver_Resolve_Deterministic(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, func(r *models.SubjectRecord) { r.Phone = strPtr("5558675309") })
	b := dedupRecord("Jane Smith", base.Add(time.Minute), nil)
	c := dedupRecord("Bob Jones", base.Add(2*time.Minute), func(r *models.SubjectRecord) { r.Phone = strPtr("5550000000") })

	resolver := NewDeduplicationResolver(nil, zap.NewNop())

	// Input order must not affect the outcome: grouping is creation-ordered.
	forward := resolver.Resolve([]*models.SubjectRecord{a, b, c})
	reversed := resolver.Resolve([]*models.SubjectRecord{c, b, a})

	require.Len(t, forward, 1)
	require.Len(t, reversed, 1)
	assert.Equal(t, forward[0].Survivor.ID, reversed[0].Survivor.ID)
	assert.Len(t, reversed[0].Duplicates, 1)
}

func TestDeduplicationResolver_Backfill_LatestNonNullWins(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, nil)
	b := dedupRecord("Jane Smith", base.Add(time.Minute), func(r *models.SubjectRecord) {
		r.Email = strPtr("old@example.com")
		r.Phone = strPtr("5551111111")
	})
	c := dedupRecord("Jane Smith", base.Add(2*time.Minute), func(r *models.SubjectRecord) {
		r.Email = strPtr("new@example.com")
	})

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b, c})

	require.Len(t, groups, 1)
	fields := groups[0].Backfill
	require.NotNil(t, fields.Email)
	assert.Equal(t, "new@example.com", *fields.Email, "latest non-null value wins")
	require.NotNil(t, fields.Phone)
	assert.Equal(t, "5551111111", *fields.Phone)
	assert.Nil(t, fields.ExternalID)

	// Each backfilled field records the discarded record it came from.
	sources := groups[0].BackfillSources
	assert.Equal(t, c.ID, sources["email"])
	assert.Equal(t, b.ID, sources["phone"])
}

func TestDeduplicationResolver_Backfill_OverridesSurvivorValue(t *testing.T) {
	// The survivor's own older email must lose to the later duplicate's.
	base := time.Now()
	a := dedupRecord("Jane Smith", base, func(r *models.SubjectRecord) {
		r.Email = strPtr("old@example.com")
	})
	b := dedupRecord("Jane Smith", base.Add(time.Minute), func(r *models.SubjectRecord) {
		r.Email = strPtr("new@example.com")
	})

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b})

	require.Len(t, groups, 1)
	fields := groups[0].Backfill
	require.NotNil(t, fields.Email)
	assert.Equal(t, "new@example.com", *fields.Email)
	assert.Equal(t, b.ID, groups[0].BackfillSources["email"])
}

func TestDeduplicationResolver_Backfill_SurvivorValueNeedsNoCopy(t *testing.T) {
	// Only the survivor carries an email: nothing to backfill for it.
	base := time.Now()
	a := dedupRecord("Jane Smith", base, func(r *models.SubjectRecord) {
		r.Email = strPtr("jane@example.com")
	})
	b := dedupRecord("Jane Smith", base.Add(time.Minute), func(r *models.SubjectRecord) {
		r.Phone = strPtr("5558675309")
	})

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	groups := resolver.Resolve([]*models.SubjectRecord{a, b})

	require.Len(t, groups, 1)
	fields := groups[0].Backfill
	assert.Nil(t, fields.Email, "survivor-held values are not backfill")
	require.NotNil(t, fields.Phone)
	_, hasEmailSource := groups[0].BackfillSources["email"]
	assert.False(t, hasEmailSource)
}

func TestDeduplicationResolver_Run(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, nil)
	b := dedupRecord("Jane Smith", base.Add(time.Minute), func(r *models.SubjectRecord) {
		r.Email = strPtr("jane@example.com")
	})

	var deleted []uuid.UUID
	var backfilled []uuid.UUID
	store := &mockDedupStore{
		ListByProjectFunc: func(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
			assert.Equal(t, "ortho-west", project)
			return []*models.SubjectRecord{a, b}, nil
		},
		DeleteFunc: func(ctx context.Context, id uuid.UUID) error {
			deleted = append(deleted, id)
			return nil
		},
		BackfillFunc: func(ctx context.Context, id uuid.UUID, fields repositories.BackfillFields) error {
			backfilled = append(backfilled, id)
			require.NotNil(t, fields.Email)
			assert.Equal(t, "jane@example.com", *fields.Email)
			return nil
		},
	}

	resolver := NewDeduplicationResolver([]DedupSource{{Name: "leads", Store: store}}, zap.NewNop())
	reports, err := resolver.Run(context.Background(), DedupOptions{Project: "ortho-west", Backfill: true})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 1, reports[0].Groups)
	assert.Equal(t, 1, reports[0].Deleted)
	assert.Equal(t, 1, reports[0].Backfilled)
	assert.Equal(t, []uuid.UUID{b.ID}, deleted)
	assert.Equal(t, []uuid.UUID{a.ID}, backfilled, "backfill targets the survivor")
}

func TestDeduplicationResolver_Run_NoBackfillByDefault(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, nil)
	b := dedupRecord("Jane Smith", base.Add(time.Minute), func(r *models.SubjectRecord) {
		r.Email = strPtr("jane@example.com")
	})

	store := &mockDedupStore{
		ListByProjectFunc: func(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
			return []*models.SubjectRecord{a, b}, nil
		},
		BackfillFunc: func(ctx context.Context, id uuid.UUID, fields repositories.BackfillFields) error {
			t.Fatal("backfill must be opt-in")
			return nil
		},
	}

	resolver := NewDeduplicationResolver([]DedupSource{{Name: "leads", Store: store}}, zap.NewNop())
	reports, err := resolver.Run(context.Background(), DedupOptions{Project: "ortho-west"})
	require.NoError(t, err)
	assert.Equal(t, 1, reports[0].Deleted)
	assert.Zero(t, reports[0].Backfilled)
}

func TestDeduplicationResolver_Run_ContinuesPastDeleteFailure(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, nil)
	b := dedupRecord("Jane Smith", base.Add(time.Minute), nil)
	c := dedupRecord("Jane Smith", base.Add(2*time.Minute), nil)

	var deleted []uuid.UUID
	store := &mockDedupStore{
		ListByProjectFunc: func(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
			return []*models.SubjectRecord{a, b, c}, nil
		},
		DeleteFunc: func(ctx context.Context, id uuid.UUID) error {
			if id == b.ID {
				return errors.New("row locked")
			}
			deleted = append(deleted, id)
			return nil
		},
	}

	resolver := NewDeduplicationResolver([]DedupSource{{Name: "leads", Store: store}}, zap.NewNop())
	reports, err := resolver.Run(context.Background(), DedupOptions{Project: "ortho-west"})
	require.NoError(t, err)

	assert.Equal(t, 1, reports[0].Failed)
	assert.Equal(t, 1, reports[0].Deleted)
	assert.Equal(t, []uuid.UUID{c.ID}, deleted, "a failed delete must not stop the rest")
}

func TestDeduplicationResolver_Plan_ReadOnly(t *testing.T) {
	base := time.Now()
	a := dedupRecord("Jane Smith", base, nil)
	b := dedupRecord("Jane Smith", base.Add(time.Minute), nil)

	store := &mockDedupStore{
		ListByProjectFunc: func(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
			return []*models.SubjectRecord{a, b}, nil
		},
		DeleteFunc: func(ctx context.Context, id uuid.UUID) error {
			t.Fatal("plan must not delete")
			return nil
		},
		BackfillFunc: func(ctx context.Context, id uuid.UUID, fields repositories.BackfillFields) error {
			t.Fatal("plan must not backfill")
			return nil
		},
	}

	resolver := NewDeduplicationResolver([]DedupSource{{Name: "leads", Store: store}}, zap.NewNop())
	plans, err := resolver.Plan(context.Background(), DedupOptions{Project: "ortho-west"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Groups, 1)
	assert.Equal(t, a.ID, plans[0].Groups[0].Survivor.ID)
}

func TestDeduplicationResolver_SourceFilter(t *testing.T) {
	leads := &mockDedupStore{}
	appts := &mockDedupStore{
		ListByProjectFunc: func(ctx context.Context, project string) ([]*models.SubjectRecord, error) {
			t.Fatal("filtered-out source must not be read")
			return nil, nil
		},
	}

	resolver := NewDeduplicationResolver([]DedupSource{
		{Name: "leads", Store: leads},
		{Name: "appointments", Store: appts},
	}, zap.NewNop())

	reports, err := resolver.Run(context.Background(), DedupOptions{Project: "ortho-west", Source: "leads"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "leads", reports[0].Source)

	_, err = resolver.Run(context.Background(), DedupOptions{Project: "ortho-west", Source: "bogus"})
	assert.Error(t, err)
}

func TestDeduplicationResolver_Resolve_NoDuplicates(t *testing.T) {
	base := time.Now()
	records := []*models.SubjectRecord{
		dedupRecord("Jane Smith", base, nil),
		dedupRecord("Bob Jones", base.Add(time.Minute), nil),
	}

	resolver := NewDeduplicationResolver(nil, zap.NewNop())
	assert.Empty(t, resolver.Resolve(records))
	assert.Empty(t, resolver.Resolve(nil))
}
