package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
)

// DedupSource couples a source name with the dedup view of its table.
type DedupSource struct {
	Name  string
	Store repositories.DedupStore
}

// DuplicateGroup is one cluster of records judged to be the same person.
// The survivor is the earliest-created record; everything else is slated
// for deletion.
type DuplicateGroup struct {
	Survivor   *models.SubjectRecord       `json:"survivor"`
	Duplicates []*models.SubjectRecord     `json:"duplicates"`
	Backfill   repositories.BackfillFields `json:"-"`

	// BackfillSources maps each backfilled field to the discarded record the
	// value was taken from.
	BackfillSources map[string]uuid.UUID `json:"-"`
}

// SourcePlan is the dry-run output for one source: the groups that a real
// run would collapse.
type SourcePlan struct {
	Source string           `json:"source"`
	Groups []DuplicateGroup `json:"groups"`
}

// DedupOptions selects what a deduplication run covers.
type DedupOptions struct {
	// Project is the grouping key to deduplicate within. Required.
	Project string
	// Source restricts the run to one source. Empty means all sources.
	Source string
	// Backfill enables copying identifier fields from discarded duplicates
	// onto survivors.
	Backfill bool
}

// DedupReport summarizes one deduplication run over a source.
type DedupReport struct {
	Source     string `json:"source"`
	Records    int    `json:"records"`
	Groups     int    `json:"groups"`
	Deleted    int    `json:"deleted"`
	Backfilled int    `json:"backfilled"`
	Failed     int    `json:"failed"`
}

// DeduplicationResolver finds and collapses duplicate records within a
// project. Grouping is deterministic: records are considered in creation
// order and keyed on external id, then phone, then normalized name, so the
// same input always produces the same groups.
type DeduplicationResolver interface {
	// Resolve computes duplicate groups without touching the store.
	Resolve(records []*models.SubjectRecord) []DuplicateGroup

	// Plan computes, per source, the groups a run would collapse, without
	// deleting or backfilling anything.
	Plan(ctx context.Context, opts DedupOptions) ([]*SourcePlan, error)

	// Run resolves and applies deduplication. Backfill copies the latest
	// non-null identifier fields from discarded duplicates onto each
	// survivor before deleting.
	Run(ctx context.Context, opts DedupOptions) ([]*DedupReport, error)
}

// deduplicationResolver implements DeduplicationResolver.
type deduplicationResolver struct {
	sources []DedupSource
	logger  *zap.Logger
}

// NewDeduplicationResolver creates a new deduplication resolver over the
// given sources.
func NewDeduplicationResolver(sources []DedupSource, logger *zap.Logger) DeduplicationResolver {
	return &deduplicationResolver{
		sources: sources,
		logger:  logger.Named("dedup"),
	}
}

var _ DeduplicationResolver = (*deduplicationResolver)(nil)

// Resolve groups records by walking them oldest first and matching each
// against the identifiers of the groups seen so far: external id first,
// then normalized phone, then normalized name. The first record of a group
// is its survivor. Only groups with at least one duplicate are returned.
func (d *deduplicationResolver) Resolve(records []*models.SubjectRecord) []DuplicateGroup {
	if len(records) < 2 {
		return nil
	}

	ordered := make([]*models.SubjectRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	byExternalID := make(map[string]int)
	byPhone := make(map[string]int)
	byName := make(map[string]int)
	var groups [][]*models.SubjectRecord

	for _, record := range ordered {
		externalID := dedupKey(record.ExternalID)
		phone := ""
		if record.Phone != nil {
			phone = models.NormalizePhone(*record.Phone)
		}
		name := models.NormalizeName(record.Name)

		idx := -1
		if externalID != "" {
			if i, ok := byExternalID[externalID]; ok {
				idx = i
			}
		}
		if idx < 0 && phone != "" {
			if i, ok := byPhone[phone]; ok {
				idx = i
			}
		}
		if idx < 0 && name != "" {
			if i, ok := byName[name]; ok {
				idx = i
			}
		}

		if idx < 0 {
			idx = len(groups)
			groups = append(groups, nil)

			// Only a fresh survivor registers its identifiers. Identifiers
			// carried solely by a record already marked duplicate must not
			// pull later records into the group.
			if externalID != "" {
				byExternalID[externalID] = idx
			}
			if phone != "" {
				byPhone[phone] = idx
			}
			if name != "" {
				byName[name] = idx
			}
		}
		groups[idx] = append(groups[idx], record)
	}

	var result []DuplicateGroup
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		fields, sources := computeBackfill(group)
		result = append(result, DuplicateGroup{
			Survivor:        group[0],
			Duplicates:      group[1:],
			Backfill:        fields,
			BackfillSources: sources,
		})
	}

	return result
}

// Plan lists and resolves each selected source read-only.
func (d *deduplicationResolver) Plan(ctx context.Context, opts DedupOptions) ([]*SourcePlan, error) {
	sources, err := d.selectSources(opts.Source)
	if err != nil {
		return nil, err
	}

	plans := make([]*SourcePlan, 0, len(sources))
	for _, source := range sources {
		records, err := source.Store.ListByProject(ctx, opts.Project)
		if err != nil {
			return nil, err
		}
		plans = append(plans, &SourcePlan{
			Source: source.Name,
			Groups: d.Resolve(records),
		})
	}

	return plans, nil
}

// Run applies deduplication per source. Deletes are independent: a failed
// delete is logged and counted, and the run continues with the next record.
func (d *deduplicationResolver) Run(ctx context.Context, opts DedupOptions) ([]*DedupReport, error) {
	sources, err := d.selectSources(opts.Source)
	if err != nil {
		return nil, err
	}

	reports := make([]*DedupReport, 0, len(sources))

	for _, source := range sources {
		report := &DedupReport{Source: source.Name}
		reports = append(reports, report)

		records, err := source.Store.ListByProject(ctx, opts.Project)
		if err != nil {
			return reports, err
		}
		report.Records = len(records)

		groups := d.Resolve(records)
		report.Groups = len(groups)

		for _, group := range groups {
			if opts.Backfill && !group.Backfill.IsEmpty() {
				if err := source.Store.Backfill(ctx, group.Survivor.ID, group.Backfill); err != nil {
					report.Failed++
					d.logger.Error("Failed to backfill survivor",
						zap.String("source", source.Name),
						zap.String("survivor_id", group.Survivor.ID.String()),
						zap.Error(err))
				} else {
					report.Backfilled++
					for field, fromID := range group.BackfillSources {
						d.logger.Info("Backfilled survivor field",
							zap.String("source", source.Name),
							zap.String("survivor_id", group.Survivor.ID.String()),
							zap.String("field", field),
							zap.String("from_record_id", fromID.String()))
					}
				}
			}

			for _, duplicate := range group.Duplicates {
				if err := source.Store.Delete(ctx, duplicate.ID); err != nil {
					report.Failed++
					d.logger.Error("Failed to delete duplicate",
						zap.String("source", source.Name),
						zap.String("record_id", duplicate.ID.String()),
						zap.Error(err))
					continue
				}
				report.Deleted++
			}
		}

		d.logger.Info("Deduplication pass finished",
			zap.String("source", source.Name),
			zap.String("project", opts.Project),
			zap.Int("groups", report.Groups),
			zap.Int("deleted", report.Deleted),
			zap.Int("failed", report.Failed))
	}

	return reports, nil
}

// selectSources resolves an optional source-name filter.
func (d *deduplicationResolver) selectSources(name string) ([]DedupSource, error) {
	if name == "" {
		return d.sources, nil
	}
	for _, source := range d.sources {
		if source.Name == name {
			return []DedupSource{source}, nil
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

// computeBackfill takes, per field, the latest non-null value observed across
// the whole group, remembering which record carried it. Fields whose latest
// value already sits on the survivor are dropped: there is nothing to copy.
func computeBackfill(group []*models.SubjectRecord) (repositories.BackfillFields, map[string]uuid.UUID) {
	var fields repositories.BackfillFields
	sources := make(map[string]uuid.UUID)

	for _, record := range group {
		if dedupKey(record.ExternalID) != "" {
			fields.ExternalID = record.ExternalID
			sources["external_id"] = record.ID
		}
		if dedupKey(record.Phone) != "" {
			fields.Phone = record.Phone
			sources["phone"] = record.ID
		}
		if dedupKey(record.Email) != "" {
			fields.Email = record.Email
			sources["email"] = record.ID
		}
		if record.HasNotes() {
			fields.Notes = record.Notes
			sources["notes"] = record.ID
		}
	}

	survivorID := group[0].ID
	for field, fromID := range sources {
		if fromID != survivorID {
			continue
		}
		delete(sources, field)
		switch field {
		case "external_id":
			fields.ExternalID = nil
		case "phone":
			fields.Phone = nil
		case "email":
			fields.Email = nil
		case "notes":
			fields.Notes = nil
		}
	}

	return fields, sources
}

func dedupKey(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
