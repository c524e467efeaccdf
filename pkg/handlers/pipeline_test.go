package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/services"
)

// mockRunner is a function-field mock of services.ParsingQueueRunner.
type mockRunner struct {
	RunBatchFunc func(ctx context.Context, source services.ParseSource, batchSize int) (*services.BatchReport, error)
	RunAllFunc   func(ctx context.Context, batchSize int) ([]*services.BatchReport, error)
}

func (m *mockRunner) RunBatch(ctx context.Context, source services.ParseSource, batchSize int) (*services.BatchReport, error) {
	return m.RunBatchFunc(ctx, source, batchSize)
}

func (m *mockRunner) RunAll(ctx context.Context, batchSize int) ([]*services.BatchReport, error) {
	return m.RunAllFunc(ctx, batchSize)
}

// mockResolver is a function-field mock of services.DeduplicationResolver.
type mockResolver struct {
	ResolveFunc func(records []*models.SubjectRecord) []services.DuplicateGroup
	PlanFunc    func(ctx context.Context, opts services.DedupOptions) ([]*services.SourcePlan, error)
	RunFunc     func(ctx context.Context, opts services.DedupOptions) ([]*services.DedupReport, error)
}

func (m *mockResolver) Resolve(records []*models.SubjectRecord) []services.DuplicateGroup {
	return m.ResolveFunc(records)
}

func (m *mockResolver) Plan(ctx context.Context, opts services.DedupOptions) ([]*services.SourcePlan, error) {
	return m.PlanFunc(ctx, opts)
}

func (m *mockResolver) Run(ctx context.Context, opts services.DedupOptions) ([]*services.DedupReport, error) {
	return m.RunFunc(ctx, opts)
}

func pipelineSources() []services.ParseSource {
	return []services.ParseSource{
		{Name: "leads"},
		{Name: "appointments"},
	}
}

func TestPipelineHandler_ParseRun(t *testing.T) {
	runner := &mockRunner{
		RunBatchFunc: func(ctx context.Context, source services.ParseSource, batchSize int) (*services.BatchReport, error) {
			assert.Equal(t, "leads", source.Name)
			assert.Equal(t, 10, batchSize)
			return &services.BatchReport{Source: "leads", Selected: 3, Processed: 3}, nil
		},
	}
	h := NewPipelineHandler(runner, nil, pipelineSources(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/parse/run",
		strings.NewReader(`{"source": "leads", "max_records": 10}`))
	rec := httptest.NewRecorder()
	h.ParseRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report services.BatchReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Processed)
}

func TestPipelineHandler_ParseRun_UnknownSource(t *testing.T) {
	h := NewPipelineHandler(&mockRunner{}, nil, pipelineSources(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/parse/run",
		strings.NewReader(`{"source": "invoices"}`))
	rec := httptest.NewRecorder()
	h.ParseRun(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_source")
}

func TestPipelineHandler_ParseBackfill(t *testing.T) {
	runner := &mockRunner{
		RunAllFunc: func(ctx context.Context, batchSize int) ([]*services.BatchReport, error) {
			return []*services.BatchReport{
				{Source: "leads", Processed: 5},
				{Source: "appointments", Processed: 2},
			}, nil
		},
	}
	h := NewPipelineHandler(runner, nil, pipelineSources(), zap.NewNop())

	// Empty body is allowed: defaults apply.
	req := httptest.NewRequest(http.MethodPost, "/api/parse/backfill", nil)
	rec := httptest.NewRecorder()
	h.ParseBackfill(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reports"`)
}

func TestPipelineHandler_DedupRun(t *testing.T) {
	resolver := &mockResolver{
		RunFunc: func(ctx context.Context, opts services.DedupOptions) ([]*services.DedupReport, error) {
			assert.Equal(t, "ortho-west", opts.Project)
			assert.True(t, opts.Backfill)
			return []*services.DedupReport{{Source: "leads", Deleted: 2}}, nil
		},
	}
	h := NewPipelineHandler(nil, resolver, pipelineSources(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/dedup/run",
		strings.NewReader(`{"project": "ortho-west", "backfill": true}`))
	rec := httptest.NewRecorder()
	h.DedupRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reports"`)
}

func TestPipelineHandler_DedupRun_DryRun(t *testing.T) {
	resolver := &mockResolver{
		PlanFunc: func(ctx context.Context, opts services.DedupOptions) ([]*services.SourcePlan, error) {
			return []*services.SourcePlan{{Source: "leads"}}, nil
		},
		RunFunc: func(ctx context.Context, opts services.DedupOptions) ([]*services.DedupReport, error) {
			t.Fatal("dry run must not apply")
			return nil, nil
		},
	}
	h := NewPipelineHandler(nil, resolver, pipelineSources(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/dedup/run",
		strings.NewReader(`{"project": "ortho-west", "dry_run": true}`))
	rec := httptest.NewRecorder()
	h.DedupRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dry_run":true`)
}

func TestPipelineHandler_DedupRun_RequiresProject(t *testing.T) {
	h := NewPipelineHandler(nil, &mockResolver{}, pipelineSources(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/dedup/run", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.DedupRun(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
