package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/config"
	"github.com/clearpath-health/intake-engine/pkg/llm"
	"github.com/clearpath-health/intake-engine/pkg/repositories"
)

// ParseSource couples a source name with the queue view of its table.
type ParseSource struct {
	Name  string
	Store repositories.ParseQueueStore
}

// BatchReport summarizes one parsing run over a source.
type BatchReport struct {
	Source    string `json:"source"`
	Selected  int    `json:"selected"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// ParsingQueueRunner drains records awaiting note enrichment. A record
// enters the queue by having non-blank notes and no completion timestamp,
// and leaves it only when a full extraction commits.
type ParsingQueueRunner interface {
	// RunBatch processes one batch from a single source, sequentially.
	RunBatch(ctx context.Context, source ParseSource, batchSize int) (*BatchReport, error)

	// RunAll drains every configured source to empty. Sources run in
	// parallel; records within a source stay sequential.
	RunAll(ctx context.Context, batchSize int) ([]*BatchReport, error)
}

// parsingQueueRunner implements ParsingQueueRunner.
type parsingQueueRunner struct {
	sources   []ParseSource
	extractor EnrichmentExtractor
	pool      *llm.WorkerPool
	batchSize int
	callDelay time.Duration
	logger    *zap.Logger
}

// NewParsingQueueRunner creates a new parsing queue runner over the given
// sources.
func NewParsingQueueRunner(sources []ParseSource, extractor EnrichmentExtractor, cfg *config.ParserConfig, logger *zap.Logger) ParsingQueueRunner {
	return &parsingQueueRunner{
		sources:   sources,
		extractor: extractor,
		pool:      llm.NewWorkerPool(llm.DefaultWorkerPoolConfig(), logger),
		batchSize: cfg.BatchSize,
		callDelay: cfg.CallDelay,
		logger:    logger.Named("parse-queue"),
	}
}

var _ ParsingQueueRunner = (*parsingQueueRunner)(nil)

// RunBatch selects one batch of pending records and processes them in order,
// pausing between extraction calls. A failed record is left untouched so a
// later run retries it; failures never stop the batch.
func (p *parsingQueueRunner) RunBatch(ctx context.Context, source ParseSource, batchSize int) (*BatchReport, error) {
	if batchSize < 1 {
		batchSize = p.batchSize
	}

	records, err := source.Store.ListPendingParse(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending %s: %w", source.Name, err)
	}

	report := &BatchReport{Source: source.Name, Selected: len(records)}
	if len(records) == 0 {
		return report, nil
	}

	p.logger.Info("Processing parse batch",
		zap.String("source", source.Name),
		zap.Int("selected", len(records)))

	for i, record := range records {
		if i > 0 {
			if err := sleepContext(ctx, p.callDelay); err != nil {
				return report, err
			}
		}

		notes := ""
		if record.Notes != nil {
			notes = *record.Notes
		}

		extraction, err := p.extractor.Extract(ctx, notes)
		if errors.Is(err, apperrors.ErrEmptyInput) {
			// Selection excludes blank notes; a record can still lose its
			// notes between selection and processing.
			report.Skipped++
			continue
		}
		if err != nil {
			report.Failed++
			p.logger.Warn("Record extraction failed",
				zap.String("source", source.Name),
				zap.String("record_id", record.ID.String()),
				zap.Error(err))
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			continue
		}

		if err := source.Store.SaveExtraction(ctx, record.ID, *extraction, time.Now()); err != nil {
			report.Failed++
			p.logger.Error("Failed to save extraction",
				zap.String("source", source.Name),
				zap.String("record_id", record.ID.String()),
				zap.Error(err))
			continue
		}

		report.Processed++
	}

	return report, nil
}

// RunAll drains all sources. Each source loops batches until its queue is
// empty; independent sources run concurrently on the worker pool.
func (p *parsingQueueRunner) RunAll(ctx context.Context, batchSize int) ([]*BatchReport, error) {
	items := make([]llm.WorkItem[*BatchReport], 0, len(p.sources))
	for _, source := range p.sources {
		items = append(items, llm.WorkItem[*BatchReport]{
			ID: source.Name,
			Execute: func(ctx context.Context) (*BatchReport, error) {
				return p.drainSource(ctx, source, batchSize)
			},
		})
	}

	results := llm.Process(ctx, p.pool, items, nil)

	reports := make([]*BatchReport, 0, len(results))
	var firstErr error
	for _, result := range results {
		if result.Result != nil {
			reports = append(reports, result.Result)
		}
		if result.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("drain %s: %w", result.ID, result.Err)
		}
	}

	return reports, firstErr
}

// drainSource runs batches back to back until a batch selects nothing.
func (p *parsingQueueRunner) drainSource(ctx context.Context, source ParseSource, batchSize int) (*BatchReport, error) {
	total := &BatchReport{Source: source.Name}

	for {
		report, err := p.RunBatch(ctx, source, batchSize)
		if report != nil {
			total.Selected += report.Selected
			total.Processed += report.Processed
			total.Failed += report.Failed
			total.Skipped += report.Skipped
		}
		if err != nil {
			return total, err
		}
		if report.Selected == 0 {
			return total, nil
		}

		// Only a commit shrinks the queue. A batch where nothing commits
		// would select the same records forever; stop and let a later run
		// retry.
		if report.Processed == 0 {
			p.logger.Warn("Stopping drain: batch committed nothing",
				zap.String("source", source.Name),
				zap.Int("failed", report.Failed),
				zap.Int("skipped", report.Skipped))
			return total, nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
