package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clearpath-health/intake-engine/pkg/apperrors"
	"github.com/clearpath-health/intake-engine/pkg/config"
	"github.com/clearpath-health/intake-engine/pkg/llm"
	"github.com/clearpath-health/intake-engine/pkg/logging"
	"github.com/clearpath-health/intake-engine/pkg/models"
	"github.com/clearpath-health/intake-engine/pkg/prompts"
)

// MalformedResponseError marks an extraction response that could not be
// parsed into the expected schema. Callers treat it as a per-record failure,
// not a provider outage.
type MalformedResponseError struct {
	cause error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed extraction response: %v", e.cause)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.cause
}

// EnrichmentExtractor turns free-text intake notes into structured
// extraction groups via the text-understanding service.
type EnrichmentExtractor interface {
	// Extract parses one note. Returns apperrors.ErrEmptyInput for blank
	// notes and *MalformedResponseError when the model's output cannot be
	// decoded.
	Extract(ctx context.Context, notes string) (*models.Extraction, error)
}

// enrichmentExtractor implements EnrichmentExtractor over an LLM client with
// a circuit breaker in front of the provider.
type enrichmentExtractor struct {
	client  llm.LLMClient
	breaker *llm.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// NewEnrichmentExtractor creates a new extractor.
func NewEnrichmentExtractor(client llm.LLMClient, cfg *config.AIConfig, logger *zap.Logger) EnrichmentExtractor {
	return &enrichmentExtractor{
		client:  client,
		breaker: llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig()),
		timeout: cfg.RequestTimeout,
		logger:  logger.Named("enrichment-extractor"),
	}
}

var _ EnrichmentExtractor = (*enrichmentExtractor)(nil)

// Extract sends the notes through the extraction prompt and decodes the
// response. Temperature is pinned to zero: extraction must be deterministic,
// not creative.
func (e *enrichmentExtractor) Extract(ctx context.Context, notes string) (*models.Extraction, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, apperrors.ErrEmptyInput
	}

	if ok, err := e.breaker.Allow(); !ok {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.client.GenerateResponse(ctx, prompts.BuildExtractionPrompt(notes), prompts.ExtractionSystemMessage, 0)
	if err != nil {
		e.breaker.RecordFailure()
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}
	e.breaker.RecordSuccess()

	extraction, err := llm.ParseJSONResponse[models.Extraction](resp.Content)
	if err != nil {
		e.logger.Warn("Extraction response did not match schema",
			zap.String("model", e.client.GetModel()),
			zap.String("response_preview", logging.NotesPreview(resp.Content)),
			zap.Error(err))
		return nil, &MalformedResponseError{cause: err}
	}

	if extraction.IsEmpty() {
		e.logger.Warn("Extraction returned no recognized groups",
			zap.String("model", e.client.GetModel()),
			zap.String("notes_preview", logging.NotesPreview(notes)))
	}

	e.logger.Debug("Extraction completed",
		zap.String("model", e.client.GetModel()),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", resp.TotalTokens))

	return &extraction, nil
}
