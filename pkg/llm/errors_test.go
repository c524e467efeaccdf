package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantRetryable bool
	}{
		{"unauthorized", errors.New("401 unauthorized"), ErrorTypeAuth, false},
		{"invalid key", errors.New("invalid api key provided"), ErrorTypeAuth, false},
		{"model missing", errors.New("model gpt-9 does not exist"), ErrorTypeModel, false},
		{"endpoint 404", errors.New("404 page not found"), ErrorTypeEndpoint, false},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrorTypeEndpoint, true},
		{"deadline", errors.New("context deadline exceeded"), ErrorTypeEndpoint, true},
		{"rate limited", errors.New("429 too many requests"), ErrorTypeRateLimit, true},
		{"anthropic overloaded", errors.New("529 overloaded_error"), ErrorTypeRateLimit, true},
		{"server error", errors.New("503 service unavailable"), ErrorTypeEndpoint, true},
		{"unknown", errors.New("something odd"), ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantRetryable, got.Retryable)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyErrorNil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestClassifyErrorPreservesExisting(t *testing.T) {
	orig := NewError(ErrorTypeAuth, "authentication failed", false, errors.New("boom"))
	wrapped := fmt.Errorf("extract: %w", orig)

	got := ClassifyError(wrapped)
	assert.Same(t, orig, got)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(ErrorTypeEndpoint, "timeout", true, nil)))
	assert.False(t, IsRetryable(NewError(ErrorTypeAuth, "denied", false, nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestErrorString(t *testing.T) {
	err := &Error{
		Type:       ErrorTypeRateLimit,
		Message:    "rate limited",
		StatusCode: 429,
		Model:      "gpt-4o",
		Cause:      errors.New("too many requests"),
	}
	s := err.Error()
	assert.Contains(t, s, "rate_limit")
	assert.Contains(t, s, "HTTP 429")
	assert.Contains(t, s, "model=gpt-4o")
	assert.Contains(t, s, "too many requests")
}
