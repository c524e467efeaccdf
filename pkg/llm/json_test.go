package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"complaint": "knee pain"}`,
			want:     `{"complaint": "knee pain"}`,
		},
		{
			name:     "markdown fenced",
			response: "Here is the extraction:\n```json\n{\"complaint\": \"knee pain\"}\n```",
			want:     `{"complaint": "knee pain"}`,
		},
		{
			name:     "think tags stripped",
			response: "<think>the patient mentions a knee</think>{\"complaint\": \"knee pain\"}",
			want:     `{"complaint": "knee pain"}`,
		},
		{
			name:     "nested braces",
			response: `prefix {"a": {"b": "c}"}, "d": 1} suffix`,
			want:     `{"a": {"b": "c}"}, "d": 1}`,
		},
		{
			name:     "array",
			response: `[{"a": 1}, {"a": 2}]`,
			want:     `[{"a": 1}, {"a": 2}]`,
		},
		{
			name:     "escaped quotes inside string",
			response: `{"note": "said \"ow\" loudly"}`,
			want:     `{"note": "said \"ow\" loudly"}`,
		},
		{
			name:     "no json at all",
			response: "I could not find any structured data.",
			wantErr:  true,
		},
		{
			name:     "unbalanced",
			response: `{"a": 1`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	type payload struct {
		Complaint string `json:"complaint"`
	}

	got, err := ParseJSONResponse[payload]("```json\n{\"complaint\": \"knee pain\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "knee pain", got.Complaint)

	_, err = ParseJSONResponse[payload]("not json")
	require.Error(t, err)
}
