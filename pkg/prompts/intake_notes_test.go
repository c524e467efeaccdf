package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildExtractionPrompt(t *testing.T) {
	notes := "pain: knee, duration: 6 months"
	prompt := BuildExtractionPrompt(notes)

	assert.Contains(t, prompt, notes)
	// Every schema group must be present in the template
	for _, group := range []string{`"insurance"`, `"contact"`, `"demographics"`, `"pathology"`} {
		assert.Contains(t, prompt, group)
	}
	assert.Contains(t, prompt, "pain_level")
	assert.Contains(t, prompt, "prior_treatments")
}
