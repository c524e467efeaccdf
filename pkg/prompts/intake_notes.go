// Package prompts holds the instruction templates sent to the
// text-understanding service.
package prompts

import (
	"fmt"
	"strings"
)

// ExtractionSystemMessage frames the model as a medical intake assistant.
// Kept short: the heavy lifting is the schema in the user prompt.
const ExtractionSystemMessage = "You are a medical intake assistant. You extract structured fields from free-text patient intake notes. You respond with a single JSON object and nothing else."

// BuildExtractionPrompt creates the prompt for intake-note field extraction.
// The response schema must stay in sync with models.Extraction: four groups,
// every leaf nullable, unknown values null rather than guessed.
func BuildExtractionPrompt(notes string) string {
	var prompt strings.Builder

	prompt.WriteString("# Intake Note Extraction\n\n")
	prompt.WriteString("Extract structured fields from the patient intake notes below.\n\n")

	prompt.WriteString("## Response Format\n\n")
	prompt.WriteString("Return ONLY a JSON object with exactly this shape:\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "insurance": {"provider": null, "plan": null, "id": null, "group": null},
  "contact": {"name": null, "email": null, "phone": null, "address": null, "dob": null},
  "demographics": {"age": null, "gender": null},
  "pathology": {"complaint": null, "symptoms": null, "pain_level": null, "duration": null, "prior_treatments": null}
}
`)
	prompt.WriteString("```\n\n")

	prompt.WriteString("Rules:\n")
	prompt.WriteString("- Every value is a string or null. Use null for anything the notes do not state.\n")
	prompt.WriteString("- Never guess or infer values that are not in the notes.\n")
	prompt.WriteString("- Copy identifiers (member id, group number, phone) exactly as written.\n")
	prompt.WriteString("- pain_level is the 0-10 rating if one is given.\n")
	prompt.WriteString("- symptoms and prior_treatments may list several items in one comma-separated string.\n\n")

	prompt.WriteString("## Intake Notes\n\n")
	prompt.WriteString(fmt.Sprintf("%s\n", notes))

	return prompt.String()
}
