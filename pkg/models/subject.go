package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubjectKind identifies which table a subject record came from.
type SubjectKind string

const (
	SubjectKindLead        SubjectKind = "lead"
	SubjectKindAppointment SubjectKind = "appointment"
)

// SubjectRecord is the common core of leads and appointments: the entity the
// matching, enrichment, and dedup pipeline operates on. The project name is
// the grouping key within which identifiers are considered unique.
type SubjectRecord struct {
	ID         uuid.UUID   `json:"id"`
	Kind       SubjectKind `json:"kind"`
	ExternalID *string     `json:"external_id,omitempty"`
	Phone      *string     `json:"phone,omitempty"`
	Email      *string     `json:"email,omitempty"`
	Name       string      `json:"name"`
	Project    string      `json:"project"`
	Notes      *string     `json:"notes,omitempty"`
	Extraction Extraction  `json:"extraction"`
	ParsedAt   *time.Time  `json:"parsed_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// IsParsed reports whether an enrichment pass has completed for this record.
func (s *SubjectRecord) IsParsed() bool {
	return s.ParsedAt != nil
}

// HasNotes reports whether the record carries intake notes worth parsing.
// Whitespace-only notes count as absent.
func (s *SubjectRecord) HasNotes() bool {
	return s.Notes != nil && strings.TrimSpace(*s.Notes) != ""
}

// NormalizePhone reduces a phone number to bare digits, dropping a leading
// US country code, so "+1 (555) 867-5309" and "5558675309" compare equal.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	return digits
}

// NormalizeName lowercases, trims, and collapses inner whitespace so display
// names compare loosely.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
