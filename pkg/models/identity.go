package models

import (
	"fmt"
	"strings"
)

// MatchStrategy records which strategy of the identity matcher's priority
// chain produced a match, for auditability.
type MatchStrategy string

const (
	MatchByExternalID MatchStrategy = "external_id"
	MatchByPhone      MatchStrategy = "phone"
	MatchByEmail      MatchStrategy = "email"
	MatchByName       MatchStrategy = "name"
)

// PartialIdentity is the possibly-incomplete identifier set a caller has for
// a subject. Project is always required; name is required only when no
// stronger identifier is present.
type PartialIdentity struct {
	ExternalID *string `json:"external_id,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Name       string  `json:"name,omitempty"`
	Project    string  `json:"project"`
}

// Validate checks that the identity carries enough to attempt a match.
func (p *PartialIdentity) Validate() error {
	if strings.TrimSpace(p.Project) == "" {
		return fmt.Errorf("project is required")
	}
	if !p.hasValue(p.ExternalID) && !p.hasValue(p.Phone) && !p.hasValue(p.Email) &&
		strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("at least one of external_id, phone, email, or name is required")
	}
	return nil
}

func (p *PartialIdentity) hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// MatchResult is a matched counterpart record together with the strategy
// that found it.
type MatchResult struct {
	Record   *SubjectRecord `json:"record"`
	Strategy MatchStrategy  `json:"strategy"`
}
