package models

import (
	"encoding/json"
	"strings"

	"github.com/clearpath-health/intake-engine/pkg/jsonutil"
)

// Extraction holds the structured fields pulled out of free-text intake
// notes. Every sub-record and every leaf is independently nullable: an
// extraction that finds nothing for a whole group is still a success.
type Extraction struct {
	Insurance    *Insurance    `json:"insurance"`
	Contact      *Contact      `json:"contact"`
	Demographics *Demographics `json:"demographics"`
	Pathology    *Pathology    `json:"pathology"`
}

// IsEmpty reports whether no sub-record was extracted at all.
func (e *Extraction) IsEmpty() bool {
	return e.Insurance == nil && e.Contact == nil && e.Demographics == nil && e.Pathology == nil
}

// Insurance holds coverage details mentioned in the notes.
type Insurance struct {
	Provider *string `json:"provider"`
	Plan     *string `json:"plan"`
	MemberID *string `json:"id"`
	Group    *string `json:"group"`
}

// Contact holds contact details mentioned in the notes.
type Contact struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	DOB     *string `json:"dob"`
}

// Demographics holds basic demographic details mentioned in the notes.
type Demographics struct {
	Age    *string `json:"age"`
	Gender *string `json:"gender"`
}

// Pathology holds the clinical picture described in the notes.
type Pathology struct {
	Complaint       *string `json:"complaint"`
	Symptoms        *string `json:"symptoms"`
	PainLevel       *string `json:"pain_level"`
	Duration        *string `json:"duration"`
	PriorTreatments *string `json:"prior_treatments"`
}

// flexString decodes a leaf value leniently (LLMs return numbers for ages,
// pain levels, and member ids). Empty and null become nil.
func flexString(raw json.RawMessage) *string {
	s := jsonutil.FlexibleStringValue(raw)
	if s == "" {
		return nil
	}
	return &s
}

// flexJoined is flexString with list handling: a JSON array of values is
// joined into one comma-separated string (symptom and treatment lists).
func flexJoined(raw json.RawMessage) *string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if s := jsonutil.FlexibleStringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return nil
		}
		joined := strings.Join(parts, ", ")
		return &joined
	}
	return flexString(raw)
}

func (i *Insurance) UnmarshalJSON(data []byte) error {
	var raw struct {
		Provider json.RawMessage `json:"provider"`
		Plan     json.RawMessage `json:"plan"`
		MemberID json.RawMessage `json:"id"`
		Group    json.RawMessage `json:"group"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.Provider = flexString(raw.Provider)
	i.Plan = flexString(raw.Plan)
	i.MemberID = flexString(raw.MemberID)
	i.Group = flexString(raw.Group)
	return nil
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name    json.RawMessage `json:"name"`
		Email   json.RawMessage `json:"email"`
		Phone   json.RawMessage `json:"phone"`
		Address json.RawMessage `json:"address"`
		DOB     json.RawMessage `json:"dob"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Name = flexString(raw.Name)
	c.Email = flexString(raw.Email)
	c.Phone = flexString(raw.Phone)
	c.Address = flexString(raw.Address)
	c.DOB = flexString(raw.DOB)
	return nil
}

func (d *Demographics) UnmarshalJSON(data []byte) error {
	var raw struct {
		Age    json.RawMessage `json:"age"`
		Gender json.RawMessage `json:"gender"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Age = flexString(raw.Age)
	d.Gender = flexString(raw.Gender)
	return nil
}

func (p *Pathology) UnmarshalJSON(data []byte) error {
	var raw struct {
		Complaint       json.RawMessage `json:"complaint"`
		Symptoms        json.RawMessage `json:"symptoms"`
		PainLevel       json.RawMessage `json:"pain_level"`
		Duration        json.RawMessage `json:"duration"`
		PriorTreatments json.RawMessage `json:"prior_treatments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Complaint = flexString(raw.Complaint)
	p.Symptoms = flexJoined(raw.Symptoms)
	p.PainLevel = flexString(raw.PainLevel)
	p.Duration = flexString(raw.Duration)
	p.PriorTreatments = flexJoined(raw.PriorTreatments)
	return nil
}
