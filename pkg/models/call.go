package models

import (
	"time"

	"github.com/google/uuid"
)

// Call is a logged phone interaction with a lead.
type Call struct {
	ID              uuid.UUID  `json:"id"`
	Project         string     `json:"project"`
	LeadID          *uuid.UUID `json:"lead_id,omitempty"`
	Phone           *string    `json:"phone,omitempty"`
	Direction       string     `json:"direction"`
	DurationSeconds int        `json:"duration_seconds"`
	Outcome         string     `json:"outcome,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

const (
	CallDirectionInbound  = "inbound"
	CallDirectionOutbound = "outbound"
)
