package models

import (
	"time"

	"github.com/google/uuid"
)

// AdSpend is a daily spend row per platform and campaign, used by the
// dashboard to compute cost per lead.
type AdSpend struct {
	ID          uuid.UUID `json:"id"`
	Project     string    `json:"project"`
	Platform    string    `json:"platform"`
	Campaign    string    `json:"campaign,omitempty"`
	Date        time.Time `json:"date"`
	AmountCents int64     `json:"amount_cents"`
	LeadCount   int       `json:"lead_count"`
	CreatedAt   time.Time `json:"created_at"`
}
