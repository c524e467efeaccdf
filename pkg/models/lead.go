package models

import "time"

// Lead is an inbound prospect row. Leads arrive from ad platforms, web forms,
// and spreadsheet imports, usually with free-text intake notes attached.
type Lead struct {
	SubjectRecord
	Source    string    `json:"source,omitempty"`
	Campaign  string    `json:"campaign,omitempty"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject exposes the common pipeline view of the lead.
func (l *Lead) Subject() *SubjectRecord {
	return &l.SubjectRecord
}

// Lead statuses used by the dashboard.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusBooked    = "booked"
	LeadStatusClosed    = "closed"
)
