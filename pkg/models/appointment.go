package models

import "time"

// Appointment is a scheduled visit row, typically synced in from the
// practice's booking system. The external id is the booking system's own
// identifier and, when present, the highest-confidence match key.
type Appointment struct {
	SubjectRecord
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Status      string     `json:"status"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Subject exposes the common pipeline view of the appointment.
func (a *Appointment) Subject() *SubjectRecord {
	return &a.SubjectRecord
}

// Appointment statuses used by the dashboard.
const (
	AppointmentStatusScheduled = "scheduled"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusNoShow    = "no_show"
	AppointmentStatusCancelled = "cancelled"
)
