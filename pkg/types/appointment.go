package types

import "time"

// Appointment represents an appointment request between two portal identities
type Appointment struct {
	ID                string            `json:"id" db:"id"`
	RequesterIdentity string            `json:"requester_identity" db:"requester_identity"`
	TargetIdentity    string            `json:"target_identity" db:"target_identity"`
	Date              string            `json:"date" db:"scheduled_date"`
	Time              string            `json:"time" db:"scheduled_time"`
	Reason            string            `json:"reason,omitempty" db:"reason"`
	Status            AppointmentStatus `json:"status" db:"status"`
	RejectionReason   string            `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// AppointmentStatus represents appointment status values
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRejected  AppointmentStatus = "rejected"
)

// IsTerminal reports whether no further transition is defined for the status.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// AppointmentRequest carries the fields of a request action
type AppointmentRequest struct {
	RequesterIdentity string `json:"requesterIdentity"`
	TargetIdentity    string `json:"targetIdentity"`
	Date              string `json:"date"`
	Time              string `json:"time"`
	Reason            string `json:"reason,omitempty"`
}

// AppointmentResponse carries the fields of a response action
type AppointmentResponse struct {
	AppointmentID     string `json:"appointmentId"`
	ResponderIdentity string `json:"responderIdentity"`
	Accepted          bool   `json:"accepted"`
	Reason            string `json:"reason,omitempty"`
}
