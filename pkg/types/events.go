package types

import "time"

// Event kinds pushed over the live connection. Clients ignore any other kind.
const (
	KindSubscribe            = "subscribe"
	KindAppointmentRequested = "appointment_requested"
	KindAppointmentResponded = "appointment_responded"
)

// Event is one push payload on the appointment event channel. The Kind
// discriminator selects which of the optional fields are meaningful.
type Event struct {
	Kind              string `json:"kind"`
	AppointmentID     string `json:"appointmentId,omitempty"`
	RequesterIdentity string `json:"requesterIdentity,omitempty"`
	Date              string `json:"date,omitempty"`
	Time              string `json:"time,omitempty"`
	Reason            string `json:"reason,omitempty"`
	Accepted          *bool  `json:"accepted,omitempty"`
}

// IsAppointmentEvent reports whether the event belongs to the appointment
// domain and should be fanned out to listeners.
func (e *Event) IsAppointmentEvent() bool {
	return e.Kind == KindAppointmentRequested || e.Kind == KindAppointmentResponded
}

// NewRequestedEvent builds the push event sent to the target of a new request
func NewRequestedEvent(apt *Appointment) *Event {
	return &Event{
		Kind:              KindAppointmentRequested,
		AppointmentID:     apt.ID,
		RequesterIdentity: apt.RequesterIdentity,
		Date:              apt.Date,
		Time:              apt.Time,
		Reason:            apt.Reason,
	}
}

// NewRespondedEvent builds the push event sent back to the original requester
func NewRespondedEvent(appointmentID string, accepted bool, reason string) *Event {
	ev := &Event{
		Kind:          KindAppointmentResponded,
		AppointmentID: appointmentID,
		Accepted:      &accepted,
	}
	if !accepted {
		ev.Reason = reason
	}
	return ev
}

// Subscription is the announcement a client sends as the first message on
// every new connection to establish its registry mapping.
type Subscription struct {
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
}

// AuditEvent is the immutable record of one appointment state transition,
// mirrored to the distributed-ledger audit topic.
type AuditEvent struct {
	ID                string                 `json:"id"`
	AppointmentID     string                 `json:"appointment_id"`
	Action            string                 `json:"action"`
	Actor             string                 `json:"actor"`
	RequesterIdentity string                 `json:"requester_identity,omitempty"`
	TargetIdentity    string                 `json:"target_identity,omitempty"`
	Timestamp         time.Time              `json:"timestamp"`
	Details           map[string]interface{} `json:"details,omitempty"`
}

// Audit actions mirrored to the ledger topic
const (
	AuditActionRequested = "appointment_requested"
	AuditActionConfirmed = "appointment_confirmed"
	AuditActionRejected  = "appointment_rejected"
)
