package interfaces

import (
	"github.com/healthspace/dlt-portal/pkg/types"
)

// AppointmentService defines the appointment state machine operations
type AppointmentService interface {
	// RequestAppointment validates and persists a new pending appointment,
	// mirrors it to the audit log, and pushes a request event to the target.
	// The returned id is valid even when the target was unreachable.
	RequestAppointment(req *types.AppointmentRequest) (string, error)

	// RespondToAppointment transitions a pending appointment to confirmed or
	// rejected. Responding twice, or to an unknown id, is an error.
	RespondToAppointment(resp *types.AppointmentResponse) error

	// Queries
	GetAppointment(id string) (*types.Appointment, error)
	GetAppointmentsForIdentity(identity string, limit, offset int) ([]*types.Appointment, error)

	// Service management
	Start(addr string) error
	Stop() error
}

// AppointmentRepository defines the durable store for appointment records
type AppointmentRepository interface {
	CreateAppointment(apt *types.Appointment) error
	GetAppointmentByID(id string) (*types.Appointment, error)

	// DecideAppointment conditionally moves an appointment out of pending.
	// The rejection reason is stored only when status is rejected. A not
	// found or already-terminal record yields a typed error and no change.
	DecideAppointment(id string, status types.AppointmentStatus, rejectionReason string) error

	GetAppointmentsForIdentity(identity string, limit, offset int) ([]*types.Appointment, error)
}

// Connection is one live push channel to a subscribed client
type Connection interface {
	Send(event *types.Event) error
	IsOpen() bool
	Close() error
}

// ConnectionRegistry tracks which identities currently have a live connection
type ConnectionRegistry interface {
	// Register unconditionally overwrites any prior mapping for identity.
	Register(identity string, conn Connection)

	// Unregister removes the entry holding exactly this connection. A miss
	// (already superseded or never registered) is a no-op, not an error.
	Unregister(conn Connection)

	// Lookup returns the connection for identity if one is registered and
	// believed open.
	Lookup(identity string) (Connection, bool)
}

// EventDispatcher delivers one event payload to one identity, best-effort.
// The return value reports whether a live connection accepted the write;
// an unreachable identity is never an error.
type EventDispatcher interface {
	Dispatch(identity string, event *types.Event) bool
}

// AuditWriter appends appointment state transitions to the ledger topic.
// Append is fire-and-forget relative to the primary flow.
type AuditWriter interface {
	Append(event *types.AuditEvent)
	Close() error
}

// LedgerClient submits audit entries to the distributed-ledger audit chaincode
type LedgerClient interface {
	RecordTransition(event *types.AuditEvent) error
	GetTrailByAppointment(appointmentID string) ([]*types.AuditEvent, error)
}
