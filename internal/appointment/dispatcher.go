package appointment

import (
	"github.com/healthspace/dlt-portal/pkg/interfaces"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/monitoring"
	"github.com/healthspace/dlt-portal/pkg/types"
)

// Dispatcher pushes one event to one identity's live connection, best-effort.
// Delivery is at-most-once: an unreachable identity or a failed write drops
// the event. The durable appointment record remains the source of truth; the
// push only shortens the latency until the client notices.
type Dispatcher struct {
	registry interfaces.ConnectionRegistry
	logger   *logger.Logger
}

// NewDispatcher creates a new event dispatcher backed by the given registry
func NewDispatcher(registry interfaces.ConnectionRegistry, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   log,
	}
}

// Dispatch delivers event to identity if a live connection exists. The return
// value reports delivery; false is not an error condition.
func (d *Dispatcher) Dispatch(identity string, event *types.Event) bool {
	conn, ok := d.registry.Lookup(identity)
	if !ok {
		monitoring.RecordDispatch(event.Kind, monitoring.OutcomeUnreachable)
		d.logger.WithIdentity(identity).WithField("kind", event.Kind).Debug("Subscriber not connected, event dropped")
		return false
	}

	if err := conn.Send(event); err != nil {
		monitoring.RecordDispatch(event.Kind, monitoring.OutcomeWriteFailed)
		d.logger.WithIdentity(identity).WithError(err).Warn("Failed to write event to live connection")
		return false
	}

	monitoring.RecordDispatch(event.Kind, monitoring.OutcomeDelivered)
	return true
}
