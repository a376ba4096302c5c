package appointment

import (
	"sync"

	"github.com/healthspace/dlt-portal/pkg/interfaces"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/monitoring"
)

// Registry is the server-side table mapping a user identity to its live push
// connection. It is owned by the service composition root, not a package-level
// singleton, so tests can run independent instances side by side.
type Registry struct {
	mu          sync.Mutex
	connections map[string]interfaces.Connection
	logger      *logger.Logger
}

// NewRegistry creates a new connection registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		logger:      log,
	}
}

// Register unconditionally overwrites any prior mapping for identity. The
// superseded connection is abandoned, not closed; closure is detected lazily
// on its next write or via the transport's own close notification.
func (r *Registry) Register(identity string, conn interfaces.Connection) {
	r.mu.Lock()
	r.connections[identity] = conn
	size := len(r.connections)
	r.mu.Unlock()

	monitoring.SetActiveConnections(size)
	r.logger.WithIdentity(identity).Info("Subscriber registered")
}

// Unregister removes the entry holding exactly this connection. A connection
// that was already superseded by a newer registration for the same identity
// leaves the newer mapping untouched.
func (r *Registry) Unregister(conn interfaces.Connection) {
	r.mu.Lock()
	var removed string
	for identity, registered := range r.connections {
		if registered == conn {
			delete(r.connections, identity)
			removed = identity
			break
		}
	}
	size := len(r.connections)
	r.mu.Unlock()

	if removed != "" {
		monitoring.SetActiveConnections(size)
		r.logger.WithIdentity(removed).Info("Subscriber unregistered")
	}
}

// Lookup returns the connection for identity if one is registered and open
func (r *Registry) Lookup(identity string) (interfaces.Connection, bool) {
	r.mu.Lock()
	conn, ok := r.connections[identity]
	r.mu.Unlock()

	if !ok || !conn.IsOpen() {
		return nil, false
	}
	return conn, true
}

// Size returns the number of registered identities
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// Shutdown closes every registered connection and clears the table
func (r *Registry) Shutdown() {
	r.mu.Lock()
	connections := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	r.connections = make(map[string]interfaces.Connection)
	r.mu.Unlock()

	for _, conn := range connections {
		_ = conn.Close()
	}
	monitoring.SetActiveConnections(0)
}
