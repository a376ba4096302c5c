// Package subscriber implements the client side of the appointment push
// channel: a shared connection manager that portal views attach listeners to.
// The transport is open exactly while at least one listener is attached, and
// a dropped connection is retried on a fixed delay until the last listener
// detaches.
package subscriber

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/types"
	"golang.org/x/net/websocket"
)

const defaultRetryDelay = 3 * time.Second

// State describes the manager's connection lifecycle
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Listener receives every appointment event pushed to this identity
type Listener func(*types.Event)

// Conn is one live connection to the push endpoint
type Conn interface {
	Announce(sub *types.Subscription) error
	Next() (*types.Event, error)
	Close() error
}

// Dialer opens connections to the push endpoint
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Manager owns one push connection per identity and fans incoming events out
// to the attached listeners. Listeners attach and detach as views come and
// go; the manager connects on the first attach and tears down on the last
// detach.
type Manager struct {
	identity string
	dialer   Dialer
	delay    time.Duration
	logger   *logger.Logger

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
	conn      Conn
	cancel    context.CancelFunc
	gen       int
}

// NewManager creates a subscription manager for identity. The retry delay is
// fixed; there is no backoff growth between attempts.
func NewManager(identity string, dialer Dialer, retryDelay time.Duration, log *logger.Logger) *Manager {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Manager{
		identity:  identity,
		dialer:    dialer,
		delay:     retryDelay,
		logger:    log,
		state:     StateDisconnected,
		listeners: make(map[int]Listener),
	}
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe attaches a listener and returns its handle. The first listener
// starts the connection loop; later listeners share the existing connection.
func (m *Manager) Subscribe(fn Listener) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.listeners[id] = fn

	if m.state == StateDisconnected {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.gen++
		m.state = StateConnecting
		go m.run(ctx, m.gen)
	}

	return id
}

// Unsubscribe detaches the listener with the given handle. Removing the last
// listener closes the transport and stops reconnecting.
func (m *Manager) Unsubscribe(id int) {
	m.mu.Lock()
	delete(m.listeners, id)
	if len(m.listeners) > 0 {
		m.mu.Unlock()
		return
	}

	cancel := m.cancel
	conn := m.conn
	m.cancel = nil
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// run is the connection loop: dial, announce, read until failure, wait the
// fixed delay, repeat. It exits when its context is cancelled.
func (m *Manager) run(ctx context.Context, gen int) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := m.dialer.Dial(ctx)
		if err != nil {
			m.logger.WithIdentity(m.identity).WithError(err).Debug("Push channel dial failed")
			if !waitRetry(ctx, m.delay) {
				return
			}
			continue
		}

		// The announcement is re-sent on every successful dial so the
		// server's registry maps this identity to the fresh connection.
		if err := conn.Announce(&types.Subscription{
			Kind:     types.KindSubscribe,
			Identity: m.identity,
		}); err != nil {
			_ = conn.Close()
			if !waitRetry(ctx, m.delay) {
				return
			}
			continue
		}

		if !m.adopt(ctx, gen, conn) {
			_ = conn.Close()
			return
		}
		m.logger.WithIdentity(m.identity).Info("Push channel connected")

		for {
			event, recvErr := conn.Next()
			if recvErr != nil {
				break
			}
			if event == nil || !event.IsAppointmentEvent() {
				continue
			}
			m.fanout(event)
		}

		_ = conn.Close()
		if !m.demote(ctx, gen) {
			return
		}
		m.logger.WithIdentity(m.identity).Debug("Push channel lost, reconnecting")

		if !waitRetry(ctx, m.delay) {
			return
		}
	}
}

// adopt publishes the live connection and moves to Connected. It reports
// false when this loop has been superseded or cancelled.
func (m *Manager) adopt(ctx context.Context, gen int, conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil || gen != m.gen {
		return false
	}
	m.conn = conn
	m.state = StateConnected
	return true
}

// demote clears the dead connection and moves back to Connecting
func (m *Manager) demote(ctx context.Context, gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ctx.Err() != nil || gen != m.gen {
		return false
	}
	m.conn = nil
	m.state = StateConnecting
	return true
}

// fanout delivers one event to a snapshot of the listener set, in
// registration order. Handles are assigned monotonically in Subscribe, so
// ascending handle order is registration order. Listeners run outside the
// lock so a slow listener cannot stall attach or detach.
func (m *Manager) fanout(event *types.Event) {
	m.mu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func waitRetry(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// WebsocketDialer dials the portal's push endpoint over websocket
type WebsocketDialer struct {
	URL     string
	Origin  string
	Timeout time.Duration
}

// Dial implements Dialer
func (d *WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := websocket.NewConfig(d.URL, d.Origin)
	if err != nil {
		return nil, err
	}
	if d.Timeout > 0 {
		cfg.Dialer = &net.Dialer{Timeout: d.Timeout}
	}

	conn, err := websocket.DialConfig(cfg)
	if err != nil {
		return nil, err
	}
	return newWSConn(conn), nil
}
