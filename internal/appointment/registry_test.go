package appointment

import (
	"sync"
	"testing"

	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/types"
	"github.com/stretchr/testify/assert"
)

// fakeConn is an in-memory Connection for registry and dispatcher tests
type fakeConn struct {
	mu      sync.Mutex
	events  []*types.Event
	open    bool
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{open: true}
}

func (c *fakeConn) Send(event *types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *fakeConn) received() []*types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Event(nil), c.events...)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))
	conn := newFakeConn()

	registry.Register("patient@example.org", conn)

	found, ok := registry.Lookup("patient@example.org")
	assert.True(t, ok)
	assert.Equal(t, conn, found)
	assert.Equal(t, 1, registry.Size())
}

func TestRegistry_Lookup_Unknown(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))

	found, ok := registry.Lookup("nobody@example.org")
	assert.False(t, ok)
	assert.Nil(t, found)
}

func TestRegistry_Lookup_ClosedConnection(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))
	conn := newFakeConn()
	registry.Register("patient@example.org", conn)

	conn.Close()

	found, ok := registry.Lookup("patient@example.org")
	assert.False(t, ok)
	assert.Nil(t, found)
}

func TestRegistry_Register_Overwrites(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))
	old := newFakeConn()
	fresh := newFakeConn()

	registry.Register("patient@example.org", old)
	registry.Register("patient@example.org", fresh)

	found, ok := registry.Lookup("patient@example.org")
	assert.True(t, ok)
	assert.Equal(t, fresh, found)
	assert.Equal(t, 1, registry.Size())

	// The superseded connection is abandoned, not closed
	assert.True(t, old.IsOpen())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))
	conn := newFakeConn()
	registry.Register("patient@example.org", conn)

	registry.Unregister(conn)

	_, ok := registry.Lookup("patient@example.org")
	assert.False(t, ok)
	assert.Equal(t, 0, registry.Size())
}

func TestRegistry_Unregister_SupersededConnection(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))
	old := newFakeConn()
	fresh := newFakeConn()

	registry.Register("patient@example.org", old)
	registry.Register("patient@example.org", fresh)

	// The stale connection's close must not evict the fresh mapping
	registry.Unregister(old)

	found, ok := registry.Lookup("patient@example.org")
	assert.True(t, ok)
	assert.Equal(t, fresh, found)
}

func TestRegistry_Unregister_UnknownConnection(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))
	registry.Register("patient@example.org", newFakeConn())

	registry.Unregister(newFakeConn())

	assert.Equal(t, 1, registry.Size())
}

func TestRegistry_Shutdown(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))
	conn1 := newFakeConn()
	conn2 := newFakeConn()
	registry.Register("patient@example.org", conn1)
	registry.Register("doctor@example.org", conn2)

	registry.Shutdown()

	assert.Equal(t, 0, registry.Size())
	assert.False(t, conn1.IsOpen())
	assert.False(t, conn2.IsOpen())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	registry := NewRegistry(logger.New("debug"))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := newFakeConn()
			registry.Register("patient@example.org", conn)
			registry.Lookup("patient@example.org")
			registry.Unregister(conn)
		}()
	}
	wg.Wait()
}
