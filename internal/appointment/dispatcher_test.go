package appointment

import (
	"errors"
	"testing"

	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Dispatch_Delivered(t *testing.T) {
	log := logger.New("debug")
	registry := NewRegistry(log)
	dispatcher := NewDispatcher(registry, log)

	conn := newFakeConn()
	registry.Register("doctor@example.org", conn)

	event := types.NewRespondedEvent("apt-1", true, "")
	delivered := dispatcher.Dispatch("doctor@example.org", event)

	assert.True(t, delivered)
	require.Len(t, conn.received(), 1)
	assert.Equal(t, types.KindAppointmentResponded, conn.received()[0].Kind)
}

func TestDispatcher_Dispatch_Unreachable(t *testing.T) {
	log := logger.New("debug")
	registry := NewRegistry(log)
	dispatcher := NewDispatcher(registry, log)

	event := types.NewRespondedEvent("apt-1", false, "fully booked")
	delivered := dispatcher.Dispatch("offline@example.org", event)

	assert.False(t, delivered)
}

func TestDispatcher_Dispatch_WriteFailure(t *testing.T) {
	log := logger.New("debug")
	registry := NewRegistry(log)
	dispatcher := NewDispatcher(registry, log)

	conn := newFakeConn()
	conn.sendErr = errors.New("broken pipe")
	registry.Register("doctor@example.org", conn)

	event := types.NewRespondedEvent("apt-1", true, "")
	delivered := dispatcher.Dispatch("doctor@example.org", event)

	assert.False(t, delivered)
	assert.Empty(t, conn.received())
}

func TestDispatcher_Dispatch_ClosedConnection(t *testing.T) {
	log := logger.New("debug")
	registry := NewRegistry(log)
	dispatcher := NewDispatcher(registry, log)

	conn := newFakeConn()
	registry.Register("doctor@example.org", conn)
	conn.Close()

	delivered := dispatcher.Dispatch("doctor@example.org", types.NewRespondedEvent("apt-1", true, ""))
	assert.False(t, delivered)
}
