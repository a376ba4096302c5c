package appointment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/healthspace/dlt-portal/pkg/config"
	"github.com/healthspace/dlt-portal/pkg/logger"
	"github.com/healthspace/dlt-portal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newTestTransportService(validator *TokenValidator) (*Service, *Registry) {
	log := logger.New("debug")
	registry := NewRegistry(log)

	service := &Service{
		config:     &config.Config{},
		logger:     log,
		registry:   registry,
		dispatcher: NewDispatcher(registry, log),
		validator:  validator,
	}
	return service, registry
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func subscribeFrame(t *testing.T, conn *websocket.Conn, identity string) {
	t.Helper()
	frame := types.Subscription{Kind: types.KindSubscribe, Identity: identity}
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode subscribe frame: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) *types.Event {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var event types.Event
	if err := json.NewDecoder(conn).Decode(&event); err != nil {
		t.Fatalf("decode event frame: %v", err)
	}
	return &event
}

func TestWSHandler_SubscribeRegisters(t *testing.T) {
	service, registry := newTestTransportService(nil)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv, "")
	subscribeFrame(t, conn, "patient@example.org")

	assert.Eventually(t, func() bool {
		_, ok := registry.Lookup("patient@example.org")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSHandler_PushReachesClient(t *testing.T) {
	service, registry := newTestTransportService(nil)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv, "")
	subscribeFrame(t, conn, "doctor@example.org")

	require.Eventually(t, func() bool {
		_, ok := registry.Lookup("doctor@example.org")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	delivered := service.dispatcher.Dispatch("doctor@example.org", &types.Event{
		Kind:              types.KindAppointmentRequested,
		AppointmentID:     "apt-1",
		RequesterIdentity: "patient@example.org",
		Date:              "2026-09-15",
		Time:              "10:30",
	})
	require.True(t, delivered)

	event := readEvent(t, conn)
	assert.Equal(t, types.KindAppointmentRequested, event.Kind)
	assert.Equal(t, "apt-1", event.AppointmentID)
	assert.Equal(t, "patient@example.org", event.RequesterIdentity)
}

func TestWSHandler_CloseUnregisters(t *testing.T) {
	service, registry := newTestTransportService(nil)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv, "")
	subscribeFrame(t, conn, "patient@example.org")

	require.Eventually(t, func() bool {
		return registry.Size() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return registry.Size() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSHandler_ReconnectSupersedes(t *testing.T) {
	service, registry := newTestTransportService(nil)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	stale := dialWS(t, srv, "")
	subscribeFrame(t, stale, "patient@example.org")

	require.Eventually(t, func() bool {
		return registry.Size() == 1
	}, 2*time.Second, 10*time.Millisecond)

	fresh := dialWS(t, srv, "")
	subscribeFrame(t, fresh, "patient@example.org")

	// The fresh connection replaces the stale one; pushes land on it
	require.Eventually(t, func() bool {
		delivered := service.dispatcher.Dispatch("patient@example.org", types.NewRespondedEvent("apt-1", true, ""))
		if !delivered {
			return false
		}
		_ = fresh.SetDeadline(time.Now().Add(time.Second))
		var event types.Event
		return json.NewDecoder(fresh).Decode(&event) == nil && event.AppointmentID == "apt-1"
	}, 4*time.Second, 50*time.Millisecond)
}

func TestWSHandler_IgnoresUnknownFrames(t *testing.T) {
	service, registry := newTestTransportService(nil)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	conn := dialWS(t, srv, "")

	// Unknown kinds and empty identities are skipped, not fatal
	require.NoError(t, json.NewEncoder(conn).Encode(map[string]string{"kind": "noise"}))
	subscribeFrame(t, conn, "")
	subscribeFrame(t, conn, "patient@example.org")

	assert.Eventually(t, func() bool {
		_, ok := registry.Lookup("patient@example.org")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSHandler_MethodNotAllowed(t *testing.T) {
	service, _ := newTestTransportService(nil)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWSHandler_AuthRequired(t *testing.T) {
	validator := NewTokenValidator("test-secret", "healthspace-portal")
	service, _ := newTestTransportService(validator)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := websocket.Dial(wsURL, "", srv.URL)
	assert.Error(t, err)
}

func TestWSHandler_AuthTokenAccepted(t *testing.T) {
	validator := NewTokenValidator("test-secret", "healthspace-portal")
	service, registry := newTestTransportService(validator)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	token, err := validator.IssueToken("patient@example.org", time.Minute)
	require.NoError(t, err)

	conn := dialWS(t, srv, "?token="+token)
	subscribeFrame(t, conn, "patient@example.org")

	assert.Eventually(t, func() bool {
		_, ok := registry.Lookup("patient@example.org")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSHandler_AuthIdentityMismatch(t *testing.T) {
	validator := NewTokenValidator("test-secret", "healthspace-portal")
	service, registry := newTestTransportService(validator)
	srv := httptest.NewServer(service.newWSHandler())
	t.Cleanup(srv.Close)

	token, err := validator.IssueToken("patient@example.org", time.Minute)
	require.NoError(t, err)

	conn := dialWS(t, srv, "?token="+token)
	subscribeFrame(t, conn, "other@example.org")

	// The server drops the connection without registering the identity
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var event types.Event
	assert.Error(t, json.NewDecoder(conn).Decode(&event))
	assert.Equal(t, 0, registry.Size())
}

func TestTokenValidator_RejectsBadToken(t *testing.T) {
	validator := NewTokenValidator("test-secret", "healthspace-portal")

	_, err := validator.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestTokenValidator_RejectsWrongIssuer(t *testing.T) {
	other := NewTokenValidator("test-secret", "someone-else")
	token, err := other.IssueToken("patient@example.org", time.Minute)
	require.NoError(t, err)

	validator := NewTokenValidator("test-secret", "healthspace-portal")
	_, err = validator.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenValidator_RoundTrip(t *testing.T) {
	validator := NewTokenValidator("test-secret", "healthspace-portal")
	token, err := validator.IssueToken("patient@example.org", time.Minute)
	require.NoError(t, err)

	identity, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "patient@example.org", identity)
}
