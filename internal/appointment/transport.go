package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/healthspace/dlt-portal/pkg/types"
	"golang.org/x/net/websocket"
)

const maxDecodeErrorsPerConn = 8

// wsPeer wraps one websocket connection behind a locked encoder so concurrent
// dispatches for the same identity serialize into single frame writes.
type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closer  io.Closer
	open    bool
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{
		encoder: json.NewEncoder(conn),
		closer:  conn,
		open:    true,
	}
}

// Send implements interfaces.Connection
func (p *wsPeer) Send(event *types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return errors.New("connection closed")
	}
	if err := p.encoder.Encode(event); err != nil {
		p.open = false
		return err
	}
	return nil
}

// IsOpen implements interfaces.Connection
func (p *wsPeer) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Close implements interfaces.Connection
func (p *wsPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil
	}
	p.open = false
	return p.closer.Close()
}

// wsIdentityContextKey carries the authenticated identity from the HTTP
// upgrade into the websocket handler.
type wsIdentityContextKey struct{}

func contextWithWSIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, wsIdentityContextKey{}, identity)
}

func wsIdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(wsIdentityContextKey{}).(string)
	return identity, ok
}

// newWSHandler creates the push channel endpoint. When a validator is
// configured, the upgrade requires a bearer token and the announced identity
// must match the token subject.
func (s *Service) newWSHandler() http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		s.handleWSConn(conn)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if s.validator != nil {
			token := accessTokenFromRequest(r)
			if token == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			identity, err := s.validator.ValidateToken(token)
			if err != nil || strings.TrimSpace(identity) == "" {
				s.logger.WithError(err).Warn("Push channel unauthorized")
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			ctx := contextWithWSIdentity(r.Context(), strings.TrimSpace(identity))
			r = r.WithContext(ctx)
		}

		wsHandler.ServeHTTP(w, r)
	})
}

func accessTokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// handleWSConn runs the per-connection frame loop. The first recognized frame
// must be a subscribe announcement; it establishes the registry mapping that
// later dispatches look up. A close or supersede removes only this peer's
// mapping.
func (s *Service) handleWSConn(conn *websocket.Conn) {
	peer := newWSPeer(conn)
	defer func() {
		s.registry.Unregister(peer)
		_ = peer.Close()
	}()

	var authenticated string
	if request := conn.Request(); request != nil {
		if identity, ok := wsIdentityFromContext(request.Context()); ok {
			authenticated = identity
		}
	}

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	subscribed := false

	for {
		var announcement types.Subscription
		if err := decoder.Decode(&announcement); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		// Clients only ever send the subscription announcement; anything
		// else on the inbound side is ignored.
		if announcement.Kind != types.KindSubscribe {
			continue
		}

		identity := strings.TrimSpace(announcement.Identity)
		if identity == "" {
			continue
		}
		if authenticated != "" && identity != authenticated {
			s.logger.WithIdentity(identity).Warn("Subscribe identity does not match authenticated identity")
			return
		}
		if subscribed {
			// Repeated announcements refresh the mapping, matching the
			// overwrite semantics of Register.
			s.registry.Register(identity, peer)
			continue
		}

		s.registry.Register(identity, peer)
		subscribed = true
	}
}
