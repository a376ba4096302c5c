package subscriber

import (
	"encoding/json"
	"sync"

	"github.com/healthspace/dlt-portal/pkg/types"
	"golang.org/x/net/websocket"
)

// wsConn adapts a websocket connection to the Conn interface
type wsConn struct {
	conn    *websocket.Conn
	decoder *json.Decoder

	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn:    conn,
		decoder: json.NewDecoder(conn),
		encoder: json.NewEncoder(conn),
	}
}

// Announce sends the subscription announcement frame
func (c *wsConn) Announce(sub *types.Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoder.Encode(sub)
}

// Next blocks until the next event frame arrives
func (c *wsConn) Next() (*types.Event, error) {
	var event types.Event
	if err := c.decoder.Decode(&event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Close closes the underlying websocket
func (c *wsConn) Close() error {
	return c.conn.Close()
}
