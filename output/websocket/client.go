package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// clientState is the readiness of one live-view connection.
type clientState int32

const (
	stateConnecting clientState = iota
	stateOpen
	stateClosed
)

func (s clientState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// client is one connected websocket peer.
type client struct {
	conn        *websocket.Conn
	connectedAt time.Time
	state       atomic.Int32
	writing     atomic.Bool // a data frame write is in flight
	closeOnce   sync.Once
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, connectedAt: time.Now()}
	c.state.Store(int32(stateConnecting))
	return c
}

func (c *client) State() clientState {
	return clientState(c.state.Load())
}

func (c *client) setState(s clientState) {
	c.state.Store(int32(s))
}

// acquire claims the client for one data write. It fails when the client is
// not open or a previous write has not finished.
func (c *client) acquire() bool {
	if c.State() != stateOpen {
		return false
	}
	return c.writing.CompareAndSwap(false, true)
}

func (c *client) release() {
	c.writing.Store(false)
}

// write sends one text frame. Callers must hold the claim from acquire.
func (c *client) write(data []byte, timeout time.Duration) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ping uses WriteControl, which gorilla allows concurrently with WriteMessage.
func (c *client) ping(timeout time.Duration) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}
