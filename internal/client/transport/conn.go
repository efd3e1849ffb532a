package transport

import (
	"context"

	"github.com/Aphrodine-wq/clipsync/internal/protocol"
	"github.com/gorilla/websocket"
)

// Conn is one live real-time connection carrying protocol frames. The run
// loop reads; writers must serialize through Transport's write lock.
type Conn interface {
	ReadFrame() (protocol.Frame, error)
	WriteFrame(f protocol.Frame) error
	Close() error
}

// Dialer establishes a Conn. Injectable so tests can plug in an in-memory
// pipe instead of a network.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadFrame() (protocol.Frame, error) {
	var f protocol.Frame
	err := w.c.ReadJSON(&f)
	return f, err
}

func (w *wsConn) WriteFrame(f protocol.Frame) error {
	return w.c.WriteJSON(f)
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

type wsDialer struct{}

// NewWebsocketDialer returns the production Dialer.
func NewWebsocketDialer() Dialer { return wsDialer{} }

func (wsDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &wsConn{c: c}, nil
}
