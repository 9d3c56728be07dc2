package bridge

import (
	"sync"

	"github.com/gorilla/websocket"
)

// SafeConn wraps a websocket connection with a write mutex and panic
// recovery. The event forwarder and dispatch replies may write
// concurrently, and gorilla allows only one writer at a time.
type SafeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

// NewSafeConn wraps conn.
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteJSON writes v to the connection. Writes to a closed connection are
// silently dropped; the read loop notices the close and tears down.
func (sc *SafeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	if sc.closed {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			sc.closed = true
		}
	}()
	return sc.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (sc *SafeConn) Close() error {
	sc.writeMu.Lock()
	sc.closed = true
	sc.writeMu.Unlock()
	return sc.conn.Close()
}

// Underlying exposes the raw connection for reads, which have a single
// reader by construction.
func (sc *SafeConn) Underlying() *websocket.Conn {
	return sc.conn
}
