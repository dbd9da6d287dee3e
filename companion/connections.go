package companion

import (
	"context"
	"errors"
	"sync"

	"nhooyr.io/websocket"
)

var errTooManyConnections = errors.New("max connections reached")

type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, buffer int) *wsConn {
	if buffer <= 0 {
		buffer = 64
	}
	return &wsConn{
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// enqueue never blocks; a full queue drops the message
func (c *wsConn) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsConn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		_ = c.conn.Close(code, reason)
	})
}

func (s *Server) addConn(conn *websocket.Conn) (*wsConn, error) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	if s.config.MaxConnections > 0 && len(s.conns) >= s.config.MaxConnections {
		return nil, errTooManyConnections
	}
	wc := newWSConn(conn, s.config.SendBuffer)
	s.conns[wc] = struct{}{}
	return wc, nil
}

func (s *Server) dropConn(conn *wsConn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) snapshotConns() []*wsConn {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	out := make([]*wsConn, 0, len(s.conns))
	for conn := range s.conns {
		out = append(out, conn)
	}
	return out
}

// ConnectionCount returns the number of live event streams
func (s *Server) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

func (s *Server) closeAllConnections(reason string) {
	for _, conn := range s.snapshotConns() {
		conn.close(websocket.StatusGoingAway, reason)
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *wsConn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-conn.send:
			if !ok {
				return nil
			}
			writeCtx := ctx
			var cancel context.CancelFunc
			if s.config.WriteTimeout > 0 {
				writeCtx, cancel = context.WithTimeout(ctx, s.config.WriteTimeout)
			}
			err := conn.conn.Write(writeCtx, websocket.MessageText, msg)
			if cancel != nil {
				cancel()
			}
			if err != nil {
				return err
			}
		}
	}
}
