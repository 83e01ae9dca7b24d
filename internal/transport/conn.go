package transport

import (
	"sync"
	"time"

	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/gorilla/websocket"
)

type wsConn struct {
	ws     *websocket.Conn
	remote string
	cfg    Config

	send   chan []byte
	closed chan struct{}
	once   sync.Once
}

var _ Conn = (*wsConn)(nil)

func newConn(ws *websocket.Conn, cfg Config) *wsConn {
	ws.SetReadLimit(cfg.ReadLimit)
	return &wsConn{
		ws:     ws,
		remote: ws.RemoteAddr().String(),
		cfg:    cfg,
		send:   make(chan []byte, cfg.SendBuffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}

func (c *wsConn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		err = c.ws.Close()
	})
	return err
}

// writePump is the only writer of data frames on the socket.
func (c *wsConn) writePump() {
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logs.Debugf("transport.conn.write remote=%q err=%v", c.remote, err)
				_ = c.Close()
				return
			}
		}
	}
}

// readPump delivers frames until the socket fails, then reports OnClose once.
func (c *wsConn) readPump(h Handler) {
	defer func() {
		_ = c.Close()
		h.OnClose(c)
	}()
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logs.Debugf("transport.conn.read remote=%q err=%v", c.remote, err)
			}
			return
		}
		h.OnMessage(c, payload)
	}
}
