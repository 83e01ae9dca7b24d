package transport

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Dial connects to a websocket url and reports the connection to h.
// OnOpen runs before Dial returns.
func Dial(ctx context.Context, url string, h Handler, cfg Config) (Conn, error) {
	cfg = cfg.WithDefaults()
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := newConn(ws, cfg)
	go c.writePump()
	h.OnOpen(c)
	go c.readPump(h)
	return c, nil
}
