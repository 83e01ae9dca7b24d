package transport

import (
	"net/http"
	"sync"

	logs "github.com/danmuck/netsync/internal/logging"
	"github.com/gorilla/websocket"
)

// Server upgrades HTTP requests to websocket connections and reports them to a Handler.
type Server struct {
	cfg      Config
	handler  Handler
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*wsConn]struct{}
	closed bool
}

var _ http.Handler = (*Server)(nil)

func NewServer(h Handler, cfg Config) *Server {
	cfg = cfg.WithDefaults()
	return &Server{
		cfg:     cfg,
		handler: h,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		conns: make(map[*wsConn]struct{}),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Warnf("transport.Server.upgrade remote=%q err=%v", r.RemoteAddr, err)
		return
	}
	c := newConn(ws, s.cfg)
	if !s.track(c) {
		_ = c.Close()
		return
	}
	go c.writePump()
	s.handler.OnOpen(c)
	go func() {
		c.readPump(s.handler)
		s.untrack(c)
	}()
}

// Active returns the number of connections whose read pump is still running.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close refuses new upgrades and closes every live connection.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

func (s *Server) track(c *wsConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}
