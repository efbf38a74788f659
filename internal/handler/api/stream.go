package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	xhttp "FinCast/pkg/http"
	xlogger "FinCast/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 16
)

// RunEvent is what subscribers of /ws/runs receive.
type RunEvent struct {
	Type string            `json:"type"`
	Run  models.RunSummary `json:"run"`
}

// RunStream pushes finished-run summaries to websocket subscribers.
// Slow subscribers are dropped rather than allowed to block a run.
type RunStream struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

func NewRunStream(logger *xlogger.Logger) *RunStream {
	return &RunStream{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*subscriber]struct{}),
	}
}

func (s *RunStream) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/runs", s.Serve)
}

// Serve upgrades the request and blocks until the subscriber goes away.
func (s *RunStream) Serve(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		s.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	s.clients[sub] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.logger.Debug("run stream subscriber joined", xlogger.Int("subscribers", n))

	go s.writePump(sub)
	s.readPump(sub)
	return nil
}

// Notify implements RunNotifier.
func (s *RunStream) Notify(_ context.Context, run models.RunSummary) {
	b, err := json.Marshal(RunEvent{Type: "run_completed", Run: run})
	if err != nil {
		s.logger.Error("encode run event failed", xlogger.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.clients {
		select {
		case sub.send <- b:
		default:
			delete(s.clients, sub)
			sub.close()
			s.logger.Warn("dropping slow run stream subscriber")
		}
	}
}

// Subscribers returns the current subscriber count.
func (s *RunStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (s *RunStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.clients {
		delete(s.clients, sub)
		sub.close()
	}
}

func (s *RunStream) remove(sub *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[sub]; ok {
		delete(s.clients, sub)
		sub.close()
	}
}

// readPump only services control frames; clients never send data.
func (s *RunStream) readPump(sub *subscriber) {
	defer s.remove(sub)
	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *RunStream) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var (
	_ domrepo.RunNotifier = (*RunStream)(nil)
	_ xhttp.Handler       = (*RunStream)(nil)
)
