package streamws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowscript-dev/flowscript/internal/eventbus"
	"github.com/flowscript-dev/flowscript/internal/manager"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Server upgrades authenticated HTTP requests into a per-execution
// event stream.
type Server struct {
	Manager  *manager.Manager
	Auth     Authenticator
	Logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds a Server; auth defaults to NoAuth when nil.
func NewServer(mgr *manager.Manager, auth Authenticator, logger zerolog.Logger) *Server {
	if auth == nil {
		auth = NewNoAuth()
	}
	return &Server{
		Manager: mgr,
		Auth:    auth,
		Logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP authenticates the request, resolves the "executionId"
// query parameter, and upgrades the connection; one connection streams
// exactly one execution's events (spec §6's subscribeEvents surface).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject, err := s.Auth.Authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	executionID := r.URL.Query().Get("executionId")
	if executionID == "" {
		http.Error(w, "executionId query parameter is required", http.StatusBadRequest)
		return
	}

	sub, err := s.Manager.Subscribe(executionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("streamws: upgrade failed")
		return
	}

	c := &connection{
		server:      s,
		conn:        conn,
		sub:         sub,
		executionID: executionID,
		subject:     subject,
	}
	go c.writePump()
	c.readPump()
}

// connection is one upgraded client: a read loop that accepts
// "cancel" commands and a write loop that forwards bus events,
// mirroring the teacher's Client.readPump/writePump split
// (internal/infrastructure/websocket/client.go) so slow readers never
// block the bus and disconnects are detected via ping/pong.
type connection struct {
	server      *Server
	conn        *websocket.Conn
	sub         *eventbus.Subscriber
	executionID string
	subject     string
}

func (c *connection) readPump() {
	defer func() {
		_ = c.server.Manager.Unsubscribe(c.executionID, c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.writeResponse(response{Type: "error", Error: "invalid command format"})
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *connection) handleCommand(cmd command) {
	switch cmd.Action {
	case "cancel":
		if err := c.server.Manager.Cancel(c.executionID); err != nil {
			c.writeResponse(response{Type: "cancel", Error: err.Error()})
			return
		}
		c.writeResponse(response{Type: "cancel", Success: true})
	default:
		c.writeResponse(response{Type: "error", Error: "unknown action: " + cmd.Action})
	}
}

func (c *connection) writeResponse(resp response) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteJSON(resp)
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.sub.Events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(toWireEvent(event)); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
