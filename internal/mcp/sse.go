package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/server"

	"n8n-mcp-bridge/internal/logging"
)

// Session is one streaming connection lifetime: a dedicated protocol
// server bound to one SSE event stream, identified by a session id.
type Session struct {
	ID string

	srv       *server.MCPServer
	events    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// deliver queues an outbound message for the event stream. Messages for a
// session that closed mid-flight are dropped, not blocked on.
func (s *Session) deliver(data []byte) bool {
	select {
	case s.events <- data:
		return true
	case <-s.done:
		return false
	}
}

// SessionManager is the sole owner of the SSE session table. Handlers run
// on arbitrary server goroutines, so the table is mutex-guarded.
type SessionManager struct {
	logger    *logging.Logger
	newServer func() *server.MCPServer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a SessionManager. newServer is called once per
// incoming connection to build that session's protocol server.
func NewSessionManager(newServer func() *server.MCPServer, logger *logging.Logger) *SessionManager {
	return &SessionManager{
		logger:    logger,
		newServer: newServer,
		sessions:  make(map[string]*Session),
	}
}

// Count returns the number of active sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) register() *Session {
	sess := &Session{
		ID:     uuid.New().String(),
		srv:    m.newServer(),
		events: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

func (m *SessionManager) unregister(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		sess.close()
	}
}

func (m *SessionManager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// anySession returns an arbitrary active session. Routing through it is
// only deterministic while a single session is open; callers log which
// session was picked.
func (m *SessionManager) anySession() (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.sessions {
		return sess, true
	}
	return nil, false
}

// HandleSSE implements GET /sse: registers a session, announces its message
// endpoint, then pumps outbound protocol messages until the client
// disconnects. There is no drain period; pending messages are dropped.
func (m *SessionManager) HandleSSE(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sess := m.register()
	defer m.unregister(sess.ID)
	m.logger.Info("SSE session %s opened (%d active)", sess.ID, m.Count())

	fmt.Fprintf(w, "event: endpoint\ndata: /messages?sessionId=%s\n\n", sess.ID)
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("SSE session %s closed", sess.ID)
			return nil
		case msg := <-sess.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			w.Flush()
		}
	}
}

// HandleMessage implements POST /messages: correlates the posted protocol
// message to a session and queues the response on that session's stream.
func (m *SessionManager) HandleMessage(c echo.Context) error {
	sessionID := c.QueryParam("sessionId")

	var sess *Session
	if sessionID != "" {
		found, ok := m.lookup(sessionID)
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found: " + sessionID})
		}
		sess = found
	} else {
		// Legacy clients omit the session id. With more than one session
		// open this routing is non-deterministic; kept for compatibility.
		found, ok := m.anySession()
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "no active sessions"})
		}
		m.logger.Warn("message without sessionId routed to session %s", found.ID)
		sess = found
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}

	if response := sess.srv.HandleMessage(c.Request().Context(), body); response != nil {
		data, err := json.Marshal(response)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to serialize response"})
		}
		if !sess.deliver(data) {
			m.logger.Warn("dropped response for closed session %s", sess.ID)
		}
	}

	return c.NoContent(http.StatusAccepted)
}
