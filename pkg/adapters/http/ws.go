package http

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/runner"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = wsPongTimeout * 9 / 10
	wsMaxFrame     = 16 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Frame types of the websocket protocol.
const (
	FrameConnected = "connected"
	FrameMessage   = "message"
	FrameResponse  = "response"
	FrameError     = "error"
)

// ClientFrame is sent by websocket clients.
type ClientFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServerFrame is sent to websocket clients. Turn results are flattened into the frame.
type ServerFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Greeting  string `json:"greeting,omitempty"`
	Error     string `json:"error,omitempty"`
	*intake.Response
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(f ServerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(f)
}

// serveWebSocket runs one chat over a websocket. Without a session in the path a new
// conversation is started; with one the conversation is resumed or started under that id.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "session_id")

	var hello ServerFrame
	switch conv, err := s.lookup(r, sessionID); {
	case err == nil && conv != nil:
		greeting := lastAgentMessage(conv)
		hello = ServerFrame{Type: FrameConnected, SessionID: conv.SessionID, Greeting: greeting, Response: &intake.Response{
			SessionID:     conv.SessionID,
			Text:          greeting,
			Status:        conv.Status,
			Escalated:     conv.Escalation.Escalated,
			CollectedData: conv.CollectedData(),
		}}
	case sessionID == "" || errors.Is(err, domain.ErrSessionNotFound):
		var res intake.Response
		if sessionID == "" {
			res, err = s.agent.Start(ctx)
		} else {
			res, err = s.agent.StartWithID(ctx, sessionID)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		sessionID = res.SessionID
		hello = ServerFrame{Type: FrameConnected, SessionID: res.SessionID, Greeting: res.Text, Response: &res}
	default:
		s.writeError(w, err)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", "err", err)
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()
	s.logger.Debug("Websocket connected", "session_id", sessionID)

	raw.SetReadLimit(wsMaxFrame)
	_ = raw.SetReadDeadline(time.Now().Add(wsPongTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	if err := conn.send(hello); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		var frame ClientFrame
		if err := raw.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Websocket closed", "session_id", sessionID, "err", err)
			}
			return
		}
		if frame.Type != FrameMessage {
			_ = conn.send(ServerFrame{Type: FrameError, Error: "unknown frame type: " + frame.Type})
			continue
		}
		if s.limiter != nil && !s.limiter.Allow(sessionID) {
			_ = conn.send(ServerFrame{Type: FrameError, Error: "too many messages"})
			continue
		}

		res, err := s.send(ctx, sessionID, frame.Message)
		if err != nil {
			_ = conn.send(ServerFrame{Type: FrameError, Error: clientMessage(err)})
			continue
		}
		if err := conn.send(ServerFrame{Type: FrameResponse, SessionID: res.SessionID, Response: &res}); err != nil {
			return
		}
	}
}

func (s *Server) lookup(r *http.Request, sessionID string) (*domain.Conversation, error) {
	if sessionID == "" {
		return nil, nil
	}
	return s.agent.Get(r.Context(), sessionID)
}

func lastAgentMessage(conv *domain.Conversation) string {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == domain.RoleAgent {
			return conv.Messages[i].Content
		}
	}
	return ""
}

// clientMessage is the error text shown to websocket clients.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrConversationClosed):
		return "conversation is closed"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		return err.Error()
	}
	return "internal error"
}
