package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codewithayuu/kira-chan-sub000/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The chat UI may be served from another origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatRequest is one inbound message on the chat socket.
type chatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// errorFrame is sent for rejected input; generation failures never
// surface here, they arrive as normal token frames.
type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleChat upgrades to WebSocket and serves turns until the client
// disconnects. Each inbound message produces a control frame, token
// frames, and a done frame, all as JSON.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("chat socket closed", "error", err)
			}
			return
		}
		if req.UserID == "" {
			req.UserID = r.RemoteAddr
		}

		frames, err := s.orchestrator.Respond(r.Context(), req.UserID, req.Text)
		if err != nil {
			reason := "invalid input"
			if errors.Is(err, pipeline.ErrEmptyInput) {
				reason = "say something first"
			} else if errors.Is(err, pipeline.ErrInputTooLong) {
				reason = "that message is too long"
			}
			if err := conn.WriteJSON(errorFrame{Type: "error", Error: reason}); err != nil {
				return
			}
			continue
		}

		for f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				s.logger.Debug("chat write failed", "error", err)
				// Drain so the pipeline's learn phase still runs.
				for range frames {
				}
				return
			}
		}
	}
}

// handleEvents streams the operational event feed. Read-only; inbound
// messages are discarded to service pings.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if s.bus == nil {
		return
	}
	ch := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(ch)

	// Reader goroutine notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
