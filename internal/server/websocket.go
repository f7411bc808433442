package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/guidance"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/text/language"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketControl is a text frame sent by the client.
type WebSocketControl struct {
	Type string `json:"type"`
}

// WebSocketResponse is every JSON frame sent to the client.
type WebSocketResponse struct {
	Type      string           `json:"type"` // "result", "error", "pong"
	RequestID string           `json:"request_id,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Guidance  *guidance.Entry  `json:"guidance,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
}

// classifyWebSocketHandler upgrades to a websocket that classifies every
// binary frame it receives.
func (s *Server) classifyWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr, "request_id", RequestIDFrom(r.Context()))
	s.handleWebSocketConnection(conn, s.negotiate(r))
}

// handleWebSocketConnection processes messages until the client disconnects.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn, lang language.Tag) {
	conn.SetReadLimit(s.maxUploadMB * bytesPerMB)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

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
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				slog.Warn("WebSocket frame exceeds upload limit", "limit_mb", s.maxUploadMB)
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.BinaryMessage:
			s.handleWebSocketImage(conn, data, lang)
		case websocket.TextMessage:
			s.handleWebSocketText(conn, data)
		}
	}
}

// handleWebSocketImage classifies one binary frame.
func (s *Server) handleWebSocketImage(conn WebSocketConnWriter, data []byte, lang language.Tag) {
	requestID := uuid.NewString()
	ctx := contextWithRequestID(requestID)

	res, _, err := s.classify(ctx, data, "websocket")
	if err != nil {
		s.sendWebSocketResponse(conn, WebSocketResponse{
			Type:      "error",
			RequestID: requestID,
			Error:     err.Error(),
			ErrorType: "processing_error",
		})
		return
	}

	entry := guidance.For(res.Decision, lang)
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "result",
		RequestID: requestID,
		Result:    res,
		Guidance:  &entry,
	})
}

// handleWebSocketText answers control frames.
func (s *Server) handleWebSocketText(conn WebSocketConnWriter, data []byte) {
	var msg WebSocketControl
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendWebSocketError(conn, "invalid_request", "Failed to parse message: "+err.Error())
		return
	}
	switch msg.Type {
	case "ping":
		s.sendWebSocketResponse(conn, WebSocketResponse{Type: "pong"})
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported message type: "+msg.Type)
	}
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketResponse{
		Type:      "error",
		Error:     message,
		ErrorType: errorType,
	})
}
