package channel

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// handleWS carries one conversation per connection. Frames use the chat
// request and response shapes; the session id comes from the query string
// or is generated on connect.
func (s *HTTPServer) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusInternalError, "")

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "ws-" + uuid.NewString()
	}
	s.logger.Info("chat websocket connected", "session_key", sessionID)

	ctx := r.Context()
	for {
		var req chatRequest
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				ws.Close(websocket.StatusNormalClosure, "")
			}
			s.logger.Info("chat websocket disconnected", "session_key", sessionID)
			return
		}
		req.SessionID = sessionID

		resp, _ := s.answer(ctx, req)
		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err := wsjson.Write(wctx, ws, resp)
		cancel()
		if err != nil {
			s.logger.Warn("websocket write failed", "session_key", sessionID, "error", err)
			return
		}
	}
}
