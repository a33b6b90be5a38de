// Package channel holds the chat front ends that feed utterances to the
// RoutingAgent: an HTTP API with an optional WebSocket stream, and a
// line-oriented REPL.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"food-router/internal/domain"
	"food-router/internal/infra/config"
	"food-router/internal/infra/middleware"
)

const (
	maxChatBody     = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Agent is the part of the RoutingAgent the front ends use.
type Agent interface {
	Handle(ctx context.Context, utt domain.Utterance) (domain.CompositeAnswer, error)
	History(sessionKey string) ([]domain.Turn, error)
}

// WorkerStatus reports each worker's circuit breaker state for /health.
type WorkerStatus func() map[string]string

// SessionStats reports the live session count and how many of those have
// a request in flight or queued.
type SessionStats func() (live, active int)

// Health supplies the runtime state reported by /health. Nil fields are
// left out of the response.
type Health struct {
	Workers  WorkerStatus
	Sessions SessionStats
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type chatResponse struct {
	SessionID     string           `json:"session_id"`
	Text          string           `json:"text,omitempty"`
	Degraded      bool             `json:"degraded"`
	Clarification bool             `json:"clarification,omitempty"`
	Error         string           `json:"error,omitempty"`
	Code          domain.ErrorCode `json:"code,omitempty"`
}

// HTTPServer is the chat API.
type HTTPServer struct {
	cfg    config.GatewayConfig
	agent  Agent
	health Health
	logger *slog.Logger

	boundAddr string
}

// NewHTTPServer creates the chat API.
func NewHTTPServer(cfg config.GatewayConfig, agent Agent, health Health, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{cfg: cfg, agent: agent, health: health, logger: logger}
}

// Handler returns the routed and middleware-wrapped API. ctx bounds the
// rate limiter's cleanup goroutine.
func (s *HTTPServer) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", s.handleChat)
	mux.HandleFunc("GET /api/v1/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	if s.cfg.WebSocket {
		mux.HandleFunc("GET /api/v1/ws", s.handleWS)
	}

	mws := []func(http.Handler) http.Handler{
		middleware.RequestLogger(s.logger),
		middleware.SecurityHeaders,
	}
	if rl := s.cfg.RateLimit; rl.Enabled {
		mws = append(mws, middleware.RateLimit(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		}))
	}
	return middleware.Chain(mux, mws...)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.boundAddr = ln.Addr().String()

	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("chat api listening", "addr", s.boundAddr, "websocket", s.cfg.WebSocket)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("chat api serve: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// BoundAddr returns the listening address once Start is running.
func (s *HTTPServer) BoundAddr() string { return s.boundAddr }

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "invalid JSON: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large (max 1MB)"
		}
		s.writeJSON(w, http.StatusBadRequest, chatResponse{Error: msg, Code: domain.CodeInvalidInput})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "http-" + uuid.NewString()
	}

	resp, status := s.answer(r.Context(), req)
	s.writeJSON(w, status, resp)
}

// answer runs one utterance and maps errors onto HTTP statuses.
func (s *HTTPServer) answer(ctx context.Context, req chatRequest) (chatResponse, int) {
	ans, err := s.agent.Handle(ctx, domain.Utterance{SessionID: req.SessionID, Text: req.Text, ReceivedAt: time.Now()})
	if err != nil {
		return chatResponse{SessionID: req.SessionID, Error: publicError(err), Code: domain.ErrorCodeOf(err)}, errorStatus(err)
	}
	return chatResponse{
		SessionID:     req.SessionID,
		Text:          ans.Text,
		Degraded:      ans.FullyDegraded,
		Clarification: ans.Clarification,
	}, http.StatusOK
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.agent.History(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, errorStatus(err), map[string]any{"error": publicError(err), "code": domain.ErrorCodeOf(err)})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": r.PathValue("id"), "turns": turns})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.health.Sessions != nil {
		live, active := s.health.Sessions()
		body["sessions"] = map[string]int{"live": live, "active": active}
	}
	if s.health.Workers != nil {
		states := s.health.Workers()
		body["workers"] = states
		for _, st := range states {
			if st == "open" {
				body["status"] = "degraded"
			}
		}
	}
	s.writeJSON(w, http.StatusOK, body)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func publicError(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "text is required"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, domain.ErrSessionBusy):
		return "this conversation is still answering a previous message"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return "internal error"
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response failed", "status", status, "error", err)
	}
}
