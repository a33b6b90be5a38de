package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"food-router/internal/domain"
	"food-router/internal/infra/config"
)

// fakeAgent echoes utterances and records them per session.
type fakeAgent struct {
	mu    sync.Mutex
	turns map[string][]domain.Turn
	err   error
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{turns: make(map[string][]domain.Turn)}
}

func (a *fakeAgent) Handle(_ context.Context, utt domain.Utterance) (domain.CompositeAnswer, error) {
	if a.err != nil {
		return domain.CompositeAnswer{}, a.err
	}
	if strings.TrimSpace(utt.Text) == "" {
		return domain.CompositeAnswer{}, domain.NewDomainError("fake", domain.ErrInvalidInput, "empty utterance")
	}
	ans := domain.CompositeAnswer{Text: "echo: " + utt.Text, FullyDegraded: strings.Contains(utt.Text, "broken")}
	a.mu.Lock()
	a.turns[utt.SessionID] = append(a.turns[utt.SessionID], domain.Turn{Utterance: utt, Answer: ans.Text, Degraded: ans.FullyDegraded, At: utt.ReceivedAt})
	a.mu.Unlock()
	return ans, nil
}

func (a *fakeAgent) History(key string) ([]domain.Turn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	turns, ok := a.turns[key]
	if !ok {
		return nil, domain.NewDomainError("fake", domain.ErrSessionNotFound, key)
	}
	return turns, nil
}

func newTestServer(t *testing.T, agent Agent, cfg config.GatewayConfig, health Health) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := NewHTTPServer(cfg, agent, health, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(s.Handler(ctx))
	t.Cleanup(srv.Close)
	return srv
}

func postChat(t *testing.T, url, body string) (int, chatResponse) {
	t.Helper()
	resp, err := http.Post(url+"/api/v1/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeAgent(), config.GatewayConfig{}, Health{})

	status, out := postChat(t, srv.URL, `{"session_id":"s1","text":"menu at Joe's Pizza"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, "echo: menu at Joe's Pizza", out.Text)
	assert.False(t, out.Degraded)

	status, out = postChat(t, srv.URL, `{"text":"broken"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, strings.HasPrefix(out.SessionID, "http-"))
	assert.True(t, out.Degraded)

	status, out = postChat(t, srv.URL, `{"session_id":"s1","text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "text is required", out.Error)
	assert.Equal(t, domain.CodeInvalidInput, out.Code)

	status, out = postChat(t, srv.URL, `{"text":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, out.Error, "invalid JSON")
	assert.Equal(t, domain.CodeInvalidInput, out.Code)
}

func TestChatEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   domain.ErrorCode
	}{
		{"busy", domain.NewDomainError("acquire", domain.ErrSessionBusy, "s1"), http.StatusConflict, domain.CodeSessionBusy},
		{"cancelled", context.DeadlineExceeded, http.StatusServiceUnavailable, domain.CodeUnknown},
		{"internal", io.ErrUnexpectedEOF, http.StatusInternalServerError, domain.CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := newFakeAgent()
			agent.err = tt.err
			srv := newTestServer(t, agent, config.GatewayConfig{}, Health{})
			status, out := postChat(t, srv.URL, `{"session_id":"s1","text":"hi"}`)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, out.Error)
			assert.NotContains(t, out.Error, "EOF")
			assert.Equal(t, tt.code, out.Code)
		})
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t, newFakeAgent(), config.GatewayConfig{}, Health{})
	postChat(t, srv.URL, `{"session_id":"s9","text":"first"}`)
	postChat(t, srv.URL, `{"session_id":"s9","text":"second"}`)

	resp, err := http.Get(srv.URL + "/api/v1/sessions/s9/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		SessionID string        `json:"session_id"`
		Turns     []domain.Turn `json:"turns"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Turns, 2)
	assert.Equal(t, "second", body.Turns[1].Utterance.Text)

	missing, err := http.Get(srv.URL + "/api/v1/sessions/nope/history")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	var errBody map[string]string
	require.NoError(t, json.NewDecoder(missing.Body).Decode(&errBody))
	assert.Equal(t, string(domain.CodeSessionNotFound), errBody["code"])
}

func TestHealthEndpoint(t *testing.T) {
	states := map[string]string{"restaurant": "closed", "rider": "closed"}
	live, active := 3, 1
	srv := newTestServer(t, newFakeAgent(), config.GatewayConfig{}, Health{
		Workers:  func() map[string]string { return states },
		Sessions: func() (int, int) { return live, active },
	})

	get := func() map[string]any {
		resp, err := http.Get(srv.URL + "/api/v1/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}
	body := get()
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, map[string]any{"live": float64(3), "active": float64(1)}, body["sessions"])

	states = map[string]string{"restaurant": "closed", "rider": "open"}
	body = get()
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, map[string]any{"restaurant": "closed", "rider": "open"}, body["workers"])

	bare := newTestServer(t, newFakeAgent(), config.GatewayConfig{}, Health{})
	resp, err := http.Get(bare.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var minimal map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&minimal))
	assert.Equal(t, map[string]any{"status": "ok"}, minimal)
}

func TestRateLimitedChat(t *testing.T) {
	srv := newTestServer(t, newFakeAgent(), config.GatewayConfig{
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.01, Burst: 2},
	}, Health{})

	codes := make([]int, 0, 3)
	for range 3 {
		resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json", strings.NewReader(`{"session_id":"r","text":"hi"}`))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestWebSocketConversation(t *testing.T) {
	agent := newFakeAgent()
	srv := newTestServer(t, agent, config.GatewayConfig{WebSocket: true}, Health{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws?session_id=w1", nil)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "")

	for _, text := range []string{"menu at Spice Hub", "and the ETA?"} {
		require.NoError(t, wsjson.Write(ctx, ws, chatRequest{SessionID: "ignored", Text: text}))
		var out chatResponse
		require.NoError(t, wsjson.Read(ctx, ws, &out))
		assert.Equal(t, "w1", out.SessionID)
		assert.Equal(t, "echo: "+text, out.Text)
	}

	require.NoError(t, wsjson.Write(ctx, ws, chatRequest{Text: ""}))
	var out chatResponse
	require.NoError(t, wsjson.Read(ctx, ws, &out))
	assert.Equal(t, "text is required", out.Error)

	turns, err := agent.History("w1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestWebSocketDisabled(t *testing.T) {
	srv := newTestServer(t, newFakeAgent(), config.GatewayConfig{}, Health{})
	resp, err := http.Get(srv.URL + "/api/v1/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestREPL(t *testing.T) {
	agent := newFakeAgent()
	in := strings.NewReader("menu at Joe's Pizza\n\n/history\n/quit\nnever read\n")
	var out bytes.Buffer

	require.NoError(t, RunREPL(context.Background(), agent, "cli", in, &out))

	got := out.String()
	assert.Contains(t, got, "echo: menu at Joe's Pizza")
	assert.Contains(t, got, "you: menu at Joe's Pizza")
	assert.NotContains(t, got, "never read")

	turns, err := agent.History("cli")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestREPLReportsErrors(t *testing.T) {
	agent := newFakeAgent()
	agent.err = domain.NewDomainError("acquire", domain.ErrSessionBusy, "cli")
	var out bytes.Buffer

	require.NoError(t, RunREPL(context.Background(), agent, "cli", strings.NewReader("hi\n/history\n"), &out))
	assert.Contains(t, out.String(), "error: this conversation is still answering a previous message")
	assert.Contains(t, out.String(), "(no history yet)")
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	s := NewHTTPServer(config.GatewayConfig{}, newFakeAgent(), Health{},
		slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	rec := httptest.NewRecorder()
	s.writeJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "write response failed")
}
