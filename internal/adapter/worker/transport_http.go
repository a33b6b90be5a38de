package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"food-router/internal/domain"
)

// Worker HTTP paths.
const (
	TasksPath = "/v1/tasks"
	CardPath  = "/.well-known/agent.json"
)

// Connection pool settings for a handful of long-lived worker hosts.
const (
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 32
	defaultIdleConnTimeout     = 90 * time.Second
	defaultDialTimeout         = 3 * time.Second
)

// NewPooledTransport returns an http.Transport tuned for worker calls.
// Per-call deadlines come from the request context, not the client.
func NewPooledTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        defaultMaxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// HTTPTransport speaks JSON over HTTP to one worker.
type HTTPTransport struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTransport creates a transport for endpoint. A nil client gets a
// pooled default.
func NewHTTPTransport(endpoint string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Transport: NewPooledTransport()}
	}
	return &HTTPTransport{endpoint: strings.TrimRight(endpoint, "/"), client: client}
}

// Send implements domain.Transport.
func (t *HTTPTransport) Send(ctx context.Context, req domain.WireRequest) (domain.WireResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.WireResponse{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+TasksPath, bytes.NewReader(body))
	if err != nil {
		return domain.WireResponse{}, fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	var resp domain.WireResponse
	if err := t.do(httpReq, &resp); err != nil {
		return domain.WireResponse{}, err
	}
	return resp, nil
}

// Card implements domain.Transport.
func (t *HTTPTransport) Card(ctx context.Context) (domain.AgentCard, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+CardPath, nil)
	if err != nil {
		return domain.AgentCard{}, fmt.Errorf("%w: build request: %v", domain.ErrTransport, err)
	}
	var card domain.AgentCard
	if err := t.do(httpReq, &card); err != nil {
		return domain.AgentCard{}, err
	}
	return card, nil
}

// do runs req and decodes a JSON body into out. 4xx bodies are decoded
// too, since workers report rejected requests as error replies.
func (t *HTTPTransport) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrTransport, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError || (resp.StatusCode >= 300 && resp.StatusCode < 400) {
		return fmt.Errorf("%w: %s %s: http %d", domain.ErrTransport, req.Method, req.URL.Path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: http %d: %v", domain.ErrMalformedResponse, resp.StatusCode, err)
	}
	return nil
}

// Close implements domain.Transport.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
