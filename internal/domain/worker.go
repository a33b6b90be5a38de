package domain

import (
	"context"
	"encoding/json"
)

// Wire status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WireRequest is the logical request sent to a worker agent.
type WireRequest struct {
	ID     string         `json:"id"`
	Kind   TaskKind       `json:"kind"`
	Fields map[string]any `json:"fields"`
}

// WireResponse is the logical reply from a worker agent.
// Status is "ok" with a Payload, or "error" with an Error message.
type WireResponse struct {
	ID      string          `json:"id,omitempty"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// AgentCard is a worker's self-description.
type AgentCard struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	Skills      []TaskKind `json:"skills"`
}

// Supports reports whether the card advertises kind.
func (c AgentCard) Supports(kind TaskKind) bool {
	for _, k := range c.Skills {
		if k == kind {
			return true
		}
	}
	return false
}

// Transport carries WireRequests to one remote worker.
// A returned error means the exchange itself failed; a worker-reported
// failure comes back as a response with StatusError.
type Transport interface {
	Send(ctx context.Context, req WireRequest) (WireResponse, error)
	Card(ctx context.Context) (AgentCard, error)
	Close() error
}

// Executor runs a WireRequest locally on the worker side. Business
// failures come back as StatusError responses; a returned error means the
// worker itself is broken and the caller should treat it as a transport fault.
type Executor interface {
	Execute(ctx context.Context, req WireRequest) (WireResponse, error)
	Card() AgentCard
}
