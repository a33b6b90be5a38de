// Package workerpb holds the message types and service definition of the
// worker gRPC service.
//
// The types are hand-written Go structs carried by a JSON codec, so building
// needs no protoc step. Field names follow the HTTP wire format.
package workerpb

import "encoding/json"

// TaskRequest is the request for the Execute RPC.
type TaskRequest struct {
	Id     string          `json:"id"`
	Kind   string          `json:"kind"`
	Fields json.RawMessage `json:"fields,omitempty"`
}

// TaskResponse is the response from the Execute RPC. Status is "ok" or
// "error"; business failures travel here, not as RPC errors.
type TaskResponse struct {
	Id      string          `json:"id"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CardRequest is the request for the Card RPC.
type CardRequest struct{}

// CardResponse describes the worker.
type CardResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Version     string   `json:"version,omitempty"`
	Skills      []string `json:"skills"`
}
