package domain

import (
	"encoding/json"
	"fmt"
)

// FailureKind classifies why a SubTask did not succeed.
type FailureKind string

const (
	FailureTransport   FailureKind = "transport"
	FailureBusiness    FailureKind = "business"
	FailureTimeout     FailureKind = "timeout"
	FailureUnavailable FailureKind = "unavailable"
	FailureDependency  FailureKind = "dependency"
)

// ReasonTimeout is the fixed reason recorded for timed-out calls.
const ReasonTimeout = "timeout"

// Failure describes an unsuccessful worker outcome.
type Failure struct {
	Kind      FailureKind `json:"kind"`
	Reason    string      `json:"reason"`
	Retriable bool        `json:"retriable"`
}

// WorkerResult is the outcome of one SubTask: either a payload or a Failure.
type WorkerResult struct {
	Payload json.RawMessage `json:"payload,omitempty"`
	Failure *Failure        `json:"failure,omitempty"`
}

// Success builds a successful result.
func Success(payload json.RawMessage) WorkerResult {
	return WorkerResult{Payload: payload}
}

// Fail builds a failed result.
func Fail(kind FailureKind, reason string, retriable bool) WorkerResult {
	return WorkerResult{Failure: &Failure{Kind: kind, Reason: reason, Retriable: retriable}}
}

// TimeoutResult is the result recorded for a call that exceeded its deadline.
func TimeoutResult() WorkerResult {
	return Fail(FailureTimeout, ReasonTimeout, true)
}

// TransportResult is the result for a connection or protocol error.
func TransportResult(reason string) WorkerResult {
	return Fail(FailureTransport, reason, true)
}

// BusinessResult is the result for a well-formed failure reported by the worker.
func BusinessResult(reason string) WorkerResult {
	return Fail(FailureBusiness, reason, false)
}

// OK reports whether the result is a success.
func (r WorkerResult) OK() bool { return r.Failure == nil }

// Decode unmarshals a successful payload into v.
func (r WorkerResult) Decode(v any) error {
	if r.Failure != nil {
		return fmt.Errorf("decode payload: result is a failure: %s", r.Failure.Reason)
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("decode payload: %w", ErrMalformedResponse)
	}
	return json.Unmarshal(r.Payload, v)
}

// TaskOutcome pairs a SubTask with its resolved result.
type TaskOutcome struct {
	Task   SubTask
	Result WorkerResult
}

// CompositeAnswer is the single reply returned for an utterance.
type CompositeAnswer struct {
	Text          string
	Outcomes      []TaskOutcome
	FullyDegraded bool
	Clarification bool
}

// MenuItem is a dish as reported by the restaurant worker.
type MenuItem struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	PriceINR       float64 `json:"price_inr"`
	AvgPrepMinutes int     `json:"avg_prep_minutes"`
	IsAvailable    bool    `json:"is_available"`
}

// MenuPayload is the success payload of a menu_query.
type MenuPayload struct {
	RestaurantID   int64      `json:"restaurant_id"`
	RestaurantName string     `json:"restaurant_name"`
	Address        string     `json:"address"`
	Cuisine        string     `json:"cuisine,omitempty"`
	IsOpen         bool       `json:"is_open"`
	Items          []MenuItem `json:"items"`
}

// PrepTimePayload is the success payload of a prep_time_query.
type PrepTimePayload struct {
	RestaurantID         int64      `json:"restaurant_id"`
	RestaurantName       string     `json:"restaurant_name"`
	Address              string     `json:"address"`
	Items                []MenuItem `json:"items"`
	TotalPriceINR        float64    `json:"total_price_inr"`
	EstimatedPrepMinutes int        `json:"estimated_prep_minutes"`
	Notes                string     `json:"notes,omitempty"`
}

// EtaPayload is the success payload of an eta_query.
type EtaPayload struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	DistanceKM  float64 `json:"distance_km"`
	EtaMinutes  float64 `json:"eta_minutes"`
	Source      string  `json:"source,omitempty"`
}
