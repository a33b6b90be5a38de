package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventUtteranceReceived EventType = "utterance.received"
	EventSubTaskDispatched EventType = "subtask.dispatched"
	EventSubTaskCompleted  EventType = "subtask.completed"
	EventAnswerComposed    EventType = "answer.composed"
	EventSessionCreated    EventType = "session.created"
	EventSessionEvicted    EventType = "session.evicted"
	EventWorkerCardLoaded  EventType = "worker.card.loaded"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event)

// EventBus publishes and subscribes to domain events.
type EventBus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
	Close()
}

// SubTaskEventPayload is the payload of subtask.* events.
type SubTaskEventPayload struct {
	TaskID    string   `json:"task_id"`
	Kind      TaskKind `json:"kind"`
	Worker    WorkerID `json:"worker"`
	OK        bool     `json:"ok,omitempty"`
	Failure   *Failure `json:"failure,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms,omitempty"`
}

// AnswerEventPayload is the payload of answer.composed events.
type AnswerEventPayload struct {
	Tasks         int  `json:"tasks"`
	Failed        int  `json:"failed"`
	FullyDegraded bool `json:"fully_degraded"`
	Clarification bool `json:"clarification"`
}

// NewEvent builds an event, marshalling payload when non-nil.
func NewEvent(t EventType, sessionID string, payload any) Event {
	ev := Event{Type: t, Timestamp: time.Now(), SessionID: sessionID}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}
