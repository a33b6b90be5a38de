package domain

import (
	"strings"
	"time"
)

// WorkerID identifies a remote worker agent.
type WorkerID string

const (
	WorkerRestaurant WorkerID = "restaurant"
	WorkerRider      WorkerID = "rider"
)

// TaskKind names the unit of work a SubTask asks a worker to perform.
type TaskKind string

const (
	KindMenu     TaskKind = "menu_query"
	KindPrepTime TaskKind = "prep_time_query"
	KindETA      TaskKind = "eta_query"
)

// AllKinds lists every task kind in presentation order.
var AllKinds = []TaskKind{KindMenu, KindPrepTime, KindETA}

// Rank returns the fixed presentation position of the kind:
// menu before prep time before ETA. Unknown kinds sort last.
func (k TaskKind) Rank() int {
	switch k {
	case KindMenu:
		return 0
	case KindPrepTime:
		return 1
	case KindETA:
		return 2
	default:
		return 3
	}
}

// Valid reports whether k is a known task kind.
func (k TaskKind) Valid() bool {
	return k.Rank() < 3
}

// Label is the human phrase used when talking about the kind.
func (k TaskKind) Label() string {
	switch k {
	case KindMenu:
		return "the menu"
	case KindPrepTime:
		return "the price and kitchen prep time"
	case KindETA:
		return "the delivery ETA"
	default:
		return string(k)
	}
}

// Utterance is one raw user message bound to a session.
type Utterance struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Query is the typed body of a SubTask.
type Query interface {
	Kind() TaskKind
	// Fields returns the wire representation sent to the worker.
	Fields() map[string]any
}

// MenuQuery asks the restaurant worker for a restaurant's menu.
type MenuQuery struct {
	Restaurant string
}

func (MenuQuery) Kind() TaskKind { return KindMenu }

func (q MenuQuery) Fields() map[string]any {
	return map[string]any{"restaurant": q.Restaurant}
}

// PrepTimeQuery asks the restaurant worker to price items and estimate
// kitchen preparation time. An empty Items list asks for the baseline.
type PrepTimeQuery struct {
	Restaurant string
	Items      []string
}

func (PrepTimeQuery) Kind() TaskKind { return KindPrepTime }

func (q PrepTimeQuery) Fields() map[string]any {
	items := make([]any, len(q.Items))
	for i, it := range q.Items {
		items[i] = it
	}
	return map[string]any{"restaurant": q.Restaurant, "items": items}
}

// EtaQuery asks the rider worker for a delivery estimate between two addresses.
type EtaQuery struct {
	Origin      string
	Destination string
}

func (EtaQuery) Kind() TaskKind { return KindETA }

func (q EtaQuery) Fields() map[string]any {
	return map[string]any{"origin": q.Origin, "destination": q.Destination}
}

// SubTask is one unit of work destined for exactly one worker.
type SubTask struct {
	ID     string
	Worker WorkerID
	Query  Query
	// DependsOn is the ID of a prerequisite SubTask whose result must be
	// known before this one can be dispatched. Empty for independent tasks.
	DependsOn string
}

// Kind returns the kind of the task's query.
func (t SubTask) Kind() TaskKind {
	if t.Query == nil {
		return ""
	}
	return t.Query.Kind()
}

// Describe returns a short log-friendly description.
func (t SubTask) Describe() string {
	var b strings.Builder
	b.WriteString(t.ID)
	b.WriteByte(':')
	b.WriteString(string(t.Kind()))
	b.WriteString("->")
	b.WriteString(string(t.Worker))
	if t.DependsOn != "" {
		b.WriteString(" after ")
		b.WriteString(t.DependsOn)
	}
	return b.String()
}
