// Package workerserver hosts worker skills behind the HTTP, gRPC and MCP
// transports the orchestrator speaks.
package workerserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kaptinlin/jsonschema"

	"food-router/internal/domain"
	"food-router/internal/infra/tracer"
)

// HandlerFunc runs one skill. Returning an error wrapping
// domain.ErrWorkerBusiness (or a DomainError around it) reports a business
// failure to the caller; any other error is an internal fault.
type HandlerFunc func(ctx context.Context, fields map[string]any) (any, error)

// Skill is one task kind a worker serves.
type Skill struct {
	Kind        domain.TaskKind
	Description string
	// Schema is a JSON Schema for the request fields.
	Schema json.RawMessage
	Handle HandlerFunc
}

type registeredSkill struct {
	Skill
	schema *jsonschema.Schema
}

// Registry holds a worker's skills and implements domain.Executor.
type Registry struct {
	mu     sync.RWMutex
	card   domain.AgentCard
	skills map[domain.TaskKind]*registeredSkill
	order  []domain.TaskKind
	logger *slog.Logger
}

// NewRegistry creates an empty registry for the named worker.
func NewRegistry(name, description, version string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		card:   domain.AgentCard{Name: name, Description: description, Version: version},
		skills: make(map[domain.TaskKind]*registeredSkill),
		logger: logger,
	}
}

// Register adds a skill, compiling its field schema.
func (r *Registry) Register(s Skill) error {
	if s.Kind == "" || s.Handle == nil {
		return fmt.Errorf("register skill: %w: kind and handler are required", domain.ErrInvalidInput)
	}
	rs := &registeredSkill{Skill: s}
	if len(s.Schema) > 0 {
		compiled, err := jsonschema.NewCompiler().Compile(s.Schema)
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", s.Kind, err)
		}
		rs.schema = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.skills[s.Kind]; dup {
		return fmt.Errorf("register skill: %s already registered", s.Kind)
	}
	r.skills[s.Kind] = rs
	r.order = append(r.order, s.Kind)
	return nil
}

// Skills returns the registered skills in registration order.
func (r *Registry) Skills() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Skill, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.skills[k].Skill)
	}
	return out
}

// Card implements domain.Executor.
func (r *Registry) Card() domain.AgentCard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	card := r.card
	card.Skills = append([]domain.TaskKind(nil), r.order...)
	return card
}

// Execute implements domain.Executor.
func (r *Registry) Execute(ctx context.Context, req domain.WireRequest) (domain.WireResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "worker.execute")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("worker", r.card.Name),
		tracer.StringAttr("request.id", req.ID),
		tracer.StringAttr("task.kind", string(req.Kind)),
	)
	start := time.Now()

	resp, err := r.execute(ctx, req)
	switch {
	case err != nil:
		tracer.RecordError(span, err)
		r.logger.Error("skill failed", "kind", string(req.Kind), "request_id", req.ID, "error", err)
	case resp.Status == domain.StatusError:
		tracer.RecordFailure(span, string(domain.FailureBusiness), resp.Error)
		r.logger.Info("skill rejected request",
			"kind", string(req.Kind), "request_id", req.ID, "reason", resp.Error, "elapsed", time.Since(start))
	default:
		tracer.SetOK(span)
		r.logger.Debug("skill executed", "kind", string(req.Kind), "request_id", req.ID, "elapsed", time.Since(start))
	}
	return resp, err
}

func (r *Registry) execute(ctx context.Context, req domain.WireRequest) (domain.WireResponse, error) {
	r.mu.RLock()
	s, ok := r.skills[req.Kind]
	r.mu.RUnlock()
	if !ok {
		return errorReply(req, fmt.Sprintf("%s: %s", domain.ErrUnknownSkill, req.Kind)), nil
	}

	fields := req.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	if s.schema != nil {
		if result := s.schema.Validate(fields); !result.IsValid() {
			return errorReply(req, fmt.Sprintf("invalid fields for %s: %s", req.Kind, result.Error())), nil
		}
	}

	out, err := s.Handle(ctx, fields)
	if err != nil {
		if errors.Is(err, domain.ErrWorkerBusiness) {
			return errorReply(req, businessMessage(err)), nil
		}
		return domain.WireResponse{}, err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return domain.WireResponse{}, fmt.Errorf("encode %s payload: %w", req.Kind, err)
	}
	return domain.WireResponse{ID: req.ID, Status: domain.StatusOK, Payload: payload}, nil
}

func errorReply(req domain.WireRequest, msg string) domain.WireResponse {
	return domain.WireResponse{ID: req.ID, Status: domain.StatusError, Error: msg}
}

func businessMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}

// Business returns an error the registry reports to callers as a business
// failure with msg as the reason.
func Business(op, msg string) error {
	return domain.NewDomainError(op, domain.ErrWorkerBusiness, msg)
}

// Businessf is Business with formatting.
func Businessf(op, format string, args ...any) error {
	return Business(op, fmt.Sprintf(format, args...))
}

var _ domain.Executor = (*Registry)(nil)
