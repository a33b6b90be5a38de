package rider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"food-router/internal/adapter/workerserver"
	"food-router/internal/domain"
	"food-router/internal/infra/config"
)

const etaSchema = `{
	"type": "object",
	"properties": {
		"origin": {"type": "string"},
		"destination": {"type": "string"}
	},
	"required": ["origin", "destination"]
}`

// NewEstimator builds the estimator named by cfg.Provider.
func NewEstimator(cfg config.RiderConfig, client *http.Client, logger *slog.Logger) (Estimator, error) {
	switch cfg.Provider {
	case "", "demo":
		return NewDemoEstimator(cfg.DemoSpeedKMH), nil
	case "google":
		if cfg.MapsAPIKey == "" {
			return nil, fmt.Errorf("rider provider google: %w: maps_api_key is not set", domain.ErrInvalidInput)
		}
		return NewRoutesClient(cfg, client, logger), nil
	default:
		return nil, fmt.Errorf("rider provider %q: %w", cfg.Provider, domain.ErrInvalidInput)
	}
}

// Service implements the rider worker's eta_query skill.
type Service struct {
	est    Estimator
	logger *slog.Logger
}

// NewService creates a Service over est.
func NewService(est Estimator, logger *slog.Logger) *Service {
	return &Service{est: est, logger: logger}
}

// Skills returns the eta_query skill.
func (s *Service) Skills() []workerserver.Skill {
	return []workerserver.Skill{{
		Kind:        domain.KindETA,
		Description: "Compute driving distance and travel time between a restaurant and a delivery address.",
		Schema:      json.RawMessage(etaSchema),
		Handle:      s.handleETA,
	}}
}

func (s *Service) handleETA(ctx context.Context, fields map[string]any) (any, error) {
	origin, _ := fields["origin"].(string)
	destination, _ := fields["destination"].(string)
	return s.ETA(ctx, origin, destination)
}

// ETA answers an eta_query.
func (s *Service) ETA(ctx context.Context, origin, destination string) (domain.EtaPayload, error) {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		return domain.EtaPayload{}, workerserver.Business("rider.ETA", "origin and destination are required")
	}
	out, err := s.est.Estimate(ctx, origin, destination)
	if err != nil {
		return domain.EtaPayload{}, err
	}
	s.logger.Debug("eta computed",
		"origin", origin, "destination", destination,
		"distance_km", out.DistanceKM, "eta_minutes", out.EtaMinutes, "source", out.Source)
	return out, nil
}

// Tools returns get_directions, the MCP tool for ad-hoc route lookups.
func (s *Service) Tools() []server.ServerTool {
	return []server.ServerTool{{
		Tool: mcp.NewTool("get_directions",
			mcp.WithDescription("Get driving distance and duration between two addresses or \"lat,lng\" pairs."),
			mcp.WithString("origin", mcp.Required(), mcp.Description("Start address.")),
			mcp.WithString("destination", mcp.Required(), mcp.Description("End address.")),
		),
		Handler: s.directionsTool,
	}}
}

func (s *Service) directionsTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	origin, _ := args["origin"].(string)
	destination, _ := args["destination"].(string)
	out, err := s.ETA(ctx, origin, destination)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) && de.Detail != "" {
			return mcp.NewToolResultError(de.Detail), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return workerserver.JSONResult(map[string]any{
		"origin":           out.Origin,
		"destination":      out.Destination,
		"distance_meters":  int(math.Round(out.DistanceKM * 1000)),
		"distance_km":      out.DistanceKM,
		"duration_seconds": math.Round(out.EtaMinutes * 60),
		"eta_minutes":      out.EtaMinutes,
		"source":           out.Source,
	})
}
