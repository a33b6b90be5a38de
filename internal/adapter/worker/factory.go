package worker

import (
	"context"
	"fmt"
	"log/slog"

	"food-router/internal/domain"
	"food-router/internal/infra/config"
)

// Dial builds the transport named by cfg and wraps it in a Client.
func Dial(ctx context.Context, cfg config.WorkerConfig, logger *slog.Logger) (*Client, error) {
	t, err := dialTransport(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("worker %q: %w", cfg.Name, err)
	}
	return NewClient(domain.WorkerID(cfg.Name), t, Options{
		MaxConcurrent:  cfg.MaxConcurrent,
		CircuitBreaker: cfg.CircuitBreaker,
		Logger:         logger,
	}), nil
}

func dialTransport(ctx context.Context, cfg config.WorkerConfig) (domain.Transport, error) {
	switch cfg.Transport {
	case "", "http":
		return NewHTTPTransport(cfg.Endpoint, nil), nil
	case "grpc":
		return DialGRPC(cfg.Endpoint)
	case "mcp":
		if cfg.Command != "" {
			return DialMCPStdio(ctx, cfg.Command, cfg.Env, cfg.Args...)
		}
		return DialMCPHTTP(ctx, cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}
