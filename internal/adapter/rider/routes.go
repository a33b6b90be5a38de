// Package rider is the rider worker: delivery distance and travel time
// between two addresses, from a maps routes API or an offline estimate.
package rider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"food-router/internal/adapter/workerserver"
	"food-router/internal/domain"
	"food-router/internal/infra/config"
	"food-router/internal/infra/tracer"
)

const (
	routesFieldMask   = "routes.distanceMeters,routes.duration"
	routesHTTPTimeout = 15 * time.Second
	maxRoutesBody     = 1 << 20
)

// Values of EtaPayload.Source.
const (
	SourceGoogle = "google_routes"
	SourceDemo   = "demo"
)

// Estimator computes a delivery estimate between two addresses.
type Estimator interface {
	Estimate(ctx context.Context, origin, destination string) (domain.EtaPayload, error)
}

type routesRequest struct {
	Origin            routesWaypoint `json:"origin"`
	Destination       routesWaypoint `json:"destination"`
	TravelMode        string         `json:"travelMode"`
	RoutingPreference string         `json:"routingPreference"`
}

type routesWaypoint struct {
	Address string `json:"address"`
}

type routesResponse struct {
	Routes []struct {
		DistanceMeters float64 `json:"distanceMeters"`
		Duration       string  `json:"duration"`
	} `json:"routes"`
}

// RoutesClient calls the Google Routes computeRoutes endpoint. Requests
// are rate limited and answers cached per address pair.
type RoutesClient struct {
	url     string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	cache   *expirable.LRU[string, domain.EtaPayload]
	logger  *slog.Logger
}

// NewRoutesClient creates a client from the rider config. A nil client
// gets one with a 15s timeout.
func NewRoutesClient(cfg config.RiderConfig, client *http.Client, logger *slog.Logger) *RoutesClient {
	if client == nil {
		client = &http.Client{Timeout: routesHTTPTimeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	return &RoutesClient{
		url:     cfg.RoutesURL,
		apiKey:  cfg.MapsAPIKey,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		cache:   expirable.NewLRU[string, domain.EtaPayload](size, nil, cfg.CacheTTL),
		logger:  logger,
	}
}

// Estimate implements Estimator.
func (c *RoutesClient) Estimate(ctx context.Context, origin, destination string) (domain.EtaPayload, error) {
	const op = "rider.Routes"
	key := pairKey(origin, destination)
	if hit, ok := c.cache.Get(key); ok {
		hit.Origin, hit.Destination = origin, destination
		return hit, nil
	}

	ctx, span := tracer.StartSpan(ctx, "rider.routes",
		trace.WithAttributes(tracer.StringAttr("routes.origin", origin), tracer.StringAttr("routes.destination", destination)),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		tracer.RecordError(span, err)
		return domain.EtaPayload{}, domain.NewSubSystemError("rider", op, domain.ErrRateLimit, err.Error())
	}

	body, err := json.Marshal(routesRequest{
		Origin:            routesWaypoint{Address: origin},
		Destination:       routesWaypoint{Address: destination},
		TravelMode:        "DRIVE",
		RoutingPreference: "TRAFFIC_AWARE",
	})
	if err != nil {
		return domain.EtaPayload{}, fmt.Errorf("marshal routes request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.EtaPayload{}, fmt.Errorf("create routes request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", routesFieldMask)

	resp, err := c.client.Do(req)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.EtaPayload{}, domain.NewSubSystemError("rider", op, domain.ErrUnavailable, err.Error())
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRoutesBody))
	if err != nil {
		return domain.EtaPayload{}, fmt.Errorf("read routes response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		err := domain.NewSubSystemError("rider", op, domain.ErrUnavailable, fmt.Sprintf("routes api http %d", resp.StatusCode))
		tracer.RecordError(span, err)
		c.logger.Warn("routes api rejected request", "status", resp.StatusCode, "body", truncate(string(data), 200))
		return domain.EtaPayload{}, err
	}

	var parsed routesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return domain.EtaPayload{}, fmt.Errorf("decode routes response: %w", err)
	}
	if len(parsed.Routes) == 0 {
		tracer.RecordFailure(span, string(domain.FailureBusiness), "no route found")
		return domain.EtaPayload{}, workerserver.Business(op, "no route found")
	}

	route := parsed.Routes[0]
	out := domain.EtaPayload{
		Origin:      origin,
		Destination: destination,
		DistanceKM:  round(route.DistanceMeters/1000, 2),
		EtaMinutes:  round(parseDuration(route.Duration).Minutes(), 1),
		Source:      SourceGoogle,
	}
	c.cache.Add(key, out)
	tracer.SetOK(span)
	return out, nil
}

// parseDuration reads the API's "1234s" / "1234.5s" durations. Anything
// unparseable is zero.
func parseDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if !strings.HasSuffix(s, "s") {
		s += "s"
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func normalizeAddress(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func pairKey(origin, destination string) string {
	return normalizeAddress(origin) + "\x00" + normalizeAddress(destination)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
