package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateRouter(cfg, ve)
	validateSession(cfg, ve)
	validateWorkers(cfg, ve)
	validateGateway(cfg, ve)
	validateRestaurant(cfg, ve)
	validateRider(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateRouter(cfg *Config, ve *ValidationError) {
	if cfg.Router.CallTimeout <= 0 {
		ve.Add("router.call_timeout must be > 0")
	}
	if cfg.Router.DeadlineSlack < 0 {
		ve.Add("router.deadline_slack must be >= 0")
	}
}

var validBusyPolicies = map[string]bool{
	"queue":  true,
	"reject": true,
}

func validateSession(cfg *Config, ve *ValidationError) {
	s := cfg.Session
	if s.IdleTimeout <= 0 {
		ve.Add("session.idle_timeout must be > 0")
	}
	if s.ReapSchedule == "" {
		ve.Add("session.reap_schedule must not be empty")
	}
	if s.MaxTurns < 0 {
		ve.Add("session.max_turns must be >= 0")
	}
	if !validBusyPolicies[s.BusyPolicy] {
		ve.Add("session.busy_policy %q is invalid (want: queue, reject)", s.BusyPolicy)
	}
}

var validTransports = map[string]bool{
	"http": true,
	"grpc": true,
	"mcp":  true,
}

func validateWorkers(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, w := range cfg.Workers {
		if w.Name == "" {
			ve.Add("workers[%d].name must not be empty", i)
			continue
		}
		if seen[w.Name] {
			ve.Add("workers[%d]: duplicate worker name %q", i, w.Name)
		}
		seen[w.Name] = true

		if !validTransports[w.Transport] {
			ve.Add("workers[%d] (%s): transport %q is invalid (want: http, grpc, mcp)", i, w.Name, w.Transport)
		}
		switch {
		case w.Transport == "mcp" && w.Endpoint == "" && w.Command == "":
			ve.Add("workers[%d] (%s): mcp transport needs endpoint or command", i, w.Name)
		case w.Transport == "http" || (w.Transport == "mcp" && w.Command == ""):
			if u, err := url.Parse(w.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
				ve.Add("workers[%d] (%s): endpoint %q is not a valid URL", i, w.Name, w.Endpoint)
			}
		case w.Transport == "grpc":
			if _, _, err := net.SplitHostPort(w.Endpoint); err != nil {
				ve.Add("workers[%d] (%s): grpc endpoint %q must be host:port", i, w.Name, w.Endpoint)
			}
		}
		if w.Timeout < 0 {
			ve.Add("workers[%d] (%s): timeout must be >= 0", i, w.Name)
		}
		if w.MaxConcurrent < 0 {
			ve.Add("workers[%d] (%s): max_concurrent must be >= 0", i, w.Name)
		}
		if w.CircuitBreaker.Enabled && w.CircuitBreaker.MaxFailures == 0 {
			ve.Add("workers[%d] (%s): circuit_breaker.max_failures must be > 0 when enabled", i, w.Name)
		}
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr must not be empty")
	}
	rl := cfg.Gateway.RateLimit
	if rl.Enabled {
		if rl.RequestsPerSecond <= 0 {
			ve.Add("gateway.rate_limit.requests_per_second must be > 0 when enabled")
		}
		if rl.Burst <= 0 {
			ve.Add("gateway.rate_limit.burst must be > 0 when enabled")
		}
	}
}

func validateRestaurant(cfg *Config, ve *ValidationError) {
	if cfg.Restaurant.DBPath == "" {
		ve.Add("restaurant.db_path must not be empty")
	}
}

var validRiderProviders = map[string]bool{
	"google": true,
	"demo":   true,
}

func validateRider(cfg *Config, ve *ValidationError) {
	r := cfg.Rider
	if !validRiderProviders[r.Provider] {
		ve.Add("rider.provider %q is invalid (want: google, demo)", r.Provider)
	}
	if r.Provider == "google" {
		if r.MapsAPIKey == "" {
			ve.Add("rider.maps_api_key is required when provider is google (set via GOOGLE_MAPS_API_KEY)")
		}
		if r.RoutesURL == "" {
			ve.Add("rider.routes_url is required when provider is google")
		}
	}
	if r.RequestsPerSecond < 0 {
		ve.Add("rider.requests_per_second must be >= 0")
	}
	if r.CacheSize < 0 {
		ve.Add("rider.cache_size must be >= 0")
	}
	if r.Provider == "demo" && r.DemoSpeedKMH <= 0 {
		ve.Add("rider.demo_speed_kmh must be > 0 for the demo provider")
	}
}
