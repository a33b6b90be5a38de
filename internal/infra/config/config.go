package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration shared by the orchestrator and
// both worker agents. Each binary reads the sections it needs.
type Config struct {
	Logger     LoggerConfig     `yaml:"logger"`
	Tracer     TracerConfig     `yaml:"tracer"`
	Router     RouterConfig     `yaml:"router"`
	Session    SessionConfig    `yaml:"session"`
	Workers    []WorkerConfig   `yaml:"workers"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Restaurant RestaurantConfig `yaml:"restaurant"`
	Rider      RiderConfig      `yaml:"rider"`
}

// RouterConfig holds RoutingAgent settings.
type RouterConfig struct {
	// CallTimeout is the per-call timeout used when a worker sets none.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// DeadlineSlack is added to the per-utterance deadline on top of the
	// worker timeouts along the longest dependency chain.
	DeadlineSlack          time.Duration `yaml:"deadline_slack"`
	DefaultDeliveryAddress string        `yaml:"default_delivery_address"`
	KnownRestaurants       []string      `yaml:"known_restaurants"`
	DiscoverCards          bool          `yaml:"discover_cards"`
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	ReapSchedule string        `yaml:"reap_schedule"` // cron expression or duration
	MaxTurns     int           `yaml:"max_turns"`
	BusyPolicy   string        `yaml:"busy_policy"` // "queue" or "reject"
}

// WorkerConfig describes how the orchestrator reaches one worker agent.
type WorkerConfig struct {
	Name           string               `yaml:"name"`
	Transport      string               `yaml:"transport"` // "http", "grpc" or "mcp"
	Endpoint       string               `yaml:"endpoint"`
	Command        string               `yaml:"command,omitempty"` // mcp over stdio
	Args           []string             `yaml:"args,omitempty"`
	Env            map[string]string    `yaml:"env,omitempty"`
	Timeout        time.Duration        `yaml:"timeout"`
	MaxConcurrent  int                  `yaml:"max_concurrent"` // 0 = unlimited
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds per-worker circuit breaker settings.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// GatewayConfig holds the chat front end settings.
type GatewayConfig struct {
	Addr      string          `yaml:"addr"`
	WebSocket bool            `yaml:"websocket"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// WorkerServerConfig holds the listeners of a worker agent binary.
type WorkerServerConfig struct {
	HTTPAddr   string `yaml:"http_addr"`
	GRPCAddr   string `yaml:"grpc_addr"` // empty disables gRPC
	MCPEnabled bool   `yaml:"mcp_enabled"`
}

// RestaurantConfig holds restaurant agent settings.
type RestaurantConfig struct {
	Server WorkerServerConfig `yaml:"server"`
	DBPath string             `yaml:"db_path"`
	Seed   bool               `yaml:"seed"`
}

// RiderConfig holds rider agent settings.
type RiderConfig struct {
	Server            WorkerServerConfig `yaml:"server"`
	Provider          string             `yaml:"provider"` // "google" or "demo"
	MapsAPIKey        string             `yaml:"maps_api_key"`
	RoutesURL         string             `yaml:"routes_url"`
	RequestsPerSecond float64            `yaml:"requests_per_second"`
	Burst             int                `yaml:"burst"`
	CacheSize         int                `yaml:"cache_size"`
	CacheTTL          time.Duration      `yaml:"cache_ttl"`
	DemoSpeedKMH      float64            `yaml:"demo_speed_kmh"`
}

// LoggerConfig holds logger settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Worker returns the worker configuration with the given name.
func (c *Config) Worker(name string) (WorkerConfig, bool) {
	for _, w := range c.Workers {
		if w.Name == name {
			return w, true
		}
	}
	return WorkerConfig{}, false
}

// DataDir is the per-user directory for databases and log files.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".food-router")
	}
	return filepath.Join(home, ".food-router")
}

// Defaults returns a configuration that runs all three binaries on localhost.
func Defaults() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Router: RouterConfig{
			CallTimeout:   5 * time.Second,
			DeadlineSlack: 500 * time.Millisecond,
			KnownRestaurants: []string{
				"Spice Hub", "Pizza Planet", "Burger Corner", "Spicy Garden 36", "Joe's Pizza", "Midnight Grill",
			},
			DefaultDeliveryAddress: "Koramangala, Bengaluru",
		},
		Session: SessionConfig{
			IdleTimeout:  30 * time.Minute,
			ReapSchedule: "1m",
			MaxTurns:     50,
			BusyPolicy:   "queue",
		},
		Workers: []WorkerConfig{
			{
				Name:      "restaurant",
				Transport: "http",
				Endpoint:  "http://localhost:9002",
				Timeout:   5 * time.Second,
				CircuitBreaker: CircuitBreakerConfig{
					Enabled:     true,
					MaxFailures: 5,
					Timeout:     30 * time.Second,
					Interval:    60 * time.Second,
				},
			},
			{
				Name:      "rider",
				Transport: "http",
				Endpoint:  "http://localhost:9001",
				Timeout:   5 * time.Second,
				CircuitBreaker: CircuitBreakerConfig{
					Enabled:     true,
					MaxFailures: 5,
					Timeout:     30 * time.Second,
					Interval:    60 * time.Second,
				},
			},
		},
		Gateway: GatewayConfig{
			Addr:      ":8080",
			WebSocket: true,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 5,
				Burst:             10,
			},
		},
		Restaurant: RestaurantConfig{
			Server: WorkerServerConfig{HTTPAddr: ":9002", GRPCAddr: ":9102", MCPEnabled: true},
			DBPath: filepath.Join(DataDir(), "restaurant.db"),
			Seed:   true,
		},
		Rider: RiderConfig{
			Server:            WorkerServerConfig{HTTPAddr: ":9001", GRPCAddr: ":9101", MCPEnabled: true},
			Provider:          "demo",
			RoutesURL:         "https://routes.googleapis.com/directions/v2:computeRoutes",
			RequestsPerSecond: 10,
			Burst:             5,
			CacheSize:         512,
			CacheTTL:          5 * time.Minute,
			DemoSpeedKMH:      22,
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("FOODROUTER_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps FOODROUTER_* env vars to config fields.
// RESTAURANT_AGENT_URL, RIDER_AGENT_URL and GOOGLE_MAPS_API_KEY are honoured
// as shorter aliases.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FOODROUTER_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("FOODROUTER_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("FOODROUTER_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("FOODROUTER_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := os.Getenv("FOODROUTER_ROUTER_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Router.CallTimeout = d
		}
	}
	if v := os.Getenv("FOODROUTER_ROUTER_DEFAULT_DELIVERY_ADDRESS"); v != "" {
		cfg.Router.DefaultDeliveryAddress = v
	}
	if v := os.Getenv("FOODROUTER_SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Session.IdleTimeout = d
		}
	}
	if v := os.Getenv("FOODROUTER_SESSION_BUSY_POLICY"); v != "" {
		cfg.Session.BusyPolicy = v
	}
	if v := os.Getenv("FOODROUTER_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}

	for i := range cfg.Workers {
		w := &cfg.Workers[i]
		prefix := "FOODROUTER_WORKER_" + strings.ToUpper(w.Name) + "_"
		if v := os.Getenv(prefix + "ENDPOINT"); v != "" {
			w.Endpoint = v
		}
		if v := os.Getenv(prefix + "TRANSPORT"); v != "" {
			w.Transport = v
		}
		if v := os.Getenv(prefix + "TIMEOUT"); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				w.Timeout = d
			}
		}
		if v := os.Getenv(prefix + "MAX_CONCURRENT"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				w.MaxConcurrent = n
			}
		}
	}
	if v := os.Getenv("RESTAURANT_AGENT_URL"); v != "" {
		setWorkerEndpoint(cfg, "restaurant", v)
	}
	if v := os.Getenv("RIDER_AGENT_URL"); v != "" {
		setWorkerEndpoint(cfg, "rider", v)
	}

	if v := os.Getenv("FOODROUTER_RESTAURANT_DB_PATH"); v != "" {
		cfg.Restaurant.DBPath = v
	}
	if v := os.Getenv("FOODROUTER_RESTAURANT_HTTP_ADDR"); v != "" {
		cfg.Restaurant.Server.HTTPAddr = v
	}
	if v := os.Getenv("FOODROUTER_RIDER_HTTP_ADDR"); v != "" {
		cfg.Rider.Server.HTTPAddr = v
	}
	if v := os.Getenv("FOODROUTER_RIDER_PROVIDER"); v != "" {
		cfg.Rider.Provider = v
	}
	if v := os.Getenv("FOODROUTER_RIDER_MAPS_API_KEY"); v != "" {
		cfg.Rider.MapsAPIKey = v
	} else if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		cfg.Rider.MapsAPIKey = v
	}
}

func setWorkerEndpoint(cfg *Config, name, endpoint string) {
	for i := range cfg.Workers {
		if cfg.Workers[i].Name == name {
			cfg.Workers[i].Endpoint = endpoint
			return
		}
	}
}

// decryptSecrets finds "enc:..." values and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	if strings.HasPrefix(cfg.Rider.MapsAPIKey, "enc:") {
		decrypted, err := DecryptValue(strings.TrimPrefix(cfg.Rider.MapsAPIKey, "enc:"), passphrase)
		if err != nil {
			return fmt.Errorf("rider maps_api_key: %w", err)
		}
		cfg.Rider.MapsAPIKey = decrypted
	}

	for i := range cfg.Workers {
		w := &cfg.Workers[i]
		for k, v := range w.Env {
			if !strings.HasPrefix(v, "enc:") {
				continue
			}
			decrypted, err := DecryptValue(strings.TrimPrefix(v, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("worker %s env %s: %w", w.Name, k, err)
			}
			w.Env[k] = decrypted
		}
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o022 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
