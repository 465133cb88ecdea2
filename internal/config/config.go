package config

import "time"

// Config represents the complete application configuration.
// Values are resolved in order: built-in defaults, the YAML config file,
// then environment variables prefixed with the app identity env prefix.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Node      NodeConfig      `mapstructure:"node"`
	ChainInfo ChainInfoConfig `mapstructure:"chaininfo"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// LandingRedirect is where GET / sends browsers. Empty means GET /
	// answers 200 with no body.
	LandingRedirect string `mapstructure:"landing_redirect"`

	// TrustForwardedHeaders takes the client address from X-Forwarded-For
	// and X-Real-IP. Enable only behind a reverse proxy that sets them.
	TrustForwardedHeaders bool `mapstructure:"trust_forwarded_headers"`
}

// ProxyConfig contains the JSON-RPC admission policy.
type ProxyConfig struct {
	// AllowedMethods lists the forwardable method names. Empty allows nothing.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// RateLimits maps method names to global sliding-window limits.
	RateLimits map[string]MethodRateLimit `mapstructure:"rate_limits"`

	UseHardThrottle bool  `mapstructure:"use_hard_throttle"`
	FastPathEnabled bool  `mapstructure:"fast_path_enabled"`
	MaxBodyBytes    int64 `mapstructure:"max_body_bytes"`
}

// MethodRateLimit bounds calls to one method across all clients.
type MethodRateLimit struct {
	MaxCalls      int `mapstructure:"max_calls"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Window returns the limit window as a duration.
func (l MethodRateLimit) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
}

// NodeConfig describes the backend node.
type NodeConfig struct {
	URL          string             `mapstructure:"url"`
	User         string             `mapstructure:"user"`
	Password     string             `mapstructure:"password"`
	Timeout      time.Duration      `mapstructure:"timeout"`
	HardThrottle HardThrottleConfig `mapstructure:"hard_throttle"`
}

// HardThrottleConfig is the token bucket applied to forwarded calls when
// proxy.use_hard_throttle is on.
type HardThrottleConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ChainInfoConfig controls the snapshot refresher that feeds fast paths.
type ChainInfoConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// AdminConfig controls the read-only admin endpoints.
type AdminConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// AllowedNetworks lists CIDRs permitted to reach /admin routes.
	AllowedNetworks []string `mapstructure:"allowed_networks"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}
