// Package config provides centralized configuration management for nodeproxy.
// Values are layered with viper:
// Layer 1: Built-in defaults (SetDefaults)
// Layer 2: YAML config file (discovered via app identity or --config)
// Layer 3: Environment variables ({PREFIX}{NAME}, see envSpecs)
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/seancfoley/ipaddress-go/ipaddr"
	"github.com/spf13/viper"

	"github.com/nodeproxy/nodeproxy/internal/core"
	"github.com/nodeproxy/nodeproxy/internal/core/engine"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// DefaultAdminNetworks restricts admin routes to loopback.
var DefaultAdminNetworks = []string{"127.0.0.0/8", "::1/128"}

// SetDefaults registers every known key so env overrides and
// AllSettings see the full tree.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.landing_redirect", "")
	v.SetDefault("server.trust_forwarded_headers", false)

	// Proxy policy defaults: nothing is forwardable until configured
	v.SetDefault("proxy.allowed_methods", []string{})
	v.SetDefault("proxy.rate_limits", map[string]any{
		core.MethodImportLightWalletAddress: map[string]any{"max_calls": 10, "window_seconds": 600},
	})
	v.SetDefault("proxy.use_hard_throttle", false)
	v.SetDefault("proxy.fast_path_enabled", true)
	v.SetDefault("proxy.max_body_bytes", 1<<20)

	// Backend node defaults
	v.SetDefault("node.url", "http://127.0.0.1:8232")
	v.SetDefault("node.user", "")
	v.SetDefault("node.password", "")
	v.SetDefault("node.timeout", "30s")
	v.SetDefault("node.hard_throttle.requests_per_second", 5.0)
	v.SetDefault("node.hard_throttle.burst", 10)

	// Chain info snapshot defaults
	v.SetDefault("chaininfo.enabled", true)
	v.SetDefault("chaininfo.refresh_interval", "5s")
	v.SetDefault("chaininfo.timeout", "10s")

	// Admin defaults
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.allowed_networks", DefaultAdminNetworks)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// EnvVarSpec maps an environment variable suffix to a config key.
type EnvVarSpec struct {
	Name string
	Key  string
}

// envSpecs returns environment variable mappings for config keys.
// Duration and list fields arrive as strings and are converted by the
// mapstructure decode hooks.
func envSpecs() []EnvVarSpec {
	return []EnvVarSpec{
		// Server config
		{Name: "HOST", Key: "server.host"},
		{Name: "PORT", Key: "server.port"},
		{Name: "READ_TIMEOUT", Key: "server.read_timeout"},
		{Name: "WRITE_TIMEOUT", Key: "server.write_timeout"},
		{Name: "IDLE_TIMEOUT", Key: "server.idle_timeout"},
		{Name: "SHUTDOWN_TIMEOUT", Key: "server.shutdown_timeout"},
		{Name: "LANDING_REDIRECT", Key: "server.landing_redirect"},
		{Name: "TRUST_FORWARDED_HEADERS", Key: "server.trust_forwarded_headers"},

		// Proxy policy
		{Name: "ALLOWED_METHODS", Key: "proxy.allowed_methods"},
		{Name: "USE_HARD_THROTTLE", Key: "proxy.use_hard_throttle"},
		{Name: "FAST_PATH_ENABLED", Key: "proxy.fast_path_enabled"},
		{Name: "MAX_BODY_BYTES", Key: "proxy.max_body_bytes"},

		// Backend node
		{Name: "NODE_URL", Key: "node.url"},
		{Name: "NODE_USER", Key: "node.user"},
		{Name: "NODE_PASSWORD", Key: "node.password"},
		{Name: "NODE_TIMEOUT", Key: "node.timeout"},
		{Name: "NODE_HARD_THROTTLE_RPS", Key: "node.hard_throttle.requests_per_second"},
		{Name: "NODE_HARD_THROTTLE_BURST", Key: "node.hard_throttle.burst"},

		// Chain info
		{Name: "CHAININFO_ENABLED", Key: "chaininfo.enabled"},
		{Name: "CHAININFO_REFRESH_INTERVAL", Key: "chaininfo.refresh_interval"},
		{Name: "CHAININFO_TIMEOUT", Key: "chaininfo.timeout"},

		// Admin
		{Name: "ADMIN_ENABLED", Key: "admin.enabled"},
		{Name: "ADMIN_ALLOWED_NETWORKS", Key: "admin.allowed_networks"},

		// Logging config
		{Name: "LOG_LEVEL", Key: "logging.level"},
		{Name: "LOG_PROFILE", Key: "logging.profile"},

		// Metrics config
		{Name: "METRICS_ENABLED", Key: "metrics.enabled"},
		{Name: "METRICS_PORT", Key: "metrics.port"},

		// Health config
		{Name: "HEALTH_ENABLED", Key: "health.enabled"},
	}
}

// BindEnv binds {prefix}{NAME} variables onto v. The prefix comes from the
// app identity and gains a trailing underscore when missing.
func BindEnv(v *viper.Viper, prefix string) error {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	for _, spec := range envSpecs() {
		if err := v.BindEnv(spec.Key, prefix+spec.Name); err != nil {
			return fmt.Errorf("bind %s: %w", prefix+spec.Name, err)
		}
	}
	return nil
}

// Load decodes and validates the settings held by v. The result becomes
// the value returned by GetConfig.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Proxy.AllowedMethods = trimAll(cfg.Proxy.AllowedMethods)
	cfg.Admin.AllowedNetworks = trimAll(cfg.Admin.AllowedNetworks)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Node.URL) == "" {
		problems = append(problems, "node.url is required")
	}
	if c.Proxy.MaxBodyBytes <= 0 {
		problems = append(problems, "proxy.max_body_bytes must be positive")
	}
	for method, limit := range c.Proxy.RateLimits {
		if limit.MaxCalls <= 0 {
			problems = append(problems, fmt.Sprintf("proxy.rate_limits.%s.max_calls must be positive", method))
		}
		if limit.WindowSeconds <= 0 {
			problems = append(problems, fmt.Sprintf("proxy.rate_limits.%s.window_seconds must be positive", method))
		}
	}
	if c.Node.HardThrottle.RequestsPerSecond < 0 {
		problems = append(problems, "node.hard_throttle.requests_per_second must not be negative")
	}
	if c.ChainInfo.Enabled && c.ChainInfo.RefreshInterval <= 0 {
		problems = append(problems, "chaininfo.refresh_interval must be positive")
	}
	for _, network := range c.Admin.AllowedNetworks {
		if _, err := ipaddr.NewIPAddressString(network).ToAddress(); err != nil {
			problems = append(problems, fmt.Sprintf("admin.allowed_networks: %q: %v", network, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Throttles converts the configured rate limits into engine limits merged
// over the built-in defaults.
func (p ProxyConfig) Throttles() map[string]engine.RateLimit {
	overrides := make(map[string]engine.RateLimit, len(p.RateLimits))
	for method, limit := range p.RateLimits {
		overrides[method] = engine.RateLimit{
			RequestsPerWindow: limit.MaxCalls,
			WindowDuration:    limit.Window(),
		}
	}
	return engine.MergeThrottles(overrides)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath(configName string) string {
	if strings.TrimSpace(configName) == "" {
		configName = "nodeproxy"
	}
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
