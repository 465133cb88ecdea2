package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"

	"github.com/nodeproxy/nodeproxy/internal/appid"
	"github.com/nodeproxy/nodeproxy/internal/config"
	"github.com/nodeproxy/nodeproxy/internal/core/chaininfo"
	"github.com/nodeproxy/nodeproxy/internal/core/engine"
	"github.com/nodeproxy/nodeproxy/internal/core/node"
	errwrap "github.com/nodeproxy/nodeproxy/internal/errors"
	"github.com/nodeproxy/nodeproxy/internal/metrics"
	"github.com/nodeproxy/nodeproxy/internal/observability"
	"github.com/nodeproxy/nodeproxy/internal/server"
	"github.com/nodeproxy/nodeproxy/internal/server/handlers"
	servermw "github.com/nodeproxy/nodeproxy/internal/server/middleware"
)

// staleAfterIntervals is how many missed refreshes mark the snapshot stale.
const staleAfterIntervals = 3

// proxyStack is the set of wired components behind `serve`.
type proxyStack struct {
	Node       *node.Client
	Cache      *chaininfo.Cache
	Refresher  *chaininfo.Refresher
	Dispatcher *engine.Dispatcher
	Health     *handlers.HealthManager
	Server     *server.Server
}

// buildProxyStack wires config into the node client, snapshot refresher,
// dispatcher, health checks and HTTP server. Nothing is started.
func buildProxyStack(cfg *config.Config, identity *appidentity.Identity, log observability.FieldLogger) (*proxyStack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	client, err := node.NewClient(node.Options{
		URL:               cfg.Node.URL,
		User:              cfg.Node.User,
		Password:          cfg.Node.Password,
		Timeout:           cfg.Node.Timeout,
		HardThrottleRPS:   cfg.Node.HardThrottle.RequestsPerSecond,
		HardThrottleBurst: cfg.Node.HardThrottle.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("node client: %w", err)
	}

	stack := &proxyStack{Node: client, Cache: chaininfo.NewCache()}

	if cfg.ChainInfo.Enabled {
		stack.Refresher = &chaininfo.Refresher{
			Node:     client,
			Cache:    stack.Cache,
			Interval: cfg.ChainInfo.RefreshInterval,
			Timeout:  cfg.ChainInfo.Timeout,
			Logger:   log,
			OnRefresh: func(err error, elapsed time.Duration) {
				metrics.RecordChainInfoRefresh(err == nil, elapsed)
			},
		}
	}

	var fastPaths map[string]engine.FastPathFunc
	if cfg.Proxy.FastPathEnabled && cfg.ChainInfo.Enabled {
		fastPaths = engine.DefaultFastPaths
	}

	stack.Dispatcher = &engine.Dispatcher{
		Allowed:      engine.NewMethodSet(cfg.Proxy.AllowedMethods),
		Throttles:    cfg.Proxy.Throttles(),
		Limiter:      engine.NewSlidingWindowLimiter(),
		FastPaths:    fastPaths,
		Snapshot:     stack.Cache,
		Forwarder:    client,
		HardThrottle: cfg.Proxy.UseHardThrottle,
		Logger:       log,
	}

	proxy := handlers.NewProxyHandler(stack.Dispatcher, cfg.Proxy.MaxBodyBytes)
	proxy.Logger = log

	opts := []server.Option{
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
		server.WithProxy(proxy),
		server.WithLanding(cfg.Server.LandingRedirect),
		server.WithTrustForwardedHeaders(cfg.Server.TrustForwardedHeaders),
		server.WithMetricsPort(cfg.Metrics.Port),
	}

	if cfg.Health.Enabled {
		stack.Health = handlers.NewHealthManager(versionInfo.Version)
		stack.Health.RegisterChecker("app_identity", identityHealthChecker{identity: identity})
		if cfg.Metrics.Enabled {
			stack.Health.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		if cfg.ChainInfo.Enabled {
			stack.Health.RegisterChecker("chaininfo", snapshotHealthChecker{
				cache:    stack.Cache,
				maxAge:   staleAfterIntervals * refreshInterval(cfg.ChainInfo.RefreshInterval),
				required: cfg.Proxy.FastPathEnabled,
			})
		}
		opts = append(opts, server.WithHealth(stack.Health))
	}

	if cfg.Admin.Enabled {
		networks, err := servermw.NewNetworkAllowList(cfg.Admin.AllowedNetworks)
		if err != nil {
			return nil, fmt.Errorf("admin networks: %w", err)
		}
		prefix := appid.DefaultEnvPrefix
		if identity != nil && identity.EnvPrefix != "" {
			prefix = identity.EnvPrefix
		}
		opts = append(opts, server.WithAdmin(stack.Dispatcher, networks, os.Getenv(prefix+"ADMIN_TOKEN")))
	}

	stack.Server = server.New(cfg.Server.Host, cfg.Server.Port, opts...)
	return stack, nil
}

func refreshInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	identity *appidentity.Identity
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.identity == nil:
		return errwrap.NewConfigInvalidError("app identity not loaded")
	case i.identity.BinaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.identity.EnvPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.identity.ConfigName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// snapshotHealthChecker reports a missing or stale chain snapshot as
// degraded. Fast paths keep answering from the last snapshot either way.
type snapshotHealthChecker struct {
	cache    *chaininfo.Cache
	maxAge   time.Duration
	required bool
	now      func() time.Time
}

func (s snapshotHealthChecker) CheckHealth(ctx context.Context) error {
	if !s.required {
		return nil
	}
	snapshot := s.cache.Current()
	if snapshot == nil {
		return handlers.Degraded("no chain snapshot yet")
	}

	now := time.Now().UTC()
	if s.now != nil {
		now = s.now()
	}
	if age := now.Sub(snapshot.UpdatedAt); s.maxAge > 0 && age > s.maxAge {
		return handlers.Degraded(fmt.Sprintf("chain snapshot is %s old", age.Round(time.Second)))
	}
	return nil
}
