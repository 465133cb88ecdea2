package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/config"
	errwrap "github.com/nodeproxy/nodeproxy/internal/errors"
	"github.com/nodeproxy/nodeproxy/internal/metrics"
	"github.com/nodeproxy/nodeproxy/internal/observability"
	"github.com/nodeproxy/nodeproxy/internal/server/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON-RPC proxy",
	Long: `Start the JSON-RPC proxy with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read and validate config (policy changes need a restart)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "configuration invalid")
		}

		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		observability.InitServerLogger(identity.BinaryName, level, cfg.Logging.Profile, namespace)
		log := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				log.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}

		handlers.SetAppIdentity(identity)

		stack, err := buildProxyStack(cfg, identity, log)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "proxy wiring failed")
		}

		log.Info("Initializing proxy",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("node_url", cfg.Node.URL),
			zap.Strings("allowed_methods", stack.Dispatcher.Allowed.Methods()),
			zap.Int("throttled_methods", len(stack.Dispatcher.Throttles)),
			zap.Bool("fast_path", len(stack.Dispatcher.FastPaths) > 0),
			zap.Bool("hard_throttle", cfg.Proxy.UseHardThrottle))
		if len(cfg.Proxy.AllowedMethods) == 0 {
			log.Warn("proxy.allowed_methods is empty; every JSON-RPC call will be rejected")
		}

		runCtx, stopBackground := context.WithCancel(ctx)
		defer stopBackground()

		if stack.Refresher != nil {
			go func() {
				if err := stack.Refresher.Run(runCtx); err != nil {
					log.Error("Chain info refresher stopped", zap.Error(err))
				}
			}()
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: the HTTP server stops first, the logger
		// flushes last.
		signals.OnShutdown(func(ctx context.Context) error {
			log.Info("Flushing logger...")
			if err := log.Sync(); err != nil {
				log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				log.Warn("Metrics exporter shutdown failed", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			stopBackground()

			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := stack.Server.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			log.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			log.Info("Received SIGHUP: re-reading configuration")

			if err := viper.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if errors.As(err, &notFound) {
					log.Info("No config file found - using defaults and environment variables")
					return nil
				}
				log.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			if _, err := config.Load(viper.GetViper()); err != nil {
				log.Error("Reloaded configuration is invalid", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			log.Info("Configuration validated; restart to apply proxy policy changes",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			log.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		metrics.SetServerStartTime(time.Now().Unix())

		errChan := make(chan error, 2)
		go func() {
			if err := stack.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
				return
			}
			errChan <- nil
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				log.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("node-url", "", "backend node JSON-RPC URL")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("node.url", serveCmd.Flags().Lookup("node-url"))
}
