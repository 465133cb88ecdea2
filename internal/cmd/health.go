package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/config"
	"github.com/nodeproxy/nodeproxy/internal/core"
	"github.com/nodeproxy/nodeproxy/internal/core/node"
	errwrap "github.com/nodeproxy/nodeproxy/internal/errors"
	"github.com/nodeproxy/nodeproxy/internal/observability"
)

var healthProbeNode bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the proxy can start: version info, logger, configuration.
With --probe-node, also call getblockchaininfo on the backend node.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Info("✅ Version information available", zap.String("version", versionInfo.Version))

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration valid",
			zap.Int("allowed_methods", len(cfg.Proxy.AllowedMethods)),
			zap.Int("throttled_methods", len(cfg.Proxy.Throttles())))
		if len(cfg.Proxy.AllowedMethods) == 0 {
			log.Warn("⚠️  proxy.allowed_methods is empty; all calls will be rejected")
		}

		if healthProbeNode {
			if err := probeNode(cmd.Context(), cfg); err != nil {
				ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Backend node unreachable", err)
				return
			}
			log.Info("✅ Backend node reachable", zap.String("node_url", cfg.Node.URL))
		}

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func probeNode(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := node.NewClient(node.Options{
		URL:      cfg.Node.URL,
		User:     cfg.Node.User,
		Password: cfg.Node.Password,
		Timeout:  cfg.Node.Timeout,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var info json.RawMessage
	return client.Call(ctx, core.MethodGetBlockchainInfo, nil, &info)
}

func init() {
	healthCmd.Flags().BoolVar(&healthProbeNode, "probe-node", false, "also call getblockchaininfo on the backend node")
	rootCmd.AddCommand(healthCmd)
}
