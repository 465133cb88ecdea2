package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nodeproxy/nodeproxy/internal/config"
	"github.com/nodeproxy/nodeproxy/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, resolved configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== nodeproxy Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("  Env Prefix: " + identity.EnvPrefix)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  Platform:   " + runtime.GOOS + "/" + runtime.GOARCH)
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			configFile = config.DefaultConfigPath(identity.ConfigName) + " (not found)"
		}

		log.Info("Server:")
		log.Info(fmt.Sprintf("  Listen:           %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Landing Redirect: " + valueOrDash(cfg.Server.LandingRedirect))
		log.Info(fmt.Sprintf("  Trust Forwarded:  %t", cfg.Server.TrustForwardedHeaders))
		log.Info("  Log Level:        " + cfg.Logging.Level)
		log.Info("  Log Profile:      " + cfg.Logging.Profile)
		log.Info(fmt.Sprintf("  Metrics Port:     %d (enabled=%t)", cfg.Metrics.Port, cfg.Metrics.Enabled))
		log.Info("  Config File:      "+configFile, zap.String("config_file", configFile))
		log.Info("")

		log.Info("Backend Node:")
		log.Info("  URL:           " + cfg.Node.URL)
		if strings.TrimSpace(cfg.Node.User) != "" {
			log.Info("  Auth:          basic (user set)")
		} else {
			log.Info("  Auth:          none")
		}
		log.Info("  Timeout:       " + cfg.Node.Timeout.String())
		log.Info(fmt.Sprintf("  Hard Throttle: %.2f rps, burst %d (active=%t)",
			cfg.Node.HardThrottle.RequestsPerSecond, cfg.Node.HardThrottle.Burst, cfg.Proxy.UseHardThrottle))
		log.Info("")

		log.Info("Proxy Policy:")
		log.Info(fmt.Sprintf("  Allowed Methods:  %d", len(cfg.Proxy.AllowedMethods)))
		for method, limit := range cfg.Proxy.Throttles() {
			log.Info(fmt.Sprintf("  Throttle:         %s %d per %s", method, limit.RequestsPerWindow, limit.WindowDuration))
		}
		log.Info(fmt.Sprintf("  Fast Path:        %t", cfg.Proxy.FastPathEnabled))
		log.Info(fmt.Sprintf("  Chain Info:       enabled=%t every %s", cfg.ChainInfo.Enabled, cfg.ChainInfo.RefreshInterval))
		log.Info(fmt.Sprintf("  Max Body:         %d bytes", cfg.Proxy.MaxBodyBytes))
		log.Info(fmt.Sprintf("  Admin Networks:   %s (enabled=%t)", strings.Join(cfg.Admin.AllowedNetworks, ", "), cfg.Admin.Enabled))
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
