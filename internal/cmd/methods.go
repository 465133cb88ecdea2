package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nodeproxy/nodeproxy/internal/config"
	"github.com/nodeproxy/nodeproxy/internal/core/engine"
	"github.com/nodeproxy/nodeproxy/internal/output"
)

var methodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "List the methods the proxy will forward",
	Long: `List the allow-listed JSON-RPC methods from the resolved configuration,
with their fast-path and throttle settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		outPath, err := cmd.Flags().GetString("out")
		if err != nil {
			return err
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatMethods(methodPolicies(cfg))
		if err != nil {
			return err
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

// methodPolicies describes each allowed method in name order.
func methodPolicies(cfg *config.Config) []output.MethodPolicy {
	allowed := engine.NewMethodSet(cfg.Proxy.AllowedMethods)
	throttles := cfg.Proxy.Throttles()
	fastPath := cfg.Proxy.FastPathEnabled && cfg.ChainInfo.Enabled

	methods := allowed.Methods()
	policies := make([]output.MethodPolicy, 0, len(methods))
	for _, method := range methods {
		policy := output.MethodPolicy{Method: method}
		if _, ok := engine.DefaultFastPaths[method]; ok && fastPath {
			policy.FastPath = true
		}
		if limit, ok := throttles[method]; ok {
			policy.Throttled = true
			policy.MaxCalls = limit.RequestsPerWindow
			policy.WindowSeconds = int(limit.WindowDuration.Seconds())
		}
		policies = append(policies, policy)
	}
	return policies
}

func init() {
	rootCmd.AddCommand(methodsCmd)
	methodsCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|yaml|markdown")
	methodsCmd.Flags().String("out", "", "Write output to a file (default stdout)")
}
