package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/nodeproxy/nodeproxy/internal/core"
	"github.com/nodeproxy/nodeproxy/internal/output"
	"github.com/nodeproxy/nodeproxy/internal/server/handlers"
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect method throttles on a running proxy",
}

var rateLimitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current usage of every throttled method",
	Long: `Query GET /admin/ratelimits on a running proxy. The caller must be inside
admin.allowed_networks (loopback by default).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		baseURL, _ := cmd.Flags().GetString("url")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		statuses, err := fetchRateLimits(cmd.Context(), baseURL, timeout)
		if err != nil {
			return err
		}

		sink, err := openSink("")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if len(statuses) == 0 && format == output.FormatTable {
			_, err = fmt.Fprint(sink.writer, ascii.DrawBox("Rate Limits\n\n(no throttled methods)", 0))
			return err
		}

		rendered, err := output.NewFormatter(format).FormatRateLimits(statuses)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(sink.writer, rendered)
		return err
	},
}

func fetchRateLimits(ctx context.Context, baseURL string, timeout time.Duration) ([]core.RateLimitStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/ratelimits"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query %s: HTTP %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload handlers.RateLimitsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	for i := range payload.RateLimits {
		if s := payload.RateLimits[i].ResetInSeconds; s != nil {
			d := time.Duration(*s * float64(time.Second))
			payload.RateLimits[i].ResetIn = &d
		}
	}
	return payload.RateLimits, nil
}

func init() {
	rateLimitStatusCmd.Flags().String("url", "http://localhost:8080", "Base URL of the running proxy")
	rateLimitStatusCmd.Flags().Duration("timeout", 5*time.Second, "Request timeout")
	rateLimitStatusCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|yaml|markdown")

	rateLimitCmd.AddCommand(rateLimitStatusCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
