package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// MethodPolicy describes how the proxy treats one allowed method.
type MethodPolicy struct {
	Method        string `json:"method" yaml:"method"`
	FastPath      bool   `json:"fast_path" yaml:"fast_path"`
	Throttled     bool   `json:"throttled" yaml:"throttled"`
	MaxCalls      int    `json:"max_calls,omitempty" yaml:"max_calls,omitempty"`
	WindowSeconds int    `json:"window_seconds,omitempty" yaml:"window_seconds,omitempty"`
}

// Formatter renders proxy policy and usage views.
type Formatter interface {
	FormatMethods(policies []MethodPolicy) (string, error)
	FormatRateLimits(statuses []core.RateLimitStatus) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func resetLabel(status core.RateLimitStatus) string {
	if status.ResetIn == nil {
		return "-"
	}
	return status.ResetIn.Round(time.Second).String()
}

func windowLabel(seconds int) string {
	if seconds <= 0 {
		return "-"
	}
	return fmt.Sprintf("%ds", seconds)
}

func throttleLabel(policy MethodPolicy) string {
	if !policy.Throttled {
		return "-"
	}
	return fmt.Sprintf("%d / %s", policy.MaxCalls, windowLabel(policy.WindowSeconds))
}
