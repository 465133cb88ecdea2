package output

import (
	"fmt"
	"strings"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) FormatMethods(policies []MethodPolicy) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Method | Fast Path | Throttle |\n")
	sb.WriteString("|--------|-----------|----------|\n")
	for _, p := range policies {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n",
			escapeMarkdownCell(p.Method),
			yesNo(p.FastPath),
			escapeMarkdownCell(throttleLabel(p)),
		))
	}
	return sb.String(), nil
}

func (f *MarkdownFormatter) FormatRateLimits(statuses []core.RateLimitStatus) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Method | Used | Window | Resets In |\n")
	sb.WriteString("|--------|------|--------|-----------|\n")
	for _, s := range statuses {
		sb.WriteString(fmt.Sprintf("| %s | %d/%d | %s | %s |\n",
			escapeMarkdownCell(s.Method),
			s.Count, s.MaxCalls,
			windowLabel(s.WindowSeconds),
			resetLabel(s),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
