package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

func (f *TableFormatter) FormatMethods(policies []MethodPolicy) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Method", "Fast Path", "Throttle"})

	for _, p := range policies {
		t.AppendRow(table.Row{p.Method, yesNo(p.FastPath), throttleLabel(p)})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d allowed", len(policies)), "", ""})
	t.Style().Format.Footer = text.FormatDefault

	return t.Render(), nil
}

func (f *TableFormatter) FormatRateLimits(statuses []core.RateLimitStatus) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Method", "Used", "Window", "Resets In"})

	for _, s := range statuses {
		t.AppendRow(table.Row{
			s.Method,
			fmt.Sprintf("%d/%d", s.Count, s.MaxCalls),
			windowLabel(s.WindowSeconds),
			resetLabel(s),
		})
	}

	return t.Render(), nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
