package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/nodeproxy/nodeproxy/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatMethods(policies []MethodPolicy) (string, error) {
	if policies == nil {
		policies = []MethodPolicy{}
	}
	return f.marshal(policies)
}

func (f *JSONFormatter) FormatRateLimits(statuses []core.RateLimitStatus) (string, error) {
	if statuses == nil {
		statuses = []core.RateLimitStatus{}
	}
	return f.marshal(statuses)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// rateLimitYAML mirrors the JSON field names of core.RateLimitStatus.
type rateLimitYAML struct {
	Method         string   `yaml:"method"`
	MaxCalls       int      `yaml:"max_calls"`
	WindowSeconds  int      `yaml:"window_seconds"`
	Count          int      `yaml:"count"`
	ResetInSeconds *float64 `yaml:"reset_in_seconds"`
}

func (f *YAMLFormatter) FormatMethods(policies []MethodPolicy) (string, error) {
	if policies == nil {
		policies = []MethodPolicy{}
	}
	data, err := yaml.Marshal(policies)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *YAMLFormatter) FormatRateLimits(statuses []core.RateLimitStatus) (string, error) {
	rows := make([]rateLimitYAML, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, rateLimitYAML{
			Method:         s.Method,
			MaxCalls:       s.MaxCalls,
			WindowSeconds:  s.WindowSeconds,
			Count:          s.Count,
			ResetInSeconds: s.ResetInSeconds,
		})
	}
	data, err := yaml.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
