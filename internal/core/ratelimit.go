package core

import "time"

// RateLimitStatus captures the observed usage of one throttled method.
type RateLimitStatus struct {
	Method         string         `json:"method"`
	MaxCalls       int            `json:"max_calls"`
	WindowSeconds  int            `json:"window_seconds"`
	Count          int            `json:"count"`
	ResetIn        *time.Duration `json:"-"`
	ResetInSeconds *float64       `json:"reset_in_seconds"`
}

// NewRateLimitStatus fills the serialized reset field from resetIn.
func NewRateLimitStatus(method string, maxCalls int, window time.Duration, count int, resetIn time.Duration, hasReset bool) RateLimitStatus {
	status := RateLimitStatus{
		Method:        method,
		MaxCalls:      maxCalls,
		WindowSeconds: int(window / time.Second),
		Count:         count,
	}
	if hasReset {
		d := resetIn
		seconds := d.Seconds()
		status.ResetIn = &d
		status.ResetInSeconds = &seconds
	}
	return status
}
