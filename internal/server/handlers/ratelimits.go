package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nodeproxy/nodeproxy/internal/core"
	apperrors "github.com/nodeproxy/nodeproxy/internal/errors"
)

// RateLimitSource reports current usage of every throttled method.
type RateLimitSource interface {
	Status() []core.RateLimitStatus
}

// RateLimitsResponse is the body of GET /admin/ratelimits.
type RateLimitsResponse struct {
	GeneratedAt time.Time              `json:"generated_at"`
	RateLimits  []core.RateLimitStatus `json:"rate_limits"`
}

// RateLimitsHandler serves a read-only view of the method throttles.
func RateLimitsHandler(source RateLimitSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("rate limiter not initialized"))
			return
		}

		statuses := source.Status()
		if statuses == nil {
			statuses = []core.RateLimitStatus{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(RateLimitsResponse{
			GeneratedAt: time.Now().UTC(),
			RateLimits:  statuses,
		})
	}
}
