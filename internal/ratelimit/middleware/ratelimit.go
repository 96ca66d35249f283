// Package middleware renders rate limit decisions onto HTTP responses.
package middleware

import (
	"net/http"
	"strconv"

	"gatekeeper/internal/ratelimit/models"
	"gatekeeper/pkg/platform/httputil"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderStatus     = "X-RateLimit-Status"
	HeaderRetryAfter = "Retry-After"

	StatusDegraded = "degraded"
)

// AddRateLimitHeaders sets the quota headers. Unlimited results only carry
// the remaining header with the value -1.
func AddRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult, degraded bool) {
	if degraded {
		w.Header().Set(HeaderStatus, StatusDegraded)
	}
	if result == nil {
		return
	}
	if result.IsUnlimited() {
		w.Header().Set(HeaderRemaining, strconv.Itoa(models.Unlimited))
		return
	}
	w.Header().Set(HeaderLimit, strconv.Itoa(result.Limit))
	w.Header().Set(HeaderRemaining, strconv.Itoa(result.Remaining))
	w.Header().Set(HeaderReset, strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// WriteRateLimitExceeded writes the 429 rejection body with Retry-After.
func WriteRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set(HeaderRetryAfter, strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, models.NewExceededResponse(result))
}
