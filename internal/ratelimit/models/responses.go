package models

import "time"

// RateLimitExceededResponse is the API response when a user quota is exceeded.
type RateLimitExceededResponse struct {
	Error          string    `json:"error"` // "rate_limited"
	Message        string    `json:"message"`
	RetryAfter     int       `json:"retry_after"` // seconds
	QuotaLimit     int       `json:"quota_limit"`
	QuotaRemaining int       `json:"quota_remaining"`
	QuotaReset     time.Time `json:"quota_reset"`
}

// QuotaResponse reports a user's current standing without consuming quota.
type QuotaResponse struct {
	UserID         string     `json:"user_id"`
	Role           string     `json:"role"`
	Unlimited      bool       `json:"unlimited"`
	QuotaLimit     int        `json:"quota_limit"`
	QuotaRemaining int        `json:"quota_remaining"`
	WindowSeconds  int        `json:"window_seconds,omitempty"`
	QuotaReset     *time.Time `json:"quota_reset,omitempty"`
}

// NewExceededResponse builds the 429 body for a denied result.
func NewExceededResponse(r *RateLimitResult) *RateLimitExceededResponse {
	return &RateLimitExceededResponse{
		Error:          "rate_limited",
		Message:        "You have exceeded your request quota. Please try again later.",
		RetryAfter:     r.RetryAfter,
		QuotaLimit:     r.Limit,
		QuotaRemaining: 0,
		QuotaReset:     r.ResetAt,
	}
}
