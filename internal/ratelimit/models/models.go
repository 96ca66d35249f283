package models

import (
	"fmt"
	"math"
	"time"
)

// Unlimited is reported as Remaining for callers without a quota.
const Unlimited = -1

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// UnlimitedResult is returned for policies without a quota.
func UnlimitedResult() *RateLimitResult {
	return &RateLimitResult{Allowed: true, Remaining: Unlimited}
}

// IsUnlimited reports whether r came from a policy without a quota.
func (r *RateLimitResult) IsUnlimited() bool {
	return r != nil && r.Remaining == Unlimited
}

// RetryAfterSeconds is the whole number of seconds from now until resetAt, at least 1.
func RetryAfterSeconds(now, resetAt time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimitExceededError describes a denied admission. It is an expected
// outcome and carries what the caller needs to retry.
type RateLimitExceededError struct {
	Limit      int
	ResetAt    time.Time
	RetryAfter int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit of %d exceeded, retry after %ds", e.Limit, e.RetryAfter)
}

// ExceededFrom builds the rejection error for a denied result.
func ExceededFrom(r *RateLimitResult) *RateLimitExceededError {
	return &RateLimitExceededError{Limit: r.Limit, ResetAt: r.ResetAt, RetryAfter: r.RetryAfter}
}
