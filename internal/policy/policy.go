// Package policy maps caller roles to governance policies.
//
// A Registry is an immutable snapshot. Reloads build a new Registry and swap
// it in through Holder; nothing mutates a published snapshot.
package policy

import (
	"fmt"
	"time"
)

// RateLimitSpec is a per-user quota: MaxRequests within a trailing window.
type RateLimitSpec struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// Window returns the trailing window length.
func (s RateLimitSpec) Window() time.Duration {
	return time.Duration(s.WindowSeconds) * time.Second
}

func (s RateLimitSpec) validate() error {
	if s.MaxRequests <= 0 {
		return fmt.Errorf("max requests must be positive, got %d", s.MaxRequests)
	}
	if s.WindowSeconds <= 0 {
		return fmt.Errorf("window seconds must be positive, got %d", s.WindowSeconds)
	}
	return nil
}

// Policy is what a role is allowed. A nil RateLimit means unlimited.
type Policy struct {
	Role             string         `json:"role"`
	RedactionEnabled bool           `json:"redaction_enabled"`
	RateLimit        *RateLimitSpec `json:"rate_limit,omitempty"`
	Aliases          []string       `json:"aliases,omitempty"`
}

// Unlimited reports whether the role has no quota.
func (p Policy) Unlimited() bool {
	return p.RateLimit == nil
}

// PolicyNotFoundError is returned for roles missing from the loaded table.
// Callers must deny; there is no fallback policy.
type PolicyNotFoundError struct {
	Role string
}

func (e *PolicyNotFoundError) Error() string {
	return fmt.Sprintf("policy not found for role %q", e.Role)
}
