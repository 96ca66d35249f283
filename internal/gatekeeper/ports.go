package gatekeeper

import (
	"context"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/policy"
	"gatekeeper/internal/ratelimit/models"
	"gatekeeper/internal/redaction"
)

// PolicyResolver maps a role to its policy. Unknown roles return
// *policy.PolicyNotFoundError.
type PolicyResolver interface {
	Resolve(role string) (policy.Policy, error)
}

// Limiter admits or denies a request. On store failure it returns a denied
// result together with the error.
type Limiter interface {
	CheckAndRecord(ctx context.Context, userID string, spec *policy.RateLimitSpec) (*models.RateLimitResult, error)
	Degraded() bool
}

// Redactor masks sensitive content in a decoded payload.
type Redactor interface {
	RedactPayload(ctx context.Context, payload any, lang string, p policy.Policy) (any, redaction.Result, error)
}

// AuditRecorder appends one record per execution.
type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) error
}
