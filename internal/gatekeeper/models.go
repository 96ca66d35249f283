package gatekeeper

import (
	"context"
	"slices"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/policy"
	"gatekeeper/internal/ratelimit/models"
	"gatekeeper/internal/redaction"
)

const contentTypeJSON = "application/json"

// Request describes one governed call independently of the transport.
type Request struct {
	Identity    identity.Identity
	Method      string
	Endpoint    string
	Language    string // caller hint; a "language" field in the response payload wins
	RequestSize int64
	RequestID   string
	ClientIP    string
	UserAgent   string
}

// Response is what the downstream handler produced. Body holds decoded JSON
// and is subject to redaction. Encoded, when set, holds the bytes Body was
// decoded from and is sent as is when the policy does not redact. Raw holds
// an opaque body that is passed through untouched; when Raw is set Body is
// ignored.
type Response struct {
	Status      int
	Body        any
	Encoded     []byte
	Raw         []byte
	ContentType string
}

// Handler is the governed downstream operation.
type Handler func(ctx context.Context, req Request) (Response, error)

// Outcome is the result of one execution.
type Outcome struct {
	// State is the terminal state, StateComplete or StateRejected.
	State State
	// Trace lists the states entered, in order.
	Trace []State
	// FailedAt is the step that caused a rejection.
	FailedAt State
	Reason   Reason
	Err      error

	Status      int
	Body        any
	Payload     []byte
	ContentType string

	Policy    *policy.Policy
	RateLimit *models.RateLimitResult
	Degraded  bool
	Redaction redaction.Result

	Audit    audit.Record
	AuditErr error
}

// Rejected reports whether the execution ended in StateRejected.
func (o *Outcome) Rejected() bool {
	return o.State == StateRejected
}

func (o *Outcome) enter(s State) {
	o.Trace = append(o.Trace, s)
	o.State = s
}

// Reached reports whether s was entered.
func (o *Outcome) Reached(s State) bool {
	return slices.Contains(o.Trace, s)
}
