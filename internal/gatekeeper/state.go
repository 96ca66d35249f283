package gatekeeper

import (
	"net/http"

	"gatekeeper/internal/audit"
)

// State is a step of one governed execution. States are entered in
// declaration order; StateRejected is the alternative terminal state.
type State int

const (
	StateAuthenticated State = iota + 1
	StatePolicyResolved
	StateRateChecked
	StateHandled
	StateRedacted
	StateAudited
	StateComplete
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StatePolicyResolved:
		return "POLICY_RESOLVED"
	case StateRateChecked:
		return "RATE_CHECKED"
	case StateHandled:
		return "HANDLED"
	case StateRedacted:
		return "REDACTED"
	case StateAudited:
		return "AUDITED"
	case StateComplete:
		return "COMPLETE"
	case StateRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Reason is the machine-readable cause of a rejection.
type Reason string

const (
	ReasonUnauthenticated     Reason = "unauthenticated"
	ReasonUnknownRole         Reason = "unknown_role"
	ReasonRateLimited         Reason = "rate_limited"
	ReasonUnsupportedLanguage Reason = "unsupported_language"
	ReasonDetectionFailed     Reason = "detection_failed"
	ReasonHandlerFailed       Reason = "handler_failed"
)

// Status is the HTTP-equivalent status for the reason.
func (r Reason) Status() int {
	switch r {
	case ReasonUnauthenticated:
		return http.StatusUnauthorized
	case ReasonUnknownRole:
		return http.StatusForbidden
	case ReasonRateLimited:
		return http.StatusTooManyRequests
	case ReasonUnsupportedLanguage:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CallerVisible reports whether the error description may be shown to the caller.
func (r Reason) CallerVisible() bool {
	return r.Status() < http.StatusInternalServerError
}

func (r Reason) violation() string {
	switch r {
	case ReasonUnknownRole:
		return audit.ViolationUnknownRole
	case ReasonRateLimited:
		return audit.ViolationRateLimitExceeded
	case ReasonUnsupportedLanguage:
		return audit.ViolationUnsupportedLanguage
	case ReasonDetectionFailed:
		return audit.ViolationDetectionFailed
	case ReasonHandlerFailed:
		return audit.ViolationHandlerFailed
	default:
		return ""
	}
}
