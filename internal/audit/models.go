package audit

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome of a governed execution as recorded.
const (
	OutcomeComplete = "complete"
	OutcomeRejected = "rejected"
)

// Violation kinds stored in Record.Violation.
const (
	ViolationRateLimitExceeded   = "rate_limit_exceeded"
	ViolationUnknownRole         = "unknown_role"
	ViolationUnsupportedLanguage = "unsupported_language"
	ViolationDetectionFailed     = "detection_failed"
	ViolationHandlerFailed       = "handler_failed"
	ViolationUnauthorizedAccess  = "unauthorized_access"
)

// ActionRateLimitViolation is the action recorded for quota rejections.
const ActionRateLimitViolation = "rate_limit_violation"

// Record is one immutable audit entry. It is never updated after Append.
type Record struct {
	ID                 uuid.UUID `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	UserID             string    `json:"user_id"`
	Role               string    `json:"role"`
	Department         string    `json:"department"`
	Action             string    `json:"action"`
	Endpoint           string    `json:"endpoint"`
	Method             string    `json:"method"`
	RequestSize        int64     `json:"request_size"`
	ResponseSize       int64     `json:"response_size"`
	ResponseTimeMS     float64   `json:"response_time_ms"`
	StatusCode         int       `json:"status_code"`
	PIIDetected        bool      `json:"pii_detected"`
	PIITypes           []string  `json:"pii_types"`
	PIICount           int       `json:"pii_count"`
	RedactionApplied   bool      `json:"redaction_applied"`
	RateLimitRemaining *int      `json:"rate_limit_remaining"`
	IPAddress          string    `json:"ip_address,omitempty"`
	UserAgent          string    `json:"user_agent,omitempty"`
	RequestID          string    `json:"request_id,omitempty"`
	Violation          string    `json:"violation,omitempty"`
	ViolationDetails   string    `json:"violation_details,omitempty"`
	Outcome            string    `json:"outcome"`
	Reason             string    `json:"reason,omitempty"`
}

// Filter narrows Query. Zero fields match everything.
type Filter struct {
	UserID     string
	Department string
	Since      time.Time
	Until      time.Time
}

// Matches reports whether r passes the filter. Since and Until are inclusive.
func (f Filter) Matches(r Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Department != "" && r.Department != f.Department {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// DepartmentUsage aggregates records for one department over a period.
type DepartmentUsage struct {
	Department        string  `json:"department"`
	TotalRequests     int     `json:"total_requests"`
	UniqueUsers       int     `json:"unique_users"`
	TotalPIIDetected  int     `json:"total_pii_detected"`
	TotalViolations   int     `json:"total_violations"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
}

// Aggregate computes per-department usage from records, sorted by department.
// Records without a department are counted under "unknown".
func Aggregate(records []Record) []DepartmentUsage {
	type acc struct {
		usage   DepartmentUsage
		users   map[string]struct{}
		totalMS float64
	}
	byDept := make(map[string]*acc)
	for _, r := range records {
		dept := r.Department
		if dept == "" {
			dept = "unknown"
		}
		a, ok := byDept[dept]
		if !ok {
			a = &acc{usage: DepartmentUsage{Department: dept}, users: make(map[string]struct{})}
			byDept[dept] = a
		}
		a.usage.TotalRequests++
		a.usage.TotalPIIDetected += r.PIICount
		if r.Violation != "" {
			a.usage.TotalViolations++
		}
		a.users[r.UserID] = struct{}{}
		a.totalMS += r.ResponseTimeMS
	}

	out := make([]DepartmentUsage, 0, len(byDept))
	for _, a := range byDept {
		a.usage.UniqueUsers = len(a.users)
		a.usage.AvgResponseTimeMS = a.totalMS / float64(a.usage.TotalRequests)
		out = append(out, a.usage)
	}
	slices.SortFunc(out, func(x, y DepartmentUsage) int {
		return strings.Compare(x.Department, y.Department)
	})
	return out
}
