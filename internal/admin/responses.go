package admin

import (
	"math"
	"time"

	"gatekeeper/internal/audit"
)

// AuditLogsResponse is the HTTP response DTO for listAuditLogs.
type AuditLogsResponse struct {
	UserID  string         `json:"user_id"`
	Entries []audit.Record `json:"entries"`
	Count   int            `json:"count"`
}

// AuditQueryResponse is the HTTP response DTO for a filtered audit read.
type AuditQueryResponse struct {
	UserID     string         `json:"user_id,omitempty"`
	Department string         `json:"department,omitempty"`
	Since      *time.Time     `json:"since,omitempty"`
	Until      *time.Time     `json:"until,omitempty"`
	Entries    []audit.Record `json:"entries"`
	Count      int            `json:"count"`
}

func newAuditQueryResponse(filter audit.Filter, entries []audit.Record) *AuditQueryResponse {
	resp := &AuditQueryResponse{
		UserID:     filter.UserID,
		Department: filter.Department,
		Entries:    entries,
		Count:      len(entries),
	}
	if !filter.Since.IsZero() {
		resp.Since = &filter.Since
	}
	if !filter.Until.IsZero() {
		resp.Until = &filter.Until
	}
	return resp
}

// Period is the inclusive time range an aggregate covers.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UsageResponse is the HTTP response DTO for usageByDepartment.
type UsageResponse struct {
	Period      Period                  `json:"period"`
	Days        int                     `json:"days"`
	Departments []audit.DepartmentUsage `json:"departments"`
}

func newUsageResponse(days int, since, until time.Time, usage []audit.DepartmentUsage) *UsageResponse {
	departments := make([]audit.DepartmentUsage, len(usage))
	for i, u := range usage {
		u.AvgResponseTimeMS = math.Round(u.AvgResponseTimeMS*100) / 100
		departments[i] = u
	}
	return &UsageResponse{
		Period:      Period{Start: since, End: until},
		Days:        days,
		Departments: departments,
	}
}
