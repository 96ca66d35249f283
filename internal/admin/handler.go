// Package admin serves the operator surface: audit queries and quota
// management. These routes never enter the governance pipeline; callers must
// hold the privileged role instead.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/identity"
	"gatekeeper/internal/policy"
	"gatekeeper/internal/ratelimit/models"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	adminmw "gatekeeper/pkg/platform/middleware/admin"
	"gatekeeper/pkg/platform/middleware/metadata"
	request "gatekeeper/pkg/platform/middleware/request"
	"gatekeeper/pkg/requestcontext"
)

// AuditService is the operator read path over audit records.
type AuditService interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]audit.Record, error)
	Query(ctx context.Context, filter audit.Filter, limit int) ([]audit.Record, error)
	UsageByDepartment(ctx context.Context, days int) ([]audit.DepartmentUsage, time.Time, time.Time, error)
}

// QuotaService reads and clears per-user rate limit state.
type QuotaService interface {
	Remaining(ctx context.Context, userID string, spec *policy.RateLimitSpec) (*models.RateLimitResult, error)
	Reset(ctx context.Context, userID string) error
}

type PolicyResolver interface {
	Resolve(role string) (policy.Policy, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// Handler handles the /admin endpoints.
type Handler struct {
	audits     AuditService
	quotas     QuotaService
	policies   PolicyResolver
	recorder   AuditRecorder
	privileged string
	logger     *slog.Logger
}

// New creates a new admin Handler. A nil recorder leaves admin calls unaudited.
func New(
	audits AuditService,
	quotas QuotaService,
	policies PolicyResolver,
	recorder AuditRecorder,
	privilegedRole string,
	logger *slog.Logger) *Handler {
	return &Handler{
		audits:     audits,
		quotas:     quotas,
		policies:   policies,
		recorder:   recorder,
		privileged: privilegedRole,
		logger:     logger,
	}
}

// Register mounts the admin routes. Identity must already be in the context.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.auditAccess)
		r.Use(adminmw.RequireRole(h.privileged, identity.RoleFromContext, h.logger))
		r.Get("/audit/logs", h.handleQueryAuditLogs)
		r.Get("/audit/logs/{user_id}", h.handleListAuditLogs)
		r.Get("/audit/usage-by-department", h.handleUsageByDepartment)
		r.Get("/ratelimit/{user_id}", h.handleGetQuota)
		r.Delete("/ratelimit/{user_id}", h.handleResetQuota)
	})
}

func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	limit, err := intQuery(r, "limit", audit.DefaultLogLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.audits.ListByUser(ctx, userID, limit)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list audit logs", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &AuditLogsResponse{
		UserID:  userID,
		Entries: entries,
		Count:   len(entries),
	})
}

// handleQueryAuditLogs filters by ?user_id=, ?department=, ?since= and
// ?until= (RFC 3339, inclusive).
func (h *Handler) handleQueryAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	limit, err := intQuery(r, "limit", audit.DefaultLogLimit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter := audit.Filter{
		UserID:     strings.TrimSpace(q.Get("user_id")),
		Department: strings.TrimSpace(q.Get("department")),
	}
	if filter.Since, err = timeQuery(r, "since"); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if filter.Until, err = timeQuery(r, "until"); err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.audits.Query(ctx, filter, limit)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to query audit logs", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newAuditQueryResponse(filter, entries))
}

func (h *Handler) handleUsageByDepartment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days, err := intQuery(r, "days", audit.DefaultUsageDays)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	usage, since, until, err := h.audits.UsageByDepartment(ctx, days)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to aggregate usage", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, newUsageResponse(days, since, until, usage))
}

// handleGetQuota reports the user's standing under the role given by ?role=.
func (h *Handler) handleGetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	role := strings.TrimSpace(r.URL.Query().Get("role"))
	if role == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "role query parameter is required"))
		return
	}
	pol, err := h.policies.Resolve(role)
	if err != nil {
		var notFound *policy.PolicyNotFoundError
		if errors.As(err, &notFound) {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown role"))
			return
		}
		h.writeServiceError(ctx, w, "failed to resolve policy", err)
		return
	}

	resp := &models.QuotaResponse{UserID: userID, Role: pol.Role}
	if pol.Unlimited() {
		resp.Unlimited = true
		resp.QuotaRemaining = models.Unlimited
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}

	result, err := h.quotas.Remaining(ctx, userID, pol.RateLimit)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to read quota", err)
		return
	}
	resp.QuotaLimit = result.Limit
	resp.QuotaRemaining = result.Remaining
	resp.WindowSeconds = pol.RateLimit.WindowSeconds
	resp.QuotaReset = &result.ResetAt
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleResetQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	if err := h.quotas.Reset(ctx, userID); err != nil {
		h.writeServiceError(ctx, w, "failed to reset quota", err)
		return
	}
	h.logger.InfoContext(ctx, "rate limit reset by operator",
		"request_id", request.GetRequestID(ctx),
		"user_id", userID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError passes client errors through and hides internal ones.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeValidation || code == dErrors.CodeBadRequest || code == dErrors.CodeNotFound {
		httputil.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
	if code == dErrors.CodeUnavailable {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
}

// auditAccess records every admin call, including denied ones.
func (h *Handler) auditAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.recorder == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ctx := r.Context()
		id, _ := identity.FromContext(ctx)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		rec := audit.Record{
			Timestamp:      requestcontext.Now(ctx).UTC(),
			UserID:         id.UserID,
			Role:           id.Role,
			Department:     id.Department,
			Action:         "admin " + r.Method + " " + r.URL.Path,
			Endpoint:       r.URL.Path,
			Method:         r.Method,
			RequestSize:    max(r.ContentLength, 0),
			ResponseSize:   int64(ww.BytesWritten()),
			ResponseTimeMS: float64(time.Since(start).Microseconds()) / 1000,
			StatusCode:     status,
			IPAddress:      metadata.GetClientIP(ctx),
			UserAgent:      metadata.GetUserAgent(ctx),
			RequestID:      request.GetRequestID(ctx),
			Outcome:        audit.OutcomeComplete,
		}
		if status == http.StatusForbidden || status == http.StatusUnauthorized {
			rec.Outcome = audit.OutcomeRejected
			rec.Reason = "forbidden"
			rec.Violation = audit.ViolationUnauthorizedAccess
		}
		if err := h.recorder.Record(ctx, rec); err != nil {
			h.logger.WarnContext(ctx, "admin call not audited",
				"request_id", rec.RequestID,
				"error", err,
			)
		}
	})
}

func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, name+" must be an integer")
	}
	return v, nil
}

func timeQuery(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, name+" must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}
