// Package gatekeeper runs the governance steps for every governed request.
//
// An execution walks AUTHENTICATED, POLICY_RESOLVED, RATE_CHECKED, HANDLED,
// REDACTED, AUDITED and COMPLETE in that order. A failing step records an
// audit entry for what was attempted and ends in REJECTED. The pipeline
// holds no locks; atomicity lives in the counter and audit stores.
package gatekeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/policy"
	"gatekeeper/internal/ratelimit/models"
	"gatekeeper/internal/redaction"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/requestcontext"
)

const maxViolationDetails = 1000

type Pipeline struct {
	policies PolicyResolver
	limiter  Limiter
	redactor Redactor
	recorder AuditRecorder
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

func New(policies PolicyResolver, limiter Limiter, redactor Redactor, recorder AuditRecorder, opts ...Option) (*Pipeline, error) {
	if policies == nil {
		return nil, errors.New("policy resolver is required")
	}
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}
	if redactor == nil {
		return nil, errors.New("redactor is required")
	}
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	p := &Pipeline{
		policies: policies,
		limiter:  limiter,
		redactor: redactor,
		recorder: recorder,
		logger:   slog.Default(),
		tracer:   otel.Tracer("gatekeeper"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Execute governs one call to handle. It never returns nil and never panics
// because of the handler; every failure is expressed in the Outcome.
func (p *Pipeline) Execute(ctx context.Context, req Request, handle Handler) *Outcome {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "gatekeeper.execute")
	defer span.End()

	out := &Outcome{}
	defer func() {
		span.SetAttributes(
			attribute.String("state", out.State.String()),
			attribute.String("reason", string(out.Reason)),
			attribute.Int("status", out.Status),
		)
		p.metrics.observe(out, time.Since(start).Seconds())
	}()

	if err := req.Identity.Validate(); err != nil {
		p.reject(ctx, req, out, StateAuthenticated, ReasonUnauthenticated, err)
		out.enter(StateRejected)
		return out
	}
	out.enter(StateAuthenticated)

	pol, err := p.resolve(ctx, req)
	if err != nil {
		return p.rejectAndAudit(ctx, req, out, start, StatePolicyResolved, ReasonUnknownRole, err)
	}
	out.Policy = &pol
	out.enter(StatePolicyResolved)

	if err := p.admit(ctx, req, pol, out); err != nil {
		return p.rejectAndAudit(ctx, req, out, start, StateRateChecked, ReasonRateLimited, err)
	}
	out.enter(StateRateChecked)

	// A failing handler still counts as HANDLED: it ran and its failure is
	// what gets audited.
	resp, err := p.handle(ctx, req, handle)
	out.enter(StateHandled)
	if err != nil {
		return p.rejectAndAudit(ctx, req, out, start, StateHandled, ReasonHandlerFailed, err)
	}

	if reason, err := p.redact(ctx, req, pol, resp, out); err != nil {
		return p.rejectAndAudit(ctx, req, out, start, StateRedacted, reason, err)
	}
	out.enter(StateRedacted)

	p.audit(ctx, req, out, start)
	out.enter(StateComplete)
	return out
}

func (p *Pipeline) resolve(ctx context.Context, req Request) (policy.Policy, error) {
	_, span := p.tracer.Start(ctx, "gatekeeper.resolve_policy")
	defer span.End()

	pol, err := p.policies.Resolve(req.Identity.Role)
	if err != nil {
		span.RecordError(err)
		return policy.Policy{}, err
	}
	span.SetAttributes(
		attribute.String("role", pol.Role),
		attribute.Bool("redaction_enabled", pol.RedactionEnabled),
	)
	return pol, nil
}

func (p *Pipeline) admit(ctx context.Context, req Request, pol policy.Policy, out *Outcome) error {
	ctx, span := p.tracer.Start(ctx, "gatekeeper.rate_check")
	defer span.End()

	result, err := p.limiter.CheckAndRecord(ctx, req.Identity.UserID, pol.RateLimit)
	out.Degraded = p.limiter.Degraded()
	out.RateLimit = result
	if err != nil {
		span.RecordError(err)
		return err
	}
	if result == nil {
		return errors.New("limiter returned no result")
	}
	span.SetAttributes(
		attribute.Bool("allowed", result.Allowed),
		attribute.Int("remaining", result.Remaining),
	)
	if !result.Allowed {
		return models.ExceededFrom(result)
	}
	return nil
}

func (p *Pipeline) handle(ctx context.Context, req Request, handle Handler) (resp Response, err error) {
	ctx, span := p.tracer.Start(ctx, "gatekeeper.handle")
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		if err != nil {
			span.RecordError(err)
		}
	}()
	return handle(ctx, req)
}

// redact masks the handler's JSON body when the policy asks for it and
// encodes the final payload. Raw and empty bodies pass through.
func (p *Pipeline) redact(ctx context.Context, req Request, pol policy.Policy, resp Response, out *Outcome) (Reason, error) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Raw != nil || resp.Body == nil {
		out.Status = status
		out.Payload = resp.Raw
		out.ContentType = resp.ContentType
		return "", nil
	}

	if !pol.RedactionEnabled && resp.Encoded != nil {
		out.Status = status
		out.Body = resp.Body
		out.Payload = resp.Encoded
		out.ContentType = resp.ContentType
		return "", nil
	}

	ctx, span := p.tracer.Start(ctx, "gatekeeper.redact")
	defer span.End()

	lang := req.Language
	if l, ok := redaction.LanguageOf(resp.Body); ok && l != "" {
		lang = l
	}
	body, result, err := p.redactor.RedactPayload(ctx, resp.Body, lang, pol)
	if err != nil {
		span.RecordError(err)
		var langErr *redaction.UnsupportedLanguageError
		if errors.As(err, &langErr) {
			return ReasonUnsupportedLanguage, err
		}
		return ReasonDetectionFailed, err
	}
	payload, err := encodeJSON(body)
	if err != nil {
		return ReasonHandlerFailed, fmt.Errorf("encode response: %w", err)
	}
	span.SetAttributes(
		attribute.Bool("pii_detected", result.PIIDetected),
		attribute.Int("pii_count", result.Count),
	)

	out.Status = status
	out.Body = body
	out.Payload = payload
	out.ContentType = contentTypeJSON
	if resp.ContentType != "" {
		out.ContentType = resp.ContentType
	}
	out.Redaction = result
	return "", nil
}

// encodeJSON marshals v without escaping HTML characters, matching what the
// downstream handler would have written.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (p *Pipeline) reject(ctx context.Context, req Request, out *Outcome, at State, reason Reason, err error) {
	out.FailedAt = at
	out.Reason = reason
	out.Err = err
	out.Status = reason.Status()
	out.Body = rejectionBody(reason, err, out.RateLimit)
	out.Payload, _ = json.Marshal(out.Body)
	out.ContentType = contentTypeJSON
	// Nothing from a failed redaction may leak.
	out.Redaction = redaction.Result{}

	p.logger.WarnContext(ctx, "governed request rejected",
		"request_id", req.RequestID,
		"user_id", req.Identity.UserID,
		"role", req.Identity.Role,
		"endpoint", req.Endpoint,
		"stage", at.String(),
		"reason", string(reason),
		"error", err,
	)
}

func (p *Pipeline) rejectAndAudit(ctx context.Context, req Request, out *Outcome, start time.Time, at State, reason Reason, err error) *Outcome {
	p.reject(ctx, req, out, at, reason, err)
	p.audit(ctx, req, out, start)
	out.enter(StateRejected)
	return out
}

// audit writes the record for this execution. AUDITED is entered once the
// write was attempted; a failed write is logged and counted and the caller's
// response goes out regardless.
func (p *Pipeline) audit(ctx context.Context, req Request, out *Outcome, start time.Time) {
	ctx, span := p.tracer.Start(ctx, "gatekeeper.audit")
	defer span.End()

	rec := buildRecord(ctx, req, out, start)
	out.Audit = rec
	if err := p.recorder.Record(ctx, rec); err != nil {
		span.RecordError(err)
		out.AuditErr = err
		p.metrics.incAuditFailure()
		p.logger.WarnContext(ctx, "continuing without audit record",
			"request_id", req.RequestID,
			"record_id", rec.ID.String(),
		)
	}
	out.enter(StateAudited)
}

func buildRecord(ctx context.Context, req Request, out *Outcome, start time.Time) audit.Record {
	rec := audit.Record{
		ID:               uuid.New(),
		Timestamp:        requestcontext.Now(ctx).UTC(),
		UserID:           req.Identity.UserID,
		Role:             req.Identity.Role,
		Department:       req.Identity.Department,
		Action:           req.Method + " " + req.Endpoint,
		Endpoint:         req.Endpoint,
		Method:           req.Method,
		RequestSize:      req.RequestSize,
		ResponseSize:     int64(len(out.Payload)),
		ResponseTimeMS:   float64(time.Since(start).Microseconds()) / 1000,
		StatusCode:       out.Status,
		PIIDetected:      out.Redaction.PIIDetected,
		PIITypes:         out.Redaction.Types,
		PIICount:         out.Redaction.Count,
		RedactionApplied: out.Redaction.Applied,
		IPAddress:        req.ClientIP,
		UserAgent:        req.UserAgent,
		RequestID:        req.RequestID,
		Outcome:          audit.OutcomeComplete,
	}
	if out.Policy != nil {
		rec.Role = out.Policy.Role
	}
	if rl := out.RateLimit; rl != nil && !rl.IsUnlimited() {
		remaining := rl.Remaining
		rec.RateLimitRemaining = &remaining
	}
	if out.Reason == "" {
		return rec
	}

	rec.Outcome = audit.OutcomeRejected
	rec.Reason = string(out.Reason)
	rec.Violation = out.Reason.violation()
	if out.Err != nil {
		rec.ViolationDetails = truncate(out.Err.Error(), maxViolationDetails)
	}
	if out.Reason == ReasonRateLimited {
		var exceeded *models.RateLimitExceededError
		if errors.As(out.Err, &exceeded) {
			rec.Action = audit.ActionRateLimitViolation
		} else {
			// Store failure: the caller did not exceed anything.
			rec.Violation = ""
		}
	}
	return rec
}

func rejectionBody(reason Reason, err error, rl *models.RateLimitResult) any {
	if reason == ReasonRateLimited && rl != nil {
		return models.NewExceededResponse(rl)
	}
	resp := httputil.ErrorResponse{Error: string(reason)}
	if reason.CallerVisible() && err != nil {
		resp.ErrorDescription = err.Error()
	}
	return resp
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
