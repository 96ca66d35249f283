// Package redaction masks sensitive spans in response content.
//
// Detection is delegated to a DetectionPort. The Redactor owns what happens
// to the spans: clamping, merging, masking and keeping already masked text
// stable.
package redaction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatekeeper/internal/policy"
)

const defaultDetectionTimeout = 2 * time.Second

type Redactor struct {
	detector      DetectionPort
	timeout       time.Duration
	minConfidence float64
	logger        *slog.Logger
	metrics       *Metrics
}

type Option func(*Redactor)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Redactor) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Redactor) {
		r.metrics = m
	}
}

// WithTimeout bounds each detector call.
func WithTimeout(d time.Duration) Option {
	return func(r *Redactor) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMinConfidence ignores spans scored below c.
func WithMinConfidence(c float64) Option {
	return func(r *Redactor) {
		r.minConfidence = c
	}
}

func New(detector DetectionPort, opts ...Option) (*Redactor, error) {
	if detector == nil {
		return nil, errors.New("detector is required")
	}
	r := &Redactor{
		detector: detector,
		timeout:  defaultDetectionTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Redact returns text with every detected span masked. When the policy does
// not require redaction the text is returned as is and the detector is not
// called.
func (r *Redactor) Redact(ctx context.Context, text, lang string, p policy.Policy) (string, Result, error) {
	if !p.RedactionEnabled {
		return text, Result{}, nil
	}
	language, err := ParseLanguage(lang)
	if err != nil {
		return "", Result{}, err
	}
	return r.redactText(ctx, text, language)
}

func (r *Redactor) redactText(ctx context.Context, text string, lang Language) (string, Result, error) {
	if text == "" {
		return text, Result{Applied: true}, nil
	}

	detectCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	spans, err := r.detector.Detect(detectCtx, text, lang)
	r.metrics.observeCall(lang, time.Since(start).Seconds())
	if err != nil {
		r.metrics.incFailure(r.detector.Name())
		r.logger.ErrorContext(ctx, "pii detection failed",
			"detector", r.detector.Name(),
			"language", string(lang),
			"error", err,
		)
		var capErr *DetectionCapabilityError
		if errors.As(err, &capErr) {
			return "", Result{}, err
		}
		return "", Result{}, &DetectionCapabilityError{Detector: r.detector.Name(), Err: err}
	}

	masked := normalizeSpans(text, spans, r.minConfidence)
	r.metrics.addEntities(masked)
	return applyMasks(text, masked), summarize(masked), nil
}

// RedactPayload walks decoded JSON (maps, slices, scalars) and redacts every
// string leaf. Keys are never inspected. The input is not modified.
func (r *Redactor) RedactPayload(ctx context.Context, payload any, lang string, p policy.Policy) (any, Result, error) {
	if !p.RedactionEnabled {
		return payload, Result{}, nil
	}
	language, err := ParseLanguage(lang)
	if err != nil {
		return nil, Result{}, err
	}
	total := Result{Applied: true}
	out, err := r.walk(ctx, payload, language, &total)
	if err != nil {
		return nil, Result{}, err
	}
	return out, total, nil
}

func (r *Redactor) walk(ctx context.Context, v any, lang Language, total *Result) (any, error) {
	switch val := v.(type) {
	case string:
		redacted, res, err := r.redactText(ctx, val, lang)
		if err != nil {
			return nil, err
		}
		total.merge(res)
		return redacted, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			redacted, err := r.walk(ctx, child, lang, total)
			if err != nil {
				return nil, err
			}
			out[k] = redacted
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			redacted, err := r.walk(ctx, child, lang, total)
			if err != nil {
				return nil, err
			}
			out[i] = redacted
		}
		return out, nil
	default:
		return v, nil
	}
}

// LanguageOf reads the top-level "language" field of a decoded JSON object.
func LanguageOf(payload any) (string, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	lang, ok := obj["language"].(string)
	return lang, ok
}
