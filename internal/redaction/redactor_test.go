package redaction_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatekeeper/internal/policy"
	"gatekeeper/internal/redaction"
	"gatekeeper/internal/redaction/detector/pattern"
	"gatekeeper/internal/redaction/mocks"
)

// countingDetector wraps a real detector and counts calls.
type countingDetector struct {
	inner redaction.DetectionPort
	calls atomic.Int32
}

func (c *countingDetector) Detect(ctx context.Context, text string, lang redaction.Language) ([]redaction.Span, error) {
	c.calls.Add(1)
	return c.inner.Detect(ctx, text, lang)
}

func (c *countingDetector) Name() string { return "counting" }

// =============================================================================
// Redactor Test Suite
// =============================================================================

type RedactorSuite struct {
	suite.Suite
	detector *countingDetector
	redactor *redaction.Redactor
	masking  policy.Policy
	verbatim policy.Policy
}

func TestRedactorSuite(t *testing.T) {
	suite.Run(t, new(RedactorSuite))
}

func (s *RedactorSuite) SetupTest() {
	s.detector = &countingDetector{inner: pattern.New()}
	var err error
	s.redactor, err = redaction.New(s.detector,
		redaction.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		redaction.WithMetrics(redaction.NewMetricsWithRegisterer(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
	s.masking = policy.Policy{Role: "junior_intern", RedactionEnabled: true}
	s.verbatim = policy.Policy{Role: "admin", RedactionEnabled: false}
}

func (s *RedactorSuite) TestNew() {
	_, err := redaction.New(nil)
	s.Error(err)
	s.Contains(err.Error(), "detector is required")
}

func (s *RedactorSuite) TestRedactsEmailAndPhone() {
	ctx := context.Background()
	input := "Contact John at john@example.com or 555-123-4567"

	out, res, err := s.redactor.Redact(ctx, input, "en", s.masking)
	s.Require().NoError(err)

	s.NotContains(out, "john@example.com")
	s.NotContains(out, "555-123-4567")
	s.Contains(out, "[REDACTED_EMAIL]")
	s.Contains(out, "[REDACTED_PHONE]")
	s.True(res.PIIDetected)
	s.True(res.Applied)
	s.Contains(res.Types, string(redaction.EntityEmail))
	s.Contains(res.Types, string(redaction.EntityPhone))
	s.GreaterOrEqual(res.Count, 2)
}

func (s *RedactorSuite) TestDisabledPolicyIsIdentity() {
	ctx := context.Background()
	inputs := []string{
		"Contact John at john@example.com or 555-123-4567",
		"",
		"no pii here",
		"[REDACTED_EMAIL]",
	}
	for _, input := range inputs {
		out, res, err := s.redactor.Redact(ctx, input, "xx", s.verbatim)
		s.Require().NoError(err, "language is not checked when redaction is off")
		s.Equal(input, out)
		s.False(res.Applied)
	}

	payload := map[string]any{"response": "mail john@example.com"}
	out, _, err := s.redactor.RedactPayload(ctx, payload, "en", s.verbatim)
	s.Require().NoError(err)
	s.Equal(payload, out)

	s.Equal(int32(0), s.detector.calls.Load())
}

func (s *RedactorSuite) TestNoSpansLeavesTextUnchanged() {
	out, res, err := s.redactor.Redact(context.Background(), "the weather is fine", "en", s.masking)
	s.Require().NoError(err)
	s.Equal("the weather is fine", out)
	s.False(res.PIIDetected)
	s.Zero(res.Count)
}

func (s *RedactorSuite) TestIdempotentOnMaskedText() {
	ctx := context.Background()
	first, _, err := s.redactor.Redact(ctx, "Contact John at john@example.com or 555-123-4567", "en", s.masking)
	s.Require().NoError(err)

	second, res, err := s.redactor.Redact(ctx, first, "en", s.masking)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.False(res.PIIDetected)
}

func (s *RedactorSuite) TestUnsupportedLanguage() {
	_, _, err := s.redactor.Redact(context.Background(), "bonjour", "fr", s.masking)
	var langErr *redaction.UnsupportedLanguageError
	s.Require().ErrorAs(err, &langErr)
	s.Equal(int32(0), s.detector.calls.Load())
}

func (s *RedactorSuite) TestItalianFiscalCode() {
	ctx := context.Background()
	text := "Il codice fiscale è RSSMRA85T10A562S"

	out, res, err := s.redactor.Redact(ctx, text, "it", s.masking)
	s.Require().NoError(err)
	s.Equal("Il codice fiscale è [REDACTED_CODICE_FISCALE]", out)
	s.Equal([]string{string(redaction.EntityFiscalCode)}, res.Types)

	out, _, err = s.redactor.Redact(ctx, text, "en", s.masking)
	s.Require().NoError(err)
	s.Equal(text, out, "italian-only entities are not detected in english")
}

func (s *RedactorSuite) TestRedactPayloadWalksStringLeaves() {
	ctx := context.Background()
	payload := map[string]any{
		"language": "en",
		"query":    "who is john@example.com",
		"items":    []any{"call 555-123-4567", float64(42), true, nil},
		"nested":   map[string]any{"john@example.com": "keys stay"},
	}

	out, res, err := s.redactor.RedactPayload(ctx, payload, "en", s.masking)
	s.Require().NoError(err)

	obj := out.(map[string]any)
	s.Equal("en", obj["language"])
	s.Equal("who is [REDACTED_EMAIL]", obj["query"])
	s.Equal([]any{"call [REDACTED_PHONE]", float64(42), true, nil}, obj["items"])
	s.Equal(map[string]any{"john@example.com": "keys stay"}, obj["nested"])
	s.Equal(2, res.Count)
	s.Equal([]string{"EMAIL_ADDRESS", "PHONE_NUMBER"}, res.Types)

	s.Equal("who is john@example.com", payload["query"], "input is not modified")
}

func (s *RedactorSuite) TestLanguageOf() {
	lang, ok := redaction.LanguageOf(map[string]any{"language": "it"})
	s.True(ok)
	s.Equal("it", lang)

	_, ok = redaction.LanguageOf([]any{"it"})
	s.False(ok)
}

// =============================================================================
// Detector failure handling
// =============================================================================

func TestDetectorFailureIsCapabilityError(t *testing.T) {
	ctrl := gomock.NewController(t)
	detector := mocks.NewMockDetectionPort(ctrl)
	detector.EXPECT().Name().Return("mock").AnyTimes()
	detector.EXPECT().Detect(gomock.Any(), "john@example.com", redaction.LanguageEnglish).
		Return(nil, errors.New("analyzer offline"))

	r, err := redaction.New(detector, redaction.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := r.Redact(context.Background(), "john@example.com", "en", policy.Policy{RedactionEnabled: true})
	var capErr *redaction.DetectionCapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected DetectionCapabilityError, got %v", err)
	}
	if strings.Contains(out, "john@example.com") {
		t.Fatal("unredacted content returned on detector failure")
	}
}

func TestDetectorCallIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	detector := mocks.NewMockDetectionPort(ctrl)
	detector.EXPECT().Name().Return("slow").AnyTimes()
	detector.EXPECT().Detect(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ redaction.Language) ([]redaction.Span, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	r, err := redaction.New(detector,
		redaction.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		redaction.WithTimeout(20*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = r.Redact(context.Background(), "anything", "en", policy.Policy{RedactionEnabled: true})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSpanOverlappingMaskStillRedactsRemainder(t *testing.T) {
	text := "[REDACTED_NAME] john@example.com"
	ctrl := gomock.NewController(t)
	detector := mocks.NewMockDetectionPort(ctrl)
	detector.EXPECT().Name().Return("mock").AnyTimes()
	detector.EXPECT().Detect(gomock.Any(), text, redaction.LanguageEnglish).
		Return([]redaction.Span{{Start: 9, End: len(text), EntityType: redaction.EntityPerson, Confidence: 0.8}}, nil)

	r, err := redaction.New(detector, redaction.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}

	out, res, err := r.Redact(context.Background(), text, "en", policy.Policy{RedactionEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "john@example.com") {
		t.Fatalf("email left unmasked: %q", out)
	}
	if !res.PIIDetected || res.Count != 1 {
		t.Fatalf("expected one detection, got %+v", res)
	}
}
