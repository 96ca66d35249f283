package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gatekeeper/internal/policy"
	"gatekeeper/internal/ratelimit/metrics"
	"gatekeeper/internal/ratelimit/models"
	"gatekeeper/internal/ratelimit/ports"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/circuit"
	"gatekeeper/pkg/platform/sentinel"
	"gatekeeper/pkg/requestcontext"
)

// CounterStore is re-exported so callers need not import ports.
type CounterStore = ports.CounterStore

const (
	defaultStoreTimeout = 250 * time.Millisecond
	// degradedRetryAfter is advertised when the store could not be consulted.
	degradedRetryAfter = 5
)

// Service decides admission for one user against a sliding-window quota.
type Service struct {
	store   CounterStore
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStoreTimeout bounds each counter store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithCircuitBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(store CounterStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("counter store is required")
	}
	svc := &Service{
		store:   store,
		timeout: defaultStoreTimeout,
		breaker: circuit.New("ratelimit-store"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CheckAndRecord admits or denies one request for userID. A nil spec is
// unlimited. A quota denial is a normal result with a nil error. When the
// store fails or times out the call is denied and the error is returned
// alongside the denial.
func (s *Service) CheckAndRecord(ctx context.Context, userID string, spec *policy.RateLimitSpec) (*models.RateLimitResult, error) {
	if spec == nil {
		s.metrics.IncCheck(metrics.OutcomeUnlimited)
		return models.UnlimitedResult(), nil
	}

	now := requestcontext.Now(ctx)
	key := models.NewUserKey(userID)

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.store.CheckAndIncrement(storeCtx, key, spec.MaxRequests, spec.Window(), now)
	s.metrics.ObserveStoreLatency(time.Since(start).Seconds())

	if err != nil {
		return s.failClosed(ctx, userID, spec, now, err)
	}
	s.recordSuccess(ctx)

	if !result.Allowed {
		result.Remaining = 0
		result.RetryAfter = models.RetryAfterSeconds(now, result.ResetAt)
		s.metrics.IncCheck(metrics.OutcomeDenied)
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"user_id", userID,
			"limit", spec.MaxRequests,
			"window_seconds", spec.WindowSeconds,
			"retry_after", result.RetryAfter,
		)
		return result, nil
	}

	s.metrics.IncCheck(metrics.OutcomeAllowed)
	return result, nil
}

func (s *Service) failClosed(ctx context.Context, userID string, spec *policy.RateLimitSpec, now time.Time, err error) (*models.RateLimitResult, error) {
	outcome := metrics.OutcomeError
	if errors.Is(err, context.DeadlineExceeded) {
		outcome = metrics.OutcomeTimeout
		err = &sentinel.StoreTimeoutError{Store: "ratelimit", Op: "check_and_increment", Timeout: s.timeout}
	}
	s.metrics.IncCheck(outcome)

	_, change := s.breaker.RecordFailure()
	if change.Opened {
		s.metrics.SetCircuitOpen(true)
		s.logger.ErrorContext(ctx, "rate limit store circuit opened", "breaker", s.breaker.Name())
	}
	s.logger.ErrorContext(ctx, "rate limit store unavailable, denying request",
		"user_id", userID,
		"error", err,
	)

	denied := &models.RateLimitResult{
		Allowed:    false,
		Limit:      spec.MaxRequests,
		Remaining:  0,
		ResetAt:    now.Add(degradedRetryAfter * time.Second),
		RetryAfter: degradedRetryAfter,
	}
	return denied, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
}

func (s *Service) recordSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetCircuitOpen(false)
		s.logger.InfoContext(ctx, "rate limit store circuit closed", "breaker", s.breaker.Name())
	}
}

// Degraded reports whether the counter store is currently failing.
func (s *Service) Degraded() bool {
	return s.breaker.IsOpen()
}

// Remaining reports the quota left for userID without consuming any.
func (s *Service) Remaining(ctx context.Context, userID string, spec *policy.RateLimitSpec) (*models.RateLimitResult, error) {
	if spec == nil {
		return models.UnlimitedResult(), nil
	}
	now := requestcontext.Now(ctx)

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, resetAt, err := s.store.Count(storeCtx, models.NewUserKey(userID), spec.Window(), now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
	}
	remaining := max(spec.MaxRequests-count, 0)
	if resetAt.IsZero() {
		resetAt = now.Add(spec.Window())
	}
	return &models.RateLimitResult{
		Allowed:   remaining > 0,
		Limit:     spec.MaxRequests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears userID's window.
func (s *Service) Reset(ctx context.Context, userID string) error {
	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Reset(storeCtx, models.NewUserKey(userID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit store unavailable")
	}
	s.metrics.IncResets()
	s.logger.InfoContext(ctx, "rate limit counter reset", "user_id", userID)
	return nil
}
