package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultWriteTimeout = 2 * time.Second

// Recorder appends audit records for governed requests. Writes never block
// the caller past the write timeout and failures never reach the caller's
// response; they come back as *AuditWriteError for logging.
//
// In synchronous mode (the default) Record returns after the store
// acknowledged the write. With WithAsyncBuffer records are queued and a
// single worker persists them; Close drains the queue.
type Recorder struct {
	store   Writer
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	queue  chan Record
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithWriteTimeout bounds each store append.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithAsyncBuffer queues up to size records for a background writer.
// A size of zero keeps writes synchronous.
func WithAsyncBuffer(size int) Option {
	return func(r *Recorder) {
		if size > 0 {
			r.queue = make(chan Record, size)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func NewRecorder(store Writer, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	r := &Recorder{
		store:   store,
		timeout: defaultWriteTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.queue != nil {
		r.done = make(chan struct{})
		go r.run()
	}
	return r, nil
}

// Record persists rec. The request context only contributes its values; the
// write runs detached so a disconnected client still leaves a trail.
func (r *Recorder) Record(ctx context.Context, rec Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = r.now()
	}
	if rec.Outcome == "" {
		rec.Outcome = OutcomeComplete
	}

	if r.queue == nil {
		return r.write(context.WithoutCancel(ctx), rec)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return r.fail(ctx, rec, ErrRecorderClosed, "closed")
	}
	select {
	case r.queue <- rec:
		r.metrics.setBufferDepth(len(r.queue))
		return nil
	default:
		return r.fail(ctx, rec, ErrBufferFull, "buffer_full")
	}
}

func (r *Recorder) write(ctx context.Context, rec Record) error {
	writeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := r.store.Append(writeCtx, rec)
	r.metrics.observePersist(time.Since(start).Seconds())
	if err != nil {
		cause := "store"
		if errors.Is(err, context.DeadlineExceeded) {
			cause = "timeout"
		}
		return r.fail(ctx, rec, err, cause)
	}
	r.metrics.incRecorded()
	return nil
}

func (r *Recorder) fail(ctx context.Context, rec Record, err error, cause string) error {
	r.metrics.incWriteFailure(cause)
	r.logger.ErrorContext(ctx, "audit write failed",
		"record_id", rec.ID.String(),
		"user_id", rec.UserID,
		"endpoint", rec.Endpoint,
		"cause", cause,
		"error", err,
	)
	return &AuditWriteError{RecordID: rec.ID, Err: err}
}

// Close stops accepting records and waits for queued ones to be written or
// for ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	if r.queue == nil {
		return nil
	}
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
