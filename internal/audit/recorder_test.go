package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/audit/mocks"
	"gatekeeper/internal/audit/store/memory"
)

func TestRecorder_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	rec, err := audit.NewRecorder(store)
	require.NoError(t, err)

	err = rec.Record(context.Background(), audit.Record{
		UserID:   "u-1",
		Role:     "standard",
		Action:   "/api/demo/english",
		Endpoint: "/api/demo/english",
		Method:   "POST",
	})
	require.NoError(t, err)

	records, err := store.Query(context.Background(), audit.Filter{UserID: "u-1"}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEqual(t, uuid.Nil, records[0].ID)
	assert.False(t, records[0].Timestamp.IsZero())
	assert.Equal(t, audit.OutcomeComplete, records[0].Outcome)
}

func TestRecorder_PreservesExistingFields(t *testing.T) {
	store := memory.NewInMemoryStore()
	rec, err := audit.NewRecorder(store)
	require.NoError(t, err)

	id := uuid.New()
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	err = rec.Record(context.Background(), audit.Record{
		ID:        id,
		Timestamp: ts,
		UserID:    "u-1",
		Outcome:   audit.OutcomeRejected,
		Reason:    "rate_limited",
	})
	require.NoError(t, err)

	records, err := store.Query(context.Background(), audit.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, ts, records[0].Timestamp)
	assert.Equal(t, audit.OutcomeRejected, records[0].Outcome)
}

func TestRecorder_UsesClock(t *testing.T) {
	store := memory.NewInMemoryStore()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec, err := audit.NewRecorder(store, audit.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), audit.Record{UserID: "u-1"}))

	records, err := store.Query(context.Background(), audit.Filter{}, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fixed, records[0].Timestamp)
}

func TestRecorder_WritesDetachedFromRequestContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	rec, err := audit.NewRecorder(store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, rec.Record(ctx, audit.Record{UserID: "gone"}))
	assert.Equal(t, 1, store.Len(), "a disconnected client must still leave a record")
}

func TestRecorder_StoreFailureReturnsWriteError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockWriter(ctrl)
	reg := prometheus.NewRegistry()
	metrics := audit.NewMetricsWithRegisterer(reg)

	boom := errors.New("disk full")
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(boom)

	rec, err := audit.NewRecorder(store, audit.WithMetrics(metrics))
	require.NoError(t, err)

	err = rec.Record(context.Background(), audit.Record{UserID: "u-1"})
	var writeErr *audit.AuditWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.NotEqual(t, uuid.Nil, writeErr.RecordID)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.WriteFailures.WithLabelValues("store")))
	assert.Equal(t, 0.0, promtest.ToFloat64(metrics.Recorded))
}

func TestRecorder_WriteTimeoutIsBounded(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockWriter(ctrl)
	reg := prometheus.NewRegistry()
	metrics := audit.NewMetricsWithRegisterer(reg)

	store.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ audit.Record) error {
			<-ctx.Done()
			return ctx.Err()
		})

	rec, err := audit.NewRecorder(store,
		audit.WithMetrics(metrics),
		audit.WithWriteTimeout(20*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	err = rec.Record(context.Background(), audit.Record{UserID: "u-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.WriteFailures.WithLabelValues("timeout")))
}

func TestRecorder_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	rec, err := audit.NewRecorder(store, audit.WithAsyncBuffer(100))
	require.NoError(t, err)

	for range 10 {
		require.NoError(t, rec.Record(context.Background(), audit.Record{UserID: "u-1"}))
	}

	require.NoError(t, rec.Close(context.Background()))
	assert.Equal(t, 10, store.Len(), "all records should be drained on close")
}

func TestRecorder_AsyncBufferFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockWriter(ctrl)

	started := make(chan struct{})
	release := make(chan struct{})
	first := store.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, audit.Record) error {
			close(started)
			<-release
			return nil
		})
	store.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).After(first)

	rec, err := audit.NewRecorder(store, audit.WithAsyncBuffer(1))
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), audit.Record{UserID: "a"}))
	<-started
	require.NoError(t, rec.Record(context.Background(), audit.Record{UserID: "b"}))

	err = rec.Record(context.Background(), audit.Record{UserID: "c"})
	assert.ErrorIs(t, err, audit.ErrBufferFull)

	close(release)
	require.NoError(t, rec.Close(context.Background()))
}

func TestRecorder_RejectsAfterClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	rec, err := audit.NewRecorder(store, audit.WithAsyncBuffer(4))
	require.NoError(t, err)
	require.NoError(t, rec.Close(context.Background()))

	err = rec.Record(context.Background(), audit.Record{UserID: "late"})
	assert.ErrorIs(t, err, audit.ErrRecorderClosed)
	assert.Equal(t, 0, store.Len())
}

func TestRecorder_RequiresStore(t *testing.T) {
	_, err := audit.NewRecorder(nil)
	require.Error(t, err)
}
