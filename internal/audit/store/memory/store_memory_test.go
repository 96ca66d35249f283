package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/audit"
)

func TestInMemoryStore_QueryOrderAndLimit(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, audit.Record{UserID: "u", Action: "old", Timestamp: base}))
	require.NoError(t, s.Append(ctx, audit.Record{UserID: "u", Action: "new", Timestamp: base.Add(time.Minute)}))
	require.NoError(t, s.Append(ctx, audit.Record{UserID: "u", Action: "same-a", Timestamp: base}))

	records, err := s.Query(ctx, audit.Filter{UserID: "u"}, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "new", records[0].Action)
	assert.Equal(t, "same-a", records[1].Action, "equal timestamps keep reverse insertion order")
	assert.Equal(t, "old", records[2].Action)

	limited, err := s.Query(ctx, audit.Filter{UserID: "u"}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInMemoryStore_AppendCopiesSlices(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	types := []string{"EMAIL_ADDRESS"}
	remaining := 3

	require.NoError(t, s.Append(ctx, audit.Record{UserID: "u", PIITypes: types, RateLimitRemaining: &remaining}))
	types[0] = "mutated"
	remaining = 99

	records, err := s.Query(ctx, audit.Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"EMAIL_ADDRESS"}, records[0].PIITypes)
	assert.Equal(t, 3, *records[0].RateLimitRemaining)
}

func TestInMemoryStore_AppendHonoursCancellation(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Append(ctx, audit.Record{UserID: "u"}), context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestInMemoryStore_UsageByDepartmentWindow(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, audit.Record{UserID: "a", Department: "eng", Timestamp: base}))
	require.NoError(t, s.Append(ctx, audit.Record{UserID: "b", Department: "eng", Timestamp: base.AddDate(0, 0, -30)}))

	usage, err := s.UsageByDepartment(ctx, base.AddDate(0, 0, -7), base)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 1, usage[0].TotalRequests)

	s.Clear()
	assert.Equal(t, 0, s.Len())
}
