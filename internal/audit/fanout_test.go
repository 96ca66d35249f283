package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/audit/mocks"
	"gatekeeper/internal/audit/store/memory"
)

func TestFanout_MirrorFailureDoesNotFailAppend(t *testing.T) {
	ctrl := gomock.NewController(t)
	mirror := mocks.NewMockWriter(ctrl)
	mirror.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	primary := memory.NewInMemoryStore()
	metrics := audit.NewMetricsWithRegisterer(prometheus.NewRegistry())
	f := audit.NewFanout(primary, nil, metrics, mirror)

	require.NoError(t, f.Append(context.Background(), audit.Record{UserID: "u-1"}))
	assert.Equal(t, 1, primary.Len())
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.MirrorFailures))
}

func TestFanout_PrimaryFailureSkipsMirrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := mocks.NewMockStore(ctrl)
	mirror := mocks.NewMockWriter(ctrl)

	boom := errors.New("primary down")
	primary.EXPECT().Append(gomock.Any(), gomock.Any()).Return(boom)
	mirror.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

	f := audit.NewFanout(primary, nil, nil, mirror)
	assert.ErrorIs(t, f.Append(context.Background(), audit.Record{UserID: "u-1"}), boom)
}

func TestFanout_ReadsFromPrimary(t *testing.T) {
	primary := memory.NewInMemoryStore()
	require.NoError(t, primary.Append(context.Background(), audit.Record{UserID: "u-1", Department: "eng"}))

	f := audit.NewFanout(primary, nil, nil)
	records, err := f.Query(context.Background(), audit.Filter{UserID: "u-1"}, 10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
