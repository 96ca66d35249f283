package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/audit/mocks"
	"gatekeeper/internal/audit/store/memory"
	dErrors "gatekeeper/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.InMemoryStore
	svc   *audit.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewInMemoryStore()
	svc, err := audit.NewService(s.store)
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) seed(userID, dept string, at time.Time) {
	s.Require().NoError(s.store.Append(s.ctx, audit.Record{
		UserID:         userID,
		Department:     dept,
		Timestamp:      at,
		ResponseTimeMS: 10,
	}))
}

func (s *ServiceSuite) TestListByUserNewestFirstWithinLimit() {
	base := time.Now().UTC().Add(-time.Hour)
	for i := range 5 {
		s.seed("u-1", "eng", base.Add(time.Duration(i)*time.Minute))
	}
	s.seed("u-2", "eng", base)

	records, err := s.svc.ListByUser(s.ctx, "u-1", 3)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(base.Add(4*time.Minute), records[0].Timestamp)
	s.Equal(base.Add(2*time.Minute), records[2].Timestamp)
	for _, r := range records {
		s.Equal("u-1", r.UserID)
	}
}

func (s *ServiceSuite) TestListByUserEmptyIsNotNil() {
	records, err := s.svc.ListByUser(s.ctx, "nobody", audit.DefaultLogLimit)
	s.Require().NoError(err)
	s.NotNil(records)
	s.Empty(records)
}

func (s *ServiceSuite) TestQueryFiltersByDepartmentAndWindow() {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.seed("u-1", "eng", base)
	s.seed("u-2", "eng", base.Add(time.Hour))
	s.seed("u-3", "eng", base.Add(3*time.Hour))
	s.seed("u-4", "legal", base.Add(time.Hour))

	records, err := s.svc.Query(s.ctx, audit.Filter{Department: "eng", Since: base, Until: base.Add(time.Hour)}, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("u-2", records[0].UserID)
	s.Equal("u-1", records[1].UserID)

	records, err = s.svc.Query(s.ctx, audit.Filter{Department: "ops"}, 10)
	s.Require().NoError(err)
	s.NotNil(records)
	s.Empty(records)
}

func (s *ServiceSuite) TestQueryRejectsInvertedWindow() {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, err := s.svc.Query(s.ctx, audit.Filter{Since: base, Until: base.Add(-time.Minute)}, 10)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestListByUserValidatesLimit() {
	for _, limit := range []int{0, -1, audit.MaxLogLimit + 1} {
		_, err := s.svc.ListByUser(s.ctx, "u-1", limit)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "limit %d", limit)
	}
}

func (s *ServiceSuite) TestUsageByDepartmentWindow() {
	now := time.Now().UTC()
	s.seed("u-1", "eng", now.Add(-time.Hour))
	s.seed("u-2", "eng", now.Add(-2*time.Hour))
	s.seed("u-3", "sales", now.Add(-3*time.Hour))
	s.seed("u-4", "sales", now.AddDate(0, 0, -10))

	usage, since, until, err := s.svc.UsageByDepartment(s.ctx, 7)
	s.Require().NoError(err)
	s.WithinDuration(until.AddDate(0, 0, -7), since, time.Second)
	s.Require().Len(usage, 2)
	s.Equal("eng", usage[0].Department)
	s.Equal(2, usage[0].TotalRequests)
	s.Equal(2, usage[0].UniqueUsers)
	s.Equal("sales", usage[1].Department)
	s.Equal(1, usage[1].TotalRequests)
}

func (s *ServiceSuite) TestUsageByDepartmentValidatesDays() {
	for _, days := range []int{0, audit.MaxUsageDays + 1} {
		_, _, _, err := s.svc.UsageByDepartment(s.ctx, days)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	}
}

func TestService_StoreErrorIsInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Query(gomock.Any(), audit.Filter{UserID: "u-1"}, 10).Return(nil, errors.New("conn reset"))

	svc, err := audit.NewService(store)
	require.NoError(t, err)

	_, err = svc.ListByUser(context.Background(), "u-1", 10)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestAggregate(t *testing.T) {
	records := []audit.Record{
		{UserID: "a", Department: "eng", PIICount: 2, ResponseTimeMS: 10},
		{UserID: "a", Department: "eng", PIICount: 1, ResponseTimeMS: 30, Violation: audit.ViolationRateLimitExceeded},
		{UserID: "b", Department: "eng", ResponseTimeMS: 20},
		{UserID: "c", ResponseTimeMS: 5},
	}

	usage := audit.Aggregate(records)
	require.Len(t, usage, 2)

	assert.Equal(t, audit.DepartmentUsage{
		Department:        "eng",
		TotalRequests:     3,
		UniqueUsers:       2,
		TotalPIIDetected:  3,
		TotalViolations:   1,
		AvgResponseTimeMS: 20,
	}, usage[0])
	assert.Equal(t, "unknown", usage[1].Department)
	assert.Equal(t, 1, usage[1].TotalRequests)
}

func TestFilterMatchesInclusiveBounds(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := audit.Record{UserID: "u", Department: "eng", Timestamp: at}

	assert.True(t, audit.Filter{Since: at, Until: at}.Matches(r))
	assert.False(t, audit.Filter{Since: at.Add(time.Nanosecond)}.Matches(r))
	assert.False(t, audit.Filter{Department: "sales"}.Matches(r))
	assert.True(t, audit.Filter{}.Matches(r))
}
