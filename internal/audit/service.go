package audit

import (
	"context"
	"errors"
	"time"

	dErrors "gatekeeper/pkg/domain-errors"
)

const (
	DefaultLogLimit  = 50
	MaxLogLimit      = 100
	DefaultUsageDays = 7
	MaxUsageDays     = 30
)

// Service is the operator read path over the audit store. It is reachable
// only from the administrative surface, never from the governed pipeline.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	return &Service{store: store, now: time.Now}, nil
}

// ListByUser returns the user's most recent records, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if limit < 1 || limit > MaxLogLimit {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100")
	}
	records, err := s.store.Query(ctx, Filter{UserID: userID}, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit logs")
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Query returns records matching filter, newest first. Since and Until are
// inclusive; either may be zero.
func (s *Service) Query(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	if limit < 1 || limit > MaxLogLimit {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 100")
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Since.After(filter.Until) {
		return nil, dErrors.New(dErrors.CodeValidation, "since must not be after until")
	}
	records, err := s.store.Query(ctx, filter, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit logs")
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// UsageByDepartment aggregates the trailing number of days ending now.
func (s *Service) UsageByDepartment(ctx context.Context, days int) ([]DepartmentUsage, time.Time, time.Time, error) {
	if days < 1 || days > MaxUsageDays {
		return nil, time.Time{}, time.Time{}, dErrors.New(dErrors.CodeValidation, "days must be between 1 and 30")
	}
	until := s.now().UTC()
	since := until.AddDate(0, 0, -days)

	usage, err := s.store.UsageByDepartment(ctx, since, until)
	if err != nil {
		return nil, time.Time{}, time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate usage")
	}
	if usage == nil {
		usage = []DepartmentUsage{}
	}
	return usage, since, until, nil
}
