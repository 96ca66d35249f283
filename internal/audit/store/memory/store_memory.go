package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"gatekeeper/internal/audit"
)

// InMemoryStore keeps records in process. Suitable for tests and single
// instance demos; nothing survives a restart.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func (s *InMemoryStore) Append(ctx context.Context, rec audit.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.PIITypes = slices.Clone(rec.PIITypes)
	if rec.RateLimitRemaining != nil {
		v := *rec.RateLimitRemaining
		rec.RateLimitRemaining = &v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Query returns matching records newest first. Records with equal timestamps
// keep reverse insertion order.
func (s *InMemoryStore) Query(_ context.Context, filter audit.Filter, limit int) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if filter.Matches(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b audit.Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UsageByDepartment(_ context.Context, since, until time.Time) ([]audit.DepartmentUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filter := audit.Filter{Since: since, Until: until}
	var window []audit.Record
	for _, r := range s.records {
		if filter.Matches(r) {
			window = append(window, r)
		}
	}
	return audit.Aggregate(window), nil
}

// Len is the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
