package audit

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"
)

// Writer appends records. Append must be durable before it returns nil.
type Writer interface {
	Append(ctx context.Context, rec Record) error
}

// Store is the full persistence port: writes plus the operator read path.
type Store interface {
	Writer
	// Query returns matching records newest first, at most limit of them.
	Query(ctx context.Context, filter Filter, limit int) ([]Record, error)
	// UsageByDepartment aggregates records with since <= timestamp <= until.
	UsageByDepartment(ctx context.Context, since, until time.Time) ([]DepartmentUsage, error)
}
