package audit

import (
	"context"
	"log/slog"
	"time"
)

// Fanout writes to a primary store and then to mirrors. The primary decides
// the outcome; mirror failures are logged and counted only. Reads go to the
// primary.
type Fanout struct {
	primary Store
	mirrors []Writer
	logger  *slog.Logger
	metrics *Metrics
}

func NewFanout(primary Store, logger *slog.Logger, metrics *Metrics, mirrors ...Writer) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{primary: primary, mirrors: mirrors, logger: logger, metrics: metrics}
}

func (f *Fanout) Append(ctx context.Context, rec Record) error {
	if err := f.primary.Append(ctx, rec); err != nil {
		return err
	}
	for _, m := range f.mirrors {
		if err := m.Append(ctx, rec); err != nil {
			f.metrics.incMirrorFailure()
			f.logger.WarnContext(ctx, "audit mirror write failed",
				"record_id", rec.ID.String(),
				"error", err,
			)
		}
	}
	return nil
}

func (f *Fanout) Query(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	return f.primary.Query(ctx, filter, limit)
}

func (f *Fanout) UsageByDepartment(ctx context.Context, since, until time.Time) ([]DepartmentUsage, error) {
	return f.primary.UsageByDepartment(ctx, since, until)
}
