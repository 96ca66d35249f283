package redaction

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import "context"

// DetectionPort finds sensitive spans in text. Implementations may return
// overlapping spans in any order.
type DetectionPort interface {
	Detect(ctx context.Context, text string, lang Language) ([]Span, error)
	Name() string
}
