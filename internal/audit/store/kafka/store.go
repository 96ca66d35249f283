// Package kafka mirrors audit records onto a topic for downstream consumers
// such as SIEM pipelines. It is a write-only sink.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gatekeeper/internal/audit"
)

// Producer is the subset of the platform producer the mirror needs.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Mirror publishes each record as JSON keyed by user id, so one user's
// records stay ordered within a partition.
type Mirror struct {
	producer Producer
}

func NewMirror(producer Producer) (*Mirror, error) {
	if producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	return &Mirror{producer: producer}, nil
}

func (m *Mirror) Append(ctx context.Context, rec audit.Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}
	if err := m.producer.Produce(ctx, []byte(rec.UserID), value); err != nil {
		return fmt.Errorf("mirror audit record %s: %w", rec.ID, err)
	}
	return nil
}
