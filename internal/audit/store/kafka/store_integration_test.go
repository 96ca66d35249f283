//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"gatekeeper/internal/audit"
	auditkafka "gatekeeper/internal/audit/store/kafka"
	"gatekeeper/internal/platform/config"
	platformkafka "gatekeeper/internal/platform/kafka"
	"gatekeeper/pkg/testutil/containers"
)

func TestMirror_PublishesToRedpanda(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rp := containers.NewRedpandaContainer(t)
	cfg := config.KafkaConfig{Brokers: []string{rp.Broker}, Topic: "gatekeeper.audit.test"}

	producer, err := platformkafka.NewProducer(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = producer.Close(context.Background()) })

	mirror, err := auditkafka.NewMirror(producer)
	require.NoError(t, err)

	rec := audit.Record{ID: uuid.New(), UserID: "u-42", Outcome: audit.OutcomeComplete}
	require.NoError(t, mirror.Append(ctx, rec))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())

	var got []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	require.Len(t, got, 1)
	require.Equal(t, "u-42", string(got[0].Key))

	var decoded audit.Record
	require.NoError(t, json.Unmarshal(got[0].Value, &decoded))
	require.Equal(t, rec.ID, decoded.ID)
}
