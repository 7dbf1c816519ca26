//go:build integration

package debugreport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"registrar/internal/platform/config"
	"registrar/internal/platform/kafka"
	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/privacy"
	"registrar/pkg/testutil/containers"
)

func TestKafkaReporterRoundTrip(t *testing.T) {
	broker := containers.StartRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.KafkaConfig{Brokers: broker.Brokers, DebugReportTopic: "debug-reports", Partitions: 1, Replication: 1}
	producer, err := kafka.NewProducer(cfg, kgo.AllowAutoTopicCreation())
	require.NoError(t, err)
	defer producer.Close()
	require.NoError(t, kafka.EnsureTopic(ctx, producer, cfg.DebugReportTopic, cfg.Partitions, cfg.Replication))
	require.NoError(t, kafka.EnsureTopic(ctx, producer, cfg.DebugReportTopic, cfg.Partitions, cfg.Replication))

	reporter := New(producer, cfg.DebugReportTopic)
	reporter.Report(ctx, string(privacy.CheckSourcesPerPublisher), ports.DebugCandidate{Source: &models.Source{
		EventID:            7,
		RegistrationOrigin: "https://ads.example.test",
		DebugReporting:     true,
	}})
	require.NoError(t, producer.Flush(ctx))
	assert.EqualValues(t, 1, reporter.Sent())

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(cfg.DebugReportTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	var report Report
	require.NoError(t, json.Unmarshal(records[0].Value, &report))
	assert.Equal(t, TypeSourceStorageLimit, report.Type)
	assert.Equal(t, "7", report.Body["source_event_id"])
}
