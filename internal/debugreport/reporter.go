// Package debugreport publishes verbose debug reports for rejected
// registrations to Kafka. Publishing is fire-and-forget: a full producer
// buffer or broker outage drops reports rather than stalling the runner.
package debugreport

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/privacy"
)

// Report types carried in the "type" field.
const (
	TypeSourceDestinationLimit = "source-destination-limit"
	TypeSourceStorageLimit     = "source-storage-limit"
	TypeSourceUnknownError     = "source-unknown-error"
	TypeSourceFlexibleEvent    = "source-flexible-event-report-value-error"
	TypeTriggerStorageLimit    = "trigger-event-storage-limit"
)

var _ ports.DebugReporter = (*KafkaReporter)(nil)

// Producer is the subset of *kgo.Client the reporter uses.
type Producer interface {
	TryProduce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Report is the published JSON document.
type Report struct {
	Type               string `json:"type"`
	Check              string `json:"check"`
	EnrollmentID       string `json:"enrollment_id"`
	RegistrationOrigin string `json:"registration_origin"`
	Body               map[string]any `json:"body"`
}

// KafkaReporter implements ports.DebugReporter.
type KafkaReporter struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	now      func() time.Time
	sent     atomic.Int64
	dropped  atomic.Int64
}

// Option configures a KafkaReporter.
type Option func(*KafkaReporter)

func WithLogger(logger *slog.Logger) Option {
	return func(r *KafkaReporter) {
		r.logger = logger
	}
}

// New returns a reporter producing to topic.
func New(producer Producer, topic string, opts ...Option) *KafkaReporter {
	r := &KafkaReporter{producer: producer, topic: topic, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report publishes a debug report for candidate when the registration opted
// into debug reporting. It never blocks on delivery.
func (r *KafkaReporter) Report(ctx context.Context, reason string, candidate ports.DebugCandidate) {
	report, ok := build(reason, candidate)
	if !ok {
		return
	}
	value, err := json.Marshal(report)
	if err != nil {
		r.logger.ErrorContext(ctx, "encode debug report", "check", reason, "error", err)
		return
	}
	record := &kgo.Record{
		Topic:     r.topic,
		Key:       []byte(report.RegistrationOrigin),
		Value:     value,
		Timestamp: r.now(),
	}
	r.producer.TryProduce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			r.dropped.Add(1)
			r.logger.WarnContext(ctx, "debug report dropped",
				"type", report.Type,
				"check", reason,
				"error", err,
			)
			return
		}
		r.sent.Add(1)
	})
}

// Sent and Dropped count delivery outcomes.
func (r *KafkaReporter) Sent() int64    { return r.sent.Load() }
func (r *KafkaReporter) Dropped() int64 { return r.dropped.Load() }

func build(reason string, c ports.DebugCandidate) (Report, bool) {
	switch {
	case c.Source != nil:
		src := c.Source
		if !src.DebugReporting {
			return Report{}, false
		}
		body := map[string]any{
			"source_event_id":         strconv.FormatUint(src.EventID, 10),
			"source_site":             src.Publisher,
			"attribution_destination": destinations(src),
		}
		if src.DebugKey != nil {
			body["source_debug_key"] = strconv.FormatUint(*src.DebugKey, 10)
		}
		return Report{
			Type:               sourceReportType(reason),
			Check:              reason,
			EnrollmentID:       src.EnrollmentID,
			RegistrationOrigin: src.RegistrationOrigin,
			Body:               body,
		}, true
	case c.Trigger != nil:
		trig := c.Trigger
		if !trig.DebugReporting {
			return Report{}, false
		}
		body := map[string]any{
			"attribution_destination": trig.AttributionDestination,
		}
		if trig.DebugKey != nil {
			body["trigger_debug_key"] = strconv.FormatUint(*trig.DebugKey, 10)
		}
		return Report{
			Type:               TypeTriggerStorageLimit,
			Check:              reason,
			EnrollmentID:       trig.EnrollmentID,
			RegistrationOrigin: trig.RegistrationOrigin,
			Body:               body,
		}, true
	}
	return Report{}, false
}

func sourceReportType(check string) string {
	switch privacy.Check(check) {
	case privacy.CheckDestinationRateLimit, privacy.CheckDestinationsPerEnrollmentWindow,
		privacy.CheckDestinationsPerEnrollmentActive:
		return TypeSourceDestinationLimit
	case privacy.CheckSourcesPerPublisher:
		return TypeSourceStorageLimit
	case privacy.CheckFlexInformationGain, privacy.CheckFlexLiteInformationGain:
		return TypeSourceFlexibleEvent
	}
	return TypeSourceUnknownError
}

func destinations(src *models.Source) []string {
	out := make([]string, 0, len(src.AppDestinations)+len(src.WebDestinations))
	out = append(out, src.AppDestinations...)
	return append(out, src.WebDestinations...)
}
