// Package fetcher performs one registration exchange against an adtech
// endpoint and turns the response into a candidate Source or Trigger.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/registration/metrics"
	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
)

// Protocol headers.
const (
	HeaderRegisterSource  = "Attribution-Reporting-Register-Source"
	HeaderRegisterTrigger = "Attribution-Reporting-Register-Trigger"
	HeaderRedirect        = "Attribution-Reporting-Redirect"
	HeaderLocation        = "Location"
	HeaderSourceInfo      = "Attribution-Reporting-Source-Info"
)

const defaultMaxWebDestinations = 3

// Config tunes payload validation.
type Config struct {
	// MaxWebDestinations bounds the web_destination array.
	MaxWebDestinations int
	// DebugKeyAllowlist lists enrollments allowed to receive debug keys.
	// "*" allows every enrollment.
	DebugKeyAllowlist []string
}

// Result is what a fetch produced. It is returned even alongside a terminal
// error so redirects extracted before a parse failure are not lost.
type Result struct {
	Source    *models.Source
	Trigger   *models.Trigger
	Redirects []string
}

// Fetcher is the registration fetch state machine.
type Fetcher struct {
	transport   Transport
	enrollments ports.EnrollmentLookup
	cfg         Config
	schemas     *schemaSet
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(f *Fetcher) {
		f.tracer = tracer
	}
}

// WithConfig sets validation limits.
func WithConfig(cfg Config) Option {
	return func(f *Fetcher) {
		f.cfg = cfg
	}
}

// New builds a Fetcher.
func New(transport Transport, enrollments ports.EnrollmentLookup, opts ...Option) (*Fetcher, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if enrollments == nil {
		return nil, errors.New("enrollment lookup is required")
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	f := &Fetcher{
		transport:   transport,
		enrollments: enrollments,
		schemas:     schemas,
		logger:      slog.Default(),
		tracer:      otel.Tracer("registrar/fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.cfg.MaxWebDestinations <= 0 {
		f.cfg.MaxWebDestinations = defaultMaxWebDestinations
	}
	return f, nil
}

// Fetch runs one exchange for item. The error, when non-nil, wraps one of the
// models taxonomy errors; Result is never nil.
func (f *Fetcher) Fetch(ctx context.Context, item *models.WorkItem) (*Result, error) {
	ctx, span := f.tracer.Start(ctx, "registration.fetch", trace.WithAttributes(
		attribute.String("registration.type", string(item.Type)),
		attribute.String("registration.origin", item.RegistrationOrigin),
	))
	defer span.End()

	start := time.Now()
	result := &Result{}
	err := f.fetch(ctx, item, result)
	f.metrics.ObserveFetch(OutcomeLabel(err), time.Since(start))
	span.SetAttributes(attribute.Int("registration.redirects", len(result.Redirects)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, OutcomeLabel(err))
		f.logger.InfoContext(ctx, "registration fetch failed",
			"work_item_id", item.ID,
			"registration_id", item.RegistrationID,
			"outcome", OutcomeLabel(err),
			"error", err,
		)
	}
	return result, err
}

func (f *Fetcher) fetch(ctx context.Context, item *models.WorkItem, result *Result) error {
	uri, err := url.Parse(item.RegistrationURI)
	if err != nil || uri.Scheme != "https" || uri.Host == "" {
		return models.NewFetchError(models.ErrParsing, fmt.Errorf("registration uri %q is not https", item.RegistrationURI))
	}

	enrollmentID, ok, err := f.enrollments.Resolve(ctx, item.RegistrationURI)
	if err != nil {
		return models.NewFetchError(models.ErrNetwork, fmt.Errorf("resolve enrollment: %w", err))
	}
	if !ok {
		return models.NewFetchError(models.ErrInvalidEnrollment, fmt.Errorf("no enrollment for %s", item.RegistrationOrigin))
	}

	header := http.Header{}
	if item.Type.IsSource() && item.SourceType != "" {
		header.Set(HeaderSourceInfo, string(item.SourceType))
	}
	resp, err := f.transport.Do(ctx, http.MethodPost, item.RegistrationURI, header)
	if err != nil {
		return models.NewFetchError(models.ErrNetwork, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return models.NewFetchError(models.ErrServerUnavailable, fmt.Errorf("status %d", resp.StatusCode))
	}

	result.Redirects = ExtractRedirects(resp.Header, uri)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return models.NewFetchError(models.ErrParsing, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	headerName := HeaderRegisterTrigger
	if item.Type.IsSource() {
		headerName = HeaderRegisterSource
	}
	payloads := resp.Header.Values(headerName)
	if len(payloads) != 1 {
		return models.NewFetchError(models.ErrParsing, fmt.Errorf("expected one %s header, got %d", headerName, len(payloads)))
	}

	if item.Type.IsSource() {
		src, err := f.parseSource(item, enrollmentID, payloads[0])
		if err != nil {
			return models.NewFetchError(models.ErrParsing, err)
		}
		result.Source = src
		return nil
	}
	trig, err := f.parseTrigger(item, enrollmentID, payloads[0])
	if err != nil {
		return models.NewFetchError(models.ErrParsing, err)
	}
	result.Trigger = trig
	return nil
}

func (f *Fetcher) debugKeysPermitted(item *models.WorkItem, enrollmentID string) bool {
	if !item.DebugKeyAllowed {
		return false
	}
	return slices.Contains(f.cfg.DebugKeyAllowlist, "*") || slices.Contains(f.cfg.DebugKeyAllowlist, enrollmentID)
}

// OutcomeLabel names the taxonomy bucket of a fetch error for logs and
// metrics.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrNetwork):
		return "network_error"
	case errors.Is(err, models.ErrServerUnavailable):
		return "server_unavailable"
	case errors.Is(err, models.ErrInvalidEnrollment):
		return "invalid_enrollment"
	case errors.Is(err, models.ErrParsing):
		return "parsing_error"
	default:
		return "unknown"
	}
}
