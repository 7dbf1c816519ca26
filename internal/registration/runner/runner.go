// Package runner drains the registration queue. Each work item is fetched,
// gated, noised, persisted, expanded and deleted inside one transaction.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/registration/fetcher"
	"registrar/internal/registration/metrics"
	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	"registrar/internal/registration/privacy"
)

// Fetcher performs one registration exchange.
type Fetcher interface {
	Fetch(ctx context.Context, item *models.WorkItem) (*fetcher.Result, error)
}

// Gate decides whether a candidate may be stored.
type Gate interface {
	SourceAllowed(ctx context.Context, counts ports.PrivacyCounts, src *models.Source) (privacy.Decision, error)
	TriggerAllowed(ctx context.Context, counts ports.PrivacyCounts, trig *models.Trigger) (privacy.Decision, error)
}

// Config bounds a drain pass.
type Config struct {
	// BatchSize caps the items processed per Drain call.
	BatchSize int
	// MaxRetries makes items with RetryCount >= MaxRetries ineligible.
	MaxRetries int
	// MaxRedirectsPerChain caps the redirect counter of a registration chain.
	MaxRedirectsPerChain int
	// InstallStatePolicy enables drop_source_if_installed handling.
	InstallStatePolicy bool
	// FetchTimeout bounds one registration fetch. Keep it below the
	// transaction timeout.
	FetchTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:            100,
		MaxRetries:           5,
		MaxRedirectsPerChain: 20,
		InstallStatePolicy:   true,
		FetchTimeout:         10 * time.Second,
	}
}

// Runner is the queue runner.
type Runner struct {
	tx      ports.TxRunner
	fetcher Fetcher
	gate    Gate
	noise   ports.NoiseDecision
	install ports.InstallStateLookup
	debug   ports.DebugReporter
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

func WithConfig(cfg Config) Option {
	return func(r *Runner) {
		r.cfg = cfg
	}
}

// WithInstallState sets the lookup used by the drop-if-installed policy.
func WithInstallState(lookup ports.InstallStateLookup) Option {
	return func(r *Runner) {
		r.install = lookup
	}
}

// WithDebugReporter sets where privacy rejections are reported.
func WithDebugReporter(reporter ports.DebugReporter) Option {
	return func(r *Runner) {
		r.debug = reporter
	}
}

// New builds a Runner.
func New(tx ports.TxRunner, f Fetcher, gate Gate, noise ports.NoiseDecision, opts ...Option) (*Runner, error) {
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	if gate == nil {
		return nil, errors.New("privacy gate is required")
	}
	if noise == nil {
		return nil, errors.New("noise decision is required")
	}
	r := &Runner{
		tx:      tx,
		fetcher: f,
		gate:    gate,
		noise:   noise,
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("registrar/runner"),
		debug:   noopReporter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.BatchSize <= 0 || r.cfg.MaxRetries <= 0 || r.cfg.MaxRedirectsPerChain <= 0 || r.cfg.FetchTimeout <= 0 {
		return nil, fmt.Errorf("invalid runner config: %+v", r.cfg)
	}
	return r, nil
}

// Summary counts the outcomes of one drain pass.
type Summary struct {
	Processed         int `json:"processed"`
	Succeeded         int `json:"succeeded"`
	Retried           int `json:"retried"`
	InvalidEnrollment int `json:"invalid_enrollment"`
	ParsingFailed     int `json:"parsing_failed"`
	PrivacyRejected   int `json:"privacy_rejected"`
	RedirectsQueued   int `json:"redirects_queued"`
}

func (s *Summary) record(o outcome) {
	s.Processed++
	s.RedirectsQueued += o.redirects
	switch {
	case o.err == nil:
		s.Succeeded++
	case models.IsRetryable(o.err):
		s.Retried++
	case errors.Is(o.err, models.ErrInvalidEnrollment):
		s.InvalidEnrollment++
	case errors.Is(o.err, models.ErrPrivacyRejected):
		s.PrivacyRejected++
	default:
		s.ParsingFailed++
	}
}

// outcome is what one committed item produced.
type outcome struct {
	item      *models.WorkItem
	err       error
	redirects int
	truncated int
}

func (o outcome) label() string {
	if errors.Is(o.err, models.ErrPrivacyRejected) {
		return "privacy_rejected"
	}
	return fetcher.OutcomeLabel(o.err)
}

// Drain processes up to BatchSize items. Cancellation is honored only between
// items. A failed transaction stops the pass and is returned wrapped in
// models.ErrTransactionFailure; the item it was processing is left untouched.
func (r *Runner) Drain(ctx context.Context) (Summary, error) {
	ctx, span := r.tracer.Start(ctx, "registration.drain")
	defer span.End()
	r.metrics.IncDrainPass()

	var summary Summary
	var failedOrigins []string
	for range r.cfg.BatchSize {
		if ctx.Err() != nil {
			r.logger.InfoContext(ctx, "drain cancelled", "processed", summary.Processed)
			break
		}

		// A started item runs to completion even if ctx is cancelled meanwhile.
		itemCtx := context.WithoutCancel(ctx)
		var res outcome
		err := r.tx.RunInTx(itemCtx, func(store ports.Store) error {
			var err error
			res, err = r.processNext(itemCtx, store, failedOrigins)
			return err
		})
		if err != nil {
			err = fmt.Errorf("%w: %w", models.ErrTransactionFailure, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "transaction failure")
			r.logger.ErrorContext(ctx, "registration transaction failed", "error", err)
			return summary, err
		}
		if res.item == nil {
			break
		}

		summary.record(res)
		r.metrics.IncProcessed(res.label())
		r.metrics.AddRedirects(res.redirects, res.truncated)
		if models.IsRetryable(res.err) && !slices.Contains(failedOrigins, res.item.RegistrationOrigin) {
			failedOrigins = append(failedOrigins, res.item.RegistrationOrigin)
		}
		r.logger.InfoContext(ctx, "registration processed",
			"work_item_id", res.item.ID,
			"registration_id", res.item.RegistrationID,
			"outcome", res.label(),
			"redirects", res.redirects,
		)
	}
	span.SetAttributes(attribute.Int("registration.processed", summary.Processed))
	return summary, nil
}

// Run drains on every tick until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.Drain(ctx); err != nil {
			r.logger.WarnContext(ctx, "drain pass aborted", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// processNext handles one item inside the caller's transaction. Returned
// errors abort the transaction; classified outcomes are carried in outcome.err.
func (r *Runner) processNext(ctx context.Context, store ports.Store, failedOrigins []string) (outcome, error) {
	item, err := store.NextEligibleWorkItem(ctx, r.cfg.MaxRetries, failedOrigins)
	if err != nil {
		return outcome{}, fmt.Errorf("dequeue: %w", err)
	}
	if item == nil {
		return outcome{}, nil
	}

	ctx, span := r.tracer.Start(ctx, "registration.process", trace.WithAttributes(
		attribute.String("work_item.id", item.ID),
		attribute.String("registration.id", item.RegistrationID),
		attribute.String("registration.type", string(item.Type)),
	))
	defer span.End()

	res := outcome{item: item}
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	result, fetchErr := r.fetcher.Fetch(fetchCtx, item)
	cancel()
	if result == nil {
		result = &fetcher.Result{}
	}
	if models.IsRetryable(fetchErr) {
		res.err = fetchErr
		if err := store.IncrementRetryCount(ctx, item.ID); err != nil {
			return outcome{}, fmt.Errorf("increment retry count: %w", err)
		}
		return res, nil
	}

	decision := privacy.Decision{Allowed: true}
	switch {
	case fetchErr != nil:
		res.err = fetchErr
	case result.Source != nil:
		decision, err = r.persistSource(ctx, store, result.Source)
	case result.Trigger != nil:
		decision, err = r.persistTrigger(ctx, store, result.Trigger)
	default:
		res.err = models.NewFetchError(models.ErrParsing, errors.New("fetch returned no entity"))
	}
	if err != nil {
		return outcome{}, err
	}
	if !decision.Allowed {
		res.err = fmt.Errorf("%w: %s", models.ErrPrivacyRejected, decision.Check)
	}

	res.redirects, res.truncated, err = r.expandRedirects(ctx, store, item, result.Redirects)
	if err != nil {
		return outcome{}, err
	}
	if err := store.DeleteWorkItem(ctx, item.ID); err != nil {
		return outcome{}, fmt.Errorf("delete work item: %w", err)
	}
	if res.err != nil {
		span.SetStatus(codes.Error, res.label())
	}
	return res, nil
}

// persistSource applies noise, install state and the privacy gate, then
// stores the source with its fake reports. A rejected decision is an item
// outcome; a returned error aborts the transaction.
func (r *Runner) persistSource(ctx context.Context, store ports.Store, src *models.Source) (privacy.Decision, error) {
	mode, fakes, err := r.noise.Decide(ctx, src)
	if err != nil {
		return privacy.Decision{}, fmt.Errorf("noise decision: %w", err)
	}
	src.AttributionMode = mode

	status, err := r.installStatus(ctx, src)
	if err != nil {
		return privacy.Decision{}, err
	}
	src.Status = status

	decision, err := r.gate.SourceAllowed(ctx, store, src)
	if err != nil {
		return privacy.Decision{}, fmt.Errorf("source privacy checks: %w", err)
	}
	if !decision.Allowed {
		r.debug.Report(ctx, string(decision.Check), ports.DebugCandidate{Source: src})
		return decision, nil
	}

	if err := store.InsertSource(ctx, src); err != nil {
		return privacy.Decision{}, fmt.Errorf("insert source: %w", err)
	}
	if src.Status != models.SourceActive {
		return decision, nil
	}
	for _, fake := range fakes {
		if err := store.InsertEventReport(ctx, models.FakeEventReport(src, fake)); err != nil {
			return privacy.Decision{}, fmt.Errorf("insert fake report: %w", err)
		}
	}
	if mode == models.AttributionTruthfully {
		return decision, nil
	}
	// Never and Falsely both consume budget on every declared destination.
	for _, dest := range append(slices.Clone(src.AppDestinations), src.WebDestinations...) {
		if err := store.InsertAttribution(ctx, models.FakeAttribution(src, dest)); err != nil {
			return privacy.Decision{}, fmt.Errorf("insert attribution: %w", err)
		}
	}
	return decision, nil
}

func (r *Runner) installStatus(ctx context.Context, src *models.Source) (models.SourceStatus, error) {
	if !r.cfg.InstallStatePolicy || r.install == nil || !src.DropSourceIfInstalled {
		return models.SourceActive, nil
	}
	for _, dest := range src.AppDestinations {
		installed, err := r.install.IsInstalled(ctx, dest)
		if err != nil {
			return "", fmt.Errorf("install state for %s: %w", dest, err)
		}
		if installed {
			return models.SourceMarkedToDelete, nil
		}
	}
	return models.SourceActive, nil
}

func (r *Runner) persistTrigger(ctx context.Context, store ports.Store, trig *models.Trigger) (privacy.Decision, error) {
	decision, err := r.gate.TriggerAllowed(ctx, store, trig)
	if err != nil {
		return privacy.Decision{}, fmt.Errorf("trigger privacy checks: %w", err)
	}
	if !decision.Allowed {
		r.debug.Report(ctx, string(decision.Check), ports.DebugCandidate{Trigger: trig})
		return decision, nil
	}
	if err := store.InsertTrigger(ctx, trig); err != nil {
		return privacy.Decision{}, fmt.Errorf("insert trigger: %w", err)
	}
	return decision, nil
}

// expandRedirects queues the admitted prefix of uris under the parent's
// chain. The counter is written only when something was admitted.
func (r *Runner) expandRedirects(ctx context.Context, store ports.Store, parent *models.WorkItem, uris []string) (admitted, truncated int, err error) {
	if len(uris) == 0 {
		return 0, 0, nil
	}
	current, err := store.GetRedirectCounter(ctx, parent.RegistrationID)
	if err != nil {
		return 0, 0, fmt.Errorf("read redirect counter: %w", err)
	}
	admitted = models.RedirectAdmission(current, r.cfg.MaxRedirectsPerChain, len(uris))
	truncated = len(uris) - admitted
	if admitted == 0 {
		return 0, truncated, nil
	}
	for _, uri := range uris[:admitted] {
		if err := store.InsertWorkItem(ctx, parent.Redirected(uri)); err != nil {
			return 0, 0, fmt.Errorf("queue redirect: %w", err)
		}
	}
	if err := store.PutRedirectCounter(ctx, parent.RegistrationID, current+admitted); err != nil {
		return 0, 0, fmt.Errorf("write redirect counter: %w", err)
	}
	return admitted, truncated, nil
}

type noopReporter struct{}

func (noopReporter) Report(context.Context, string, ports.DebugCandidate) {}
