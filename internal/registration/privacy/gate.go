// Package privacy decides whether a candidate source or trigger may be stored
// without exceeding per-publisher and per-enrollment privacy limits.
package privacy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"registrar/internal/registration/metrics"
	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
)

// Check names a privacy check, in evaluation order.
type Check string

const (
	CheckDestinationRateLimit            Check = "destination_rate_limit"
	CheckDestinationsPerEnrollmentWindow Check = "destinations_per_enrollment_window"
	CheckDestinationsPerEnrollmentActive Check = "destinations_per_enrollment_active"
	CheckReportingOriginsPerDestination  Check = "reporting_origins_per_destination"
	CheckRegistrationOriginPerEnrollment Check = "registration_origin_per_enrollment"
	CheckSourcesPerPublisher             Check = "sources_per_publisher"
	CheckFlexInformationGain             Check = "flex_information_gain"
	CheckFlexLiteInformationGain         Check = "flex_lite_information_gain"
	CheckTriggersPerDestination          Check = "triggers_per_destination"
)

// Ceilings bound the information gain of a source configuration, in bits.
type Ceilings struct {
	Event              float64 `yaml:"event"`
	Navigation         float64 `yaml:"navigation"`
	DualDestEvent      float64 `yaml:"dual_destination_event"`
	DualDestNavigation float64 `yaml:"dual_destination_navigation"`
}

func (c Ceilings) For(src *models.Source) float64 {
	nav := src.SourceType == models.SourceTypeNavigation
	switch {
	case src.HasDualDestination() && nav:
		return c.DualDestNavigation
	case src.HasDualDestination():
		return c.DualDestEvent
	case nav:
		return c.Navigation
	default:
		return c.Event
	}
}

// Limits are the configured privacy thresholds.
type Limits struct {
	DestinationRateLimitEnabled                    bool          `yaml:"destination_rate_limit_enabled"`
	DestinationRateLimitWindow                     time.Duration `yaml:"destination_rate_limit_window"`
	MaxDestinationsPerPublisherInWindow            int           `yaml:"max_destinations_per_publisher_in_window"`
	RateLimitWindow                                time.Duration `yaml:"rate_limit_window"`
	MaxDestinationsPerPublisherXEnrollmentInWindow int           `yaml:"max_destinations_per_publisher_x_enrollment_in_window"`
	MaxDestinationsInActiveSource                  int           `yaml:"max_destinations_in_active_source"`
	MaxRegistrationOriginsPerPublisherXDestination int           `yaml:"max_registration_origins_per_publisher_x_destination"`
	MaxSourcesPerPublisher                         int           `yaml:"max_sources_per_publisher"`
	MaxTriggersPerDestination                      int           `yaml:"max_triggers_per_destination"`
	MaxReportStates                                float64       `yaml:"max_report_states"`
	InformationGain                                Ceilings      `yaml:"information_gain"`
	Epsilon                                        float64       `yaml:"epsilon"`
}

// DefaultLimits returns the production thresholds.
func DefaultLimits() Limits {
	return Limits{
		DestinationRateLimitEnabled:                    true,
		DestinationRateLimitWindow:                     time.Minute,
		MaxDestinationsPerPublisherInWindow:            50,
		RateLimitWindow:                                30 * 24 * time.Hour,
		MaxDestinationsPerPublisherXEnrollmentInWindow: 200,
		MaxDestinationsInActiveSource:                  100,
		MaxRegistrationOriginsPerPublisherXDestination: 100,
		MaxSourcesPerPublisher:                         4096,
		MaxTriggersPerDestination:                      1024,
		MaxReportStates:                                1<<32 - 1,
		InformationGain: Ceilings{
			Event:              6.5,
			Navigation:         11.46173,
			DualDestEvent:      6.5,
			DualDestNavigation: 11.46173,
		},
		Epsilon: 14,
	}
}

// Decision is the gate's verdict. Check and Surface identify the first failing
// check when Allowed is false.
type Decision struct {
	Allowed bool
	Check   Check
	Surface models.Surface
}

var allowed = Decision{Allowed: true}

// Gate evaluates privacy checks against store-provided counts.
type Gate struct {
	limits  Limits
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New builds a Gate.
func New(limits Limits, opts ...Option) *Gate {
	g := &Gate{limits: limits, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SourceAllowed runs the ordered source checks once per destination surface
// present on src, app before web. The first failing check rejects.
func (g *Gate) SourceAllowed(ctx context.Context, counts ports.PrivacyCounts, src *models.Source) (Decision, error) {
	for _, surface := range src.Surfaces() {
		d, err := g.sourceAllowedOnSurface(ctx, counts, src, surface)
		if err != nil {
			return Decision{}, err
		}
		if !d.Allowed {
			g.reject(ctx, d, src.EnrollmentID)
			return d, nil
		}
	}
	return allowed, nil
}

type sourceCheck func(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, surface models.Surface) (bool, error)

func (g *Gate) sourceAllowedOnSurface(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, surface models.Surface) (Decision, error) {
	checks := []struct {
		name Check
		fn   sourceCheck
	}{
		{CheckDestinationRateLimit, g.destinationRateLimit},
		{CheckDestinationsPerEnrollmentWindow, g.destinationsPerEnrollmentWindow},
		{CheckDestinationsPerEnrollmentActive, g.destinationsPerEnrollmentActive},
		{CheckReportingOriginsPerDestination, g.reportingOriginsPerDestination},
		{CheckRegistrationOriginPerEnrollment, g.registrationOriginPerEnrollment},
		{CheckSourcesPerPublisher, g.sourcesPerPublisher},
		{CheckFlexInformationGain, g.flexInformationGain},
		{CheckFlexLiteInformationGain, g.flexLiteInformationGain},
	}
	for _, c := range checks {
		ok, err := c.fn(ctx, counts, src, surface)
		if err != nil {
			return Decision{}, fmt.Errorf("privacy check %s: %w", c.name, err)
		}
		if !ok {
			return Decision{Check: c.name, Surface: surface}, nil
		}
	}
	return allowed, nil
}

func (g *Gate) destinationRateLimit(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, surface models.Surface) (bool, error) {
	if !g.limits.DestinationRateLimitEnabled {
		return true, nil
	}
	dests := src.Destinations(surface)
	n, err := counts.CountDistinctDestinationsPerPublisherInWindow(ctx, src.Publisher, surface, dests,
		src.EventTime.Add(-g.limits.DestinationRateLimitWindow), src.EventTime)
	if err != nil {
		return false, err
	}
	return n+len(dests) <= g.limits.MaxDestinationsPerPublisherInWindow, nil
}

func (g *Gate) destinationsPerEnrollmentWindow(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, surface models.Surface) (bool, error) {
	dests := src.Destinations(surface)
	n, err := counts.CountDistinctDestinationsPerPublisherXEnrollmentInWindow(ctx, src.Publisher, src.EnrollmentID, surface, dests,
		src.EventTime.Add(-g.limits.RateLimitWindow), src.EventTime)
	if err != nil {
		return false, err
	}
	return n+len(dests) <= g.limits.MaxDestinationsPerPublisherXEnrollmentInWindow, nil
}

func (g *Gate) destinationsPerEnrollmentActive(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, surface models.Surface) (bool, error) {
	dests := src.Destinations(surface)
	n, err := counts.CountDistinctDestinationsPerPublisherXEnrollmentInActiveSource(ctx, src.Publisher, src.EnrollmentID, surface, dests, src.EventTime)
	if err != nil {
		return false, err
	}
	return n+len(dests) <= g.limits.MaxDestinationsInActiveSource, nil
}

func (g *Gate) reportingOriginsPerDestination(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, surface models.Surface) (bool, error) {
	n, err := counts.CountDistinctRegistrationOriginsPerPublisherXDestination(ctx, src.Publisher, src.Destinations(surface), src.RegistrationOrigin, src.EventTime)
	if err != nil {
		return false, err
	}
	return n < g.limits.MaxRegistrationOriginsPerPublisherXDestination, nil
}

func (g *Gate) registrationOriginPerEnrollment(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, _ models.Surface) (bool, error) {
	n, err := counts.CountActiveSourcesWithOtherRegistrationOrigin(ctx, src.Publisher, src.EnrollmentID, src.RegistrationOrigin, src.EventTime)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (g *Gate) sourcesPerPublisher(ctx context.Context, counts ports.PrivacyCounts, src *models.Source, _ models.Surface) (bool, error) {
	n, err := counts.CountSourcesPerPublisher(ctx, src.Publisher, src.PublisherType)
	if err != nil {
		return false, err
	}
	return n < g.limits.MaxSourcesPerPublisher, nil
}

func (g *Gate) flexInformationGain(_ context.Context, _ ports.PrivacyCounts, src *models.Source, _ models.Surface) (bool, error) {
	if !src.HasTriggerSpecs() {
		return true, nil
	}
	return g.withinInformationGain(src), nil
}

func (g *Gate) flexLiteInformationGain(_ context.Context, _ ports.PrivacyCounts, src *models.Source, _ models.Surface) (bool, error) {
	if !src.HasFlexLite() {
		return true, nil
	}
	return g.withinInformationGain(src), nil
}

func (g *Gate) withinInformationGain(src *models.Source) bool {
	states := NumStates(src)
	if states > g.limits.MaxReportStates {
		return false
	}
	return InformationGain(states, g.limits.Epsilon) <= g.limits.InformationGain.For(src)
}

// TriggerAllowed rejects a trigger once its destination holds the configured
// maximum number of triggers.
func (g *Gate) TriggerAllowed(ctx context.Context, counts ports.PrivacyCounts, trig *models.Trigger) (Decision, error) {
	n, err := counts.CountTriggersPerDestination(ctx, trig.AttributionDestination, trig.DestinationType)
	if err != nil {
		return Decision{}, fmt.Errorf("privacy check %s: %w", CheckTriggersPerDestination, err)
	}
	if n >= g.limits.MaxTriggersPerDestination {
		d := Decision{Check: CheckTriggersPerDestination, Surface: trig.DestinationType}
		g.reject(ctx, d, trig.EnrollmentID)
		return d, nil
	}
	return allowed, nil
}

func (g *Gate) reject(ctx context.Context, d Decision, enrollmentID string) {
	g.metrics.IncPrivacyRejection(string(d.Check))
	g.logger.InfoContext(ctx, "privacy check rejected registration",
		"check", d.Check,
		"surface", d.Surface,
		"enrollment_id", enrollmentID,
	)
}
