// Package ports declares the collaborators of the registration pipeline.
package ports

import (
	"context"
	"time"

	"registrar/internal/registration/models"
)

// Store is the transactional view of registration storage. All methods called
// on a Store handed out by TxRunner.RunInTx belong to that transaction.
type Store interface {
	// NextEligibleWorkItem returns the oldest queued item whose retry count is
	// below maxRetries and whose origin is not in excludedOrigins. It returns
	// nil with no error when the queue is drained.
	NextEligibleWorkItem(ctx context.Context, maxRetries int, excludedOrigins []string) (*models.WorkItem, error)
	InsertWorkItem(ctx context.Context, item *models.WorkItem) error
	DeleteWorkItem(ctx context.Context, id string) error
	IncrementRetryCount(ctx context.Context, id string) error

	// InsertSource and InsertTrigger assign the entity id when it is empty.
	InsertSource(ctx context.Context, source *models.Source) error
	InsertTrigger(ctx context.Context, trigger *models.Trigger) error
	InsertEventReport(ctx context.Context, report *models.EventReport) error
	InsertAttribution(ctx context.Context, row *models.AttributionLedgerRow) error

	// GetRedirectCounter returns the chain counter, or DefaultRedirectCount
	// when the chain has no row.
	GetRedirectCounter(ctx context.Context, registrationID string) (int, error)
	PutRedirectCounter(ctx context.Context, registrationID string, count int) error

	PrivacyCounts
}

// PrivacyCounts are the threshold queries the privacy gate reads. Every
// destination-count query excludes the candidate's own destinations.
type PrivacyCounts interface {
	// CountDistinctDestinationsPerPublisherInWindow counts destinations of
	// sources registered for publisher with event time in [from, to].
	CountDistinctDestinationsPerPublisherInWindow(ctx context.Context, publisher string, surface models.Surface, excluded []string, from, to time.Time) (int, error)
	// CountDistinctDestinationsPerPublisherXEnrollmentInWindow narrows the
	// window count to one enrollment.
	CountDistinctDestinationsPerPublisherXEnrollmentInWindow(ctx context.Context, publisher, enrollmentID string, surface models.Surface, excluded []string, from, to time.Time) (int, error)
	// CountDistinctDestinationsPerPublisherXEnrollmentInActiveSource counts
	// destinations among sources unexpired at now.
	CountDistinctDestinationsPerPublisherXEnrollmentInActiveSource(ctx context.Context, publisher, enrollmentID string, surface models.Surface, excluded []string, now time.Time) (int, error)
	// CountDistinctRegistrationOriginsPerPublisherXDestination counts
	// registration origins other than excludedOrigin among unexpired sources
	// for publisher that declare any of destinations.
	CountDistinctRegistrationOriginsPerPublisherXDestination(ctx context.Context, publisher string, destinations []string, excludedOrigin string, now time.Time) (int, error)
	// CountActiveSourcesWithOtherRegistrationOrigin counts unexpired sources of
	// publisher×enrollment registered under an origin other than origin.
	CountActiveSourcesWithOtherRegistrationOrigin(ctx context.Context, publisher, enrollmentID, origin string, now time.Time) (int, error)
	// CountSourcesPerPublisher counts every stored source of publisher.
	CountSourcesPerPublisher(ctx context.Context, publisher string, surface models.Surface) (int, error)
	// CountTriggersPerDestination counts stored triggers for destination.
	CountTriggersPerDestination(ctx context.Context, destination string, surface models.Surface) (int, error)
}

// TxRunner executes fn as one atomic unit. Any error from fn rolls back every
// write made through the Store it was given.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// EnrollmentLookup resolves the enrollment that operates a registration URI.
type EnrollmentLookup interface {
	// Resolve returns ok=false when no enrollment covers uri.
	Resolve(ctx context.Context, uri string) (enrollmentID string, ok bool, err error)
}

// InstallStateLookup answers whether an app destination is installed.
type InstallStateLookup interface {
	IsInstalled(ctx context.Context, destination string) (bool, error)
}

// DebugReporter emits debug reports. Report must not block the caller on
// delivery.
type DebugReporter interface {
	Report(ctx context.Context, reason string, candidate DebugCandidate)
}

// DebugCandidate is the rejected entity a debug report describes. Exactly one
// field is set.
type DebugCandidate struct {
	Source  *models.Source
	Trigger *models.Trigger
}

// NoiseDecision assigns an attribution mode and synthesizes fake reports.
type NoiseDecision interface {
	Decide(ctx context.Context, source *models.Source) (models.AttributionMode, []models.FakeReport, error)
}
