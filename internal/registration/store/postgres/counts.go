package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"registrar/internal/registration/models"
)

func destinationColumn(surface models.Surface) string {
	if surface == models.SurfaceWeb {
		return "web_destinations"
	}
	return "app_destinations"
}

func (s *Store) CountDistinctDestinationsPerPublisherInWindow(ctx context.Context, publisher string, surface models.Surface, excluded []string, from, to time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(DISTINCT d)
		FROM registration_sources src, unnest(src.%s) AS d
		WHERE src.publisher = $1 AND src.event_time BETWEEN $2 AND $3 AND NOT (d = ANY($4))`,
		destinationColumn(surface))
	return s.count(ctx, "destinations per publisher", query, publisher, from, to, pq.Array(nonNil(excluded)))
}

func (s *Store) CountDistinctDestinationsPerPublisherXEnrollmentInWindow(ctx context.Context, publisher, enrollmentID string, surface models.Surface, excluded []string, from, to time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(DISTINCT d)
		FROM registration_sources src, unnest(src.%s) AS d
		WHERE src.publisher = $1 AND src.enrollment_id = $2 AND src.event_time BETWEEN $3 AND $4
			AND NOT (d = ANY($5))`,
		destinationColumn(surface))
	return s.count(ctx, "destinations per enrollment in window", query,
		publisher, enrollmentID, from, to, pq.Array(nonNil(excluded)))
}

func (s *Store) CountDistinctDestinationsPerPublisherXEnrollmentInActiveSource(ctx context.Context, publisher, enrollmentID string, surface models.Surface, excluded []string, now time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(DISTINCT d)
		FROM registration_sources src, unnest(src.%s) AS d
		WHERE src.publisher = $1 AND src.enrollment_id = $2 AND src.expiry_time > $3
			AND NOT (d = ANY($4))`,
		destinationColumn(surface))
	return s.count(ctx, "destinations per active enrollment", query,
		publisher, enrollmentID, now, pq.Array(nonNil(excluded)))
}

func (s *Store) CountDistinctRegistrationOriginsPerPublisherXDestination(ctx context.Context, publisher string, destinations []string, excludedOrigin string, now time.Time) (int, error) {
	return s.count(ctx, "origins per destination", `SELECT COUNT(DISTINCT registration_origin)
		FROM registration_sources
		WHERE publisher = $1 AND expiry_time > $2 AND registration_origin <> $3
			AND (app_destinations && $4 OR web_destinations && $4)`,
		publisher, now, excludedOrigin, pq.Array(nonNil(destinations)))
}

func (s *Store) CountActiveSourcesWithOtherRegistrationOrigin(ctx context.Context, publisher, enrollmentID, origin string, now time.Time) (int, error) {
	return s.count(ctx, "sources with other origin", `SELECT COUNT(*)
		FROM registration_sources
		WHERE publisher = $1 AND enrollment_id = $2 AND expiry_time > $3 AND registration_origin <> $4`,
		publisher, enrollmentID, now, origin)
}

func (s *Store) CountSourcesPerPublisher(ctx context.Context, publisher string, surface models.Surface) (int, error) {
	return s.count(ctx, "sources per publisher", `SELECT COUNT(*)
		FROM registration_sources WHERE publisher = $1 AND publisher_type = $2`,
		publisher, string(surface))
}

func (s *Store) CountTriggersPerDestination(ctx context.Context, destination string, surface models.Surface) (int, error) {
	return s.count(ctx, "triggers per destination", `SELECT COUNT(*)
		FROM registration_triggers WHERE attribution_destination = $1 AND destination_type = $2`,
		destination, string(surface))
}

func (s *Store) count(ctx context.Context, what, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", what, err)
	}
	return n, nil
}
