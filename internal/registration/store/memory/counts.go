package memory

import (
	"context"
	"slices"
	"time"

	"registrar/internal/registration/models"
)

func (t *txStore) CountDistinctDestinationsPerPublisherInWindow(_ context.Context, publisher string, surface models.Surface, excluded []string, from, to time.Time) (int, error) {
	return t.distinctDestinations(surface, excluded, func(src *models.Source) bool {
		return src.Publisher == publisher && inWindow(src.EventTime, from, to)
	}), nil
}

func (t *txStore) CountDistinctDestinationsPerPublisherXEnrollmentInWindow(_ context.Context, publisher, enrollmentID string, surface models.Surface, excluded []string, from, to time.Time) (int, error) {
	return t.distinctDestinations(surface, excluded, func(src *models.Source) bool {
		return src.Publisher == publisher && src.EnrollmentID == enrollmentID && inWindow(src.EventTime, from, to)
	}), nil
}

func (t *txStore) CountDistinctDestinationsPerPublisherXEnrollmentInActiveSource(_ context.Context, publisher, enrollmentID string, surface models.Surface, excluded []string, now time.Time) (int, error) {
	return t.distinctDestinations(surface, excluded, func(src *models.Source) bool {
		return src.Publisher == publisher && src.EnrollmentID == enrollmentID && src.ExpiryTime.After(now)
	}), nil
}

func (t *txStore) CountDistinctRegistrationOriginsPerPublisherXDestination(_ context.Context, publisher string, destinations []string, excludedOrigin string, now time.Time) (int, error) {
	origins := make(map[string]struct{})
	for _, src := range t.state.sources {
		if src.Publisher != publisher || !src.ExpiryTime.After(now) || src.RegistrationOrigin == excludedOrigin {
			continue
		}
		if declaresAny(src, destinations) {
			origins[src.RegistrationOrigin] = struct{}{}
		}
	}
	return len(origins), nil
}

func (t *txStore) CountActiveSourcesWithOtherRegistrationOrigin(_ context.Context, publisher, enrollmentID, origin string, now time.Time) (int, error) {
	n := 0
	for _, src := range t.state.sources {
		if src.Publisher == publisher && src.EnrollmentID == enrollmentID &&
			src.ExpiryTime.After(now) && src.RegistrationOrigin != origin {
			n++
		}
	}
	return n, nil
}

func (t *txStore) CountSourcesPerPublisher(_ context.Context, publisher string, surface models.Surface) (int, error) {
	n := 0
	for _, src := range t.state.sources {
		if src.Publisher == publisher && src.PublisherType == surface {
			n++
		}
	}
	return n, nil
}

func (t *txStore) CountTriggersPerDestination(_ context.Context, destination string, surface models.Surface) (int, error) {
	n := 0
	for _, trig := range t.state.triggers {
		if trig.AttributionDestination == destination && trig.DestinationType == surface {
			n++
		}
	}
	return n, nil
}

func (t *txStore) distinctDestinations(surface models.Surface, excluded []string, match func(*models.Source) bool) int {
	seen := make(map[string]struct{})
	for _, src := range t.state.sources {
		if !match(src) {
			continue
		}
		for _, dest := range src.Destinations(surface) {
			if !slices.Contains(excluded, dest) {
				seen[dest] = struct{}{}
			}
		}
	}
	return len(seen)
}

func declaresAny(src *models.Source, destinations []string) bool {
	for _, dest := range destinations {
		if slices.Contains(src.AppDestinations, dest) || slices.Contains(src.WebDestinations, dest) {
			return true
		}
	}
	return false
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
