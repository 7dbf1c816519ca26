package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) tx(fn func(store ports.Store) error) error {
	return s.store.RunInTx(s.ctx, fn)
}

func (s *StoreSuite) item(uri string, at time.Time) *models.WorkItem {
	return models.NewWorkItem(uri, models.RegistrationAppSource, at)
}

func (s *StoreSuite) TestRollbackDiscardsEveryWrite() {
	queued := s.item("https://ads.example.test/a", s.now)
	s.Require().NoError(s.tx(func(store ports.Store) error {
		return store.InsertWorkItem(s.ctx, queued)
	}))

	boom := errors.New("boom")
	err := s.tx(func(store ports.Store) error {
		s.Require().NoError(store.DeleteWorkItem(s.ctx, queued.ID))
		s.Require().NoError(store.InsertSource(s.ctx, &models.Source{ID: "src"}))
		s.Require().NoError(store.PutRedirectCounter(s.ctx, queued.RegistrationID, 5))
		return boom
	})
	s.ErrorIs(err, boom)

	s.Len(s.store.WorkItems(), 1)
	s.Empty(s.store.Sources())
	_, ok := s.store.RedirectCounter(queued.RegistrationID)
	s.False(ok)
}

func (s *StoreSuite) TestRetryIncrementRollsBackToo() {
	queued := s.item("https://ads.example.test/a", s.now)
	s.Require().NoError(s.tx(func(store ports.Store) error { return store.InsertWorkItem(s.ctx, queued) }))

	_ = s.tx(func(store ports.Store) error {
		s.Require().NoError(store.IncrementRetryCount(s.ctx, queued.ID))
		return errors.New("abort")
	})
	s.Equal(0, s.store.WorkItems()[0].RetryCount)

	s.Require().NoError(s.tx(func(store ports.Store) error { return store.IncrementRetryCount(s.ctx, queued.ID) }))
	s.Equal(1, s.store.WorkItems()[0].RetryCount)
}

func (s *StoreSuite) TestCancelledContextRejected() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	called := false
	err := s.store.RunInTx(ctx, func(ports.Store) error {
		called = true
		return nil
	})
	s.False(called)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *StoreSuite) TestTimeoutAbortsSlowTransaction() {
	st := New(WithTimeout(20 * time.Millisecond))
	queued := s.item("https://ads.example.test/a", s.now)
	err := st.RunInTx(s.ctx, func(store ports.Store) error {
		s.Require().NoError(store.InsertWorkItem(s.ctx, queued))
		time.Sleep(60 * time.Millisecond)
		return nil
	})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.Empty(st.WorkItems())

	// The default budget commits the same unit of work.
	s.Require().NoError(New(WithTimeout(0)).RunInTx(s.ctx, func(store ports.Store) error {
		time.Sleep(60 * time.Millisecond)
		return store.InsertWorkItem(s.ctx, queued)
	}))
}

func (s *StoreSuite) TestNextEligibleWorkItem() {
	older := s.item("https://b.example.test/x", s.now)
	newer := s.item("https://a.example.test/x", s.now.Add(time.Second))
	exhausted := s.item("https://c.example.test/x", s.now.Add(-time.Hour))
	exhausted.RetryCount = 5
	s.Require().NoError(s.tx(func(store ports.Store) error {
		for _, it := range []*models.WorkItem{newer, older, exhausted} {
			if err := store.InsertWorkItem(s.ctx, it); err != nil {
				return err
			}
		}
		return nil
	}))

	s.Require().NoError(s.tx(func(store ports.Store) error {
		next, err := store.NextEligibleWorkItem(s.ctx, 5, nil)
		s.Require().NoError(err)
		s.Equal(older.ID, next.ID)

		next, err = store.NextEligibleWorkItem(s.ctx, 5, []string{older.RegistrationOrigin})
		s.Require().NoError(err)
		s.Equal(newer.ID, next.ID)

		next, err = store.NextEligibleWorkItem(s.ctx, 5, []string{older.RegistrationOrigin, newer.RegistrationOrigin})
		s.Require().NoError(err)
		s.Nil(next)
		return nil
	}))
}

func (s *StoreSuite) TestDuplicateAndMissingItems() {
	it := s.item("https://ads.example.test/a", s.now)
	err := s.tx(func(store ports.Store) error {
		s.Require().NoError(store.InsertWorkItem(s.ctx, it))
		return store.InsertWorkItem(s.ctx, it)
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	err = s.tx(func(store ports.Store) error { return store.DeleteWorkItem(s.ctx, "missing") })
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestRedirectCounterDefaultsToOne() {
	s.Require().NoError(s.tx(func(store ports.Store) error {
		n, err := store.GetRedirectCounter(s.ctx, "chain")
		s.Require().NoError(err)
		s.Equal(models.DefaultRedirectCount, n)
		return store.PutRedirectCounter(s.ctx, "chain", 3)
	}))
	n, ok := s.store.RedirectCounter("chain")
	s.True(ok)
	s.Equal(3, n)
}

func (s *StoreSuite) TestPrivacyCounts() {
	day := 24 * time.Hour
	sources := []*models.Source{
		{
			ID: "1", Publisher: "pub", PublisherType: models.SurfaceApp, EnrollmentID: "e1",
			RegistrationOrigin: "https://a.test", AppDestinations: []string{"android-app://one"},
			WebDestinations: []string{"https://shop.test"},
			EventTime:       s.now.Add(-30 * time.Second), ExpiryTime: s.now.Add(day),
		},
		{
			ID: "2", Publisher: "pub", PublisherType: models.SurfaceApp, EnrollmentID: "e2",
			RegistrationOrigin: "https://b.test", AppDestinations: []string{"android-app://two"},
			EventTime: s.now.Add(-2 * day), ExpiryTime: s.now.Add(day),
		},
		{
			ID: "3", Publisher: "pub", PublisherType: models.SurfaceApp, EnrollmentID: "e1",
			RegistrationOrigin: "https://c.test", AppDestinations: []string{"android-app://three"},
			EventTime: s.now.Add(-40 * day), ExpiryTime: s.now.Add(-day),
		},
	}
	s.Require().NoError(s.tx(func(store ports.Store) error {
		for _, src := range sources {
			if err := store.InsertSource(s.ctx, src); err != nil {
				return err
			}
		}
		return store.InsertTrigger(s.ctx, &models.Trigger{AttributionDestination: "android-app://one", DestinationType: models.SurfaceApp})
	}))

	s.Require().NoError(s.tx(func(store ports.Store) error {
		n, err := store.CountDistinctDestinationsPerPublisherInWindow(s.ctx, "pub", models.SurfaceApp, nil, s.now.Add(-time.Minute), s.now)
		s.Require().NoError(err)
		s.Equal(1, n)

		n, err = store.CountDistinctDestinationsPerPublisherInWindow(s.ctx, "pub", models.SurfaceApp, []string{"android-app://one"}, s.now.Add(-time.Minute), s.now)
		s.Require().NoError(err)
		s.Zero(n)

		n, err = store.CountDistinctDestinationsPerPublisherXEnrollmentInWindow(s.ctx, "pub", "e1", models.SurfaceApp, nil, s.now.Add(-60*day), s.now)
		s.Require().NoError(err)
		s.Equal(2, n)

		n, err = store.CountDistinctDestinationsPerPublisherXEnrollmentInActiveSource(s.ctx, "pub", "e1", models.SurfaceApp, nil, s.now)
		s.Require().NoError(err)
		s.Equal(1, n)

		n, err = store.CountDistinctRegistrationOriginsPerPublisherXDestination(s.ctx, "pub", []string{"https://shop.test", "android-app://two"}, "https://z.test", s.now)
		s.Require().NoError(err)
		s.Equal(2, n)

		n, err = store.CountActiveSourcesWithOtherRegistrationOrigin(s.ctx, "pub", "e1", "https://a.test", s.now)
		s.Require().NoError(err)
		s.Zero(n)

		n, err = store.CountActiveSourcesWithOtherRegistrationOrigin(s.ctx, "pub", "e2", "https://a.test", s.now)
		s.Require().NoError(err)
		s.Equal(1, n)

		n, err = store.CountSourcesPerPublisher(s.ctx, "pub", models.SurfaceApp)
		s.Require().NoError(err)
		s.Equal(3, n)

		n, err = store.CountTriggersPerDestination(s.ctx, "android-app://one", models.SurfaceApp)
		s.Require().NoError(err)
		s.Equal(1, n)
		return nil
	}))
}
