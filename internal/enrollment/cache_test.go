package enrollment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"registrar/internal/registration/ports/mocks"
	"registrar/pkg/platform/circuit"
)

type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

type CachedLookupSuite struct {
	suite.Suite
	ctx    context.Context
	next   *mocks.MockEnrollmentLookup
	cache  *fakeCache
	lookup *CachedLookup
}

func TestCachedLookupSuite(t *testing.T) {
	suite.Run(t, new(CachedLookupSuite))
}

func (s *CachedLookupSuite) SetupTest() {
	s.ctx = context.Background()
	s.next = mocks.NewMockEnrollmentLookup(gomock.NewController(s.T()))
	s.cache = newFakeCache()
	s.lookup = NewCachedLookup(s.next, s.cache,
		WithTTL(time.Minute),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))),
	)
}

func (s *CachedLookupSuite) TestMissPopulatesCacheBySite() {
	s.next.EXPECT().Resolve(gomock.Any(), "https://ads.example.test/register").Return("E1", true, nil)

	id, ok, err := s.lookup.Resolve(s.ctx, "https://ads.example.test/register")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("E1", id)
	s.Equal("E1", s.cache.values["enrollment:site:https://example.test"])
	s.Equal(time.Minute, s.cache.ttls["enrollment:site:https://example.test"])

	id, ok, err = s.lookup.Resolve(s.ctx, "https://other.example.test/hop")
	s.Require().NoError(err)
	s.True(ok, "same site is served from cache")
	s.Equal("E1", id)
}

func (s *CachedLookupSuite) TestNegativeResultsAreCached() {
	s.next.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("", false, nil).Times(1)

	for range 3 {
		_, ok, err := s.lookup.Resolve(s.ctx, "https://unknown.test/r")
		s.Require().NoError(err)
		s.False(ok)
	}
}

func (s *CachedLookupSuite) TestDirectoryErrorIsNotCached() {
	boom := errors.New("directory down")
	s.next.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("", false, boom)
	s.next.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("E2", true, nil)

	_, _, err := s.lookup.Resolve(s.ctx, "https://ads.example.test/r")
	s.ErrorIs(err, boom)

	id, ok, err := s.lookup.Resolve(s.ctx, "https://ads.example.test/r")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("E2", id)
}

func (s *CachedLookupSuite) TestCacheOutageFallsBackAndRecovers() {
	s.cache.values["enrollment:site:https://example.test"] = "STALE"
	s.cache.err = errors.New("connection refused")
	s.next.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return("E1", true, nil).Times(2)

	for range 2 {
		id, _, err := s.lookup.Resolve(s.ctx, "https://ads.example.test/r")
		s.Require().NoError(err)
		s.Equal("E1", id)
	}
	s.True(s.lookup.breaker.IsOpen())

	s.cache.err = nil
	id, ok, err := s.lookup.Resolve(s.ctx, "https://ads.example.test/r")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("STALE", id, "one success closes the breaker and the cached value is trusted again")
	s.False(s.lookup.breaker.IsOpen())
}

func (s *CachedLookupSuite) TestUnparseableURIBypassesCache() {
	s.next.EXPECT().Resolve(gomock.Any(), "not a uri").Return("", false, nil)
	_, ok, err := s.lookup.Resolve(s.ctx, "not a uri")
	s.Require().NoError(err)
	s.False(ok)
	s.Empty(s.cache.values)
}
