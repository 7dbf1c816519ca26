package enrollment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"registrar/internal/registration/fetcher"
	"registrar/internal/registration/ports"
	"registrar/pkg/platform/circuit"
)

const (
	cacheKeyPrefix  = "enrollment:site:"
	notEnrolled     = "-"
	defaultCacheTTL = 10 * time.Minute
)

var _ ports.EnrollmentLookup = (*CachedLookup)(nil)

// Cache is the subset of the go-redis client the lookup uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedLookup fronts another lookup with Redis. Concurrent misses for one
// site share a single directory query. A run of Redis failures opens the
// breaker; while open, cached values are ignored and every call goes to the
// directory.
type CachedLookup struct {
	next    ports.EnrollmentLookup
	cache   Cache
	ttl     time.Duration
	group   singleflight.Group
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// CacheOption configures a CachedLookup.
type CacheOption func(*CachedLookup)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedLookup) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedLookup) {
		c.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) CacheOption {
	return func(c *CachedLookup) {
		c.breaker = b
	}
}

// NewCachedLookup wraps next.
func NewCachedLookup(next ports.EnrollmentLookup, cache Cache, opts ...CacheOption) *CachedLookup {
	c := &CachedLookup{
		next:    next,
		cache:   cache,
		ttl:     defaultCacheTTL,
		breaker: circuit.New("enrollment-cache"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type resolved struct {
	id string
	ok bool
}

func (c *CachedLookup) Resolve(ctx context.Context, uri string) (string, bool, error) {
	site, err := fetcher.Site(uri)
	if err != nil {
		return c.next.Resolve(ctx, uri)
	}
	key := cacheKeyPrefix + site

	if id, ok, hit := c.fromCache(ctx, key); hit {
		return id, ok, nil
	}

	v, err, _ := c.group.Do(site, func() (any, error) {
		id, ok, err := c.next.Resolve(ctx, uri)
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, id, ok)
		return resolved{id: id, ok: ok}, nil
	})
	if err != nil {
		return "", false, err
	}
	r := v.(resolved)
	return r.id, r.ok, nil
}

func (c *CachedLookup) fromCache(ctx context.Context, key string) (id string, ok, hit bool) {
	val, err := c.cache.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.recordSuccess(ctx)
		return "", false, false
	}
	if err != nil {
		c.recordFailure(ctx, err)
		return "", false, false
	}
	if usePrimary := c.recordSuccess(ctx); !usePrimary {
		return "", false, false
	}
	if val == notEnrolled {
		return "", false, true
	}
	return val, true, true
}

func (c *CachedLookup) store(ctx context.Context, key, id string, ok bool) {
	val := id
	if !ok {
		val = notEnrolled
	}
	if err := c.cache.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.recordFailure(ctx, err)
	}
}

func (c *CachedLookup) recordSuccess(ctx context.Context) bool {
	usePrimary, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "enrollment cache recovered", "breaker", c.breaker.Name())
	}
	return usePrimary
}

func (c *CachedLookup) recordFailure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "enrollment cache unavailable, bypassing",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}
