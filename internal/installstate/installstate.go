// Package installstate answers whether an app destination is installed on
// the device population this registrar serves. The installed set is a Redis
// set fed by the platform's package-change events.
package installstate

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"registrar/internal/registration/ports"
)

// DefaultKey is the Redis set of installed app destinations.
const DefaultKey = "registrar:installed_apps"

var _ ports.InstallStateLookup = (*RedisLookup)(nil)

// Client is the subset of the go-redis client the lookup uses.
type Client interface {
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
}

// RedisLookup implements ports.InstallStateLookup over a Redis set.
type RedisLookup struct {
	client Client
	key    string
}

// New returns a lookup over key; an empty key uses DefaultKey.
func New(client Client, key string) *RedisLookup {
	if key == "" {
		key = DefaultKey
	}
	return &RedisLookup{client: client, key: key}
}

func (l *RedisLookup) IsInstalled(ctx context.Context, destination string) (bool, error) {
	installed, err := l.client.SIsMember(ctx, l.key, destination).Result()
	if err != nil {
		return false, fmt.Errorf("check install state of %s: %w", destination, err)
	}
	return installed, nil
}

// MarkInstalled adds destinations to the installed set.
func (l *RedisLookup) MarkInstalled(ctx context.Context, destinations ...string) error {
	if len(destinations) == 0 {
		return nil
	}
	if err := l.client.SAdd(ctx, l.key, toAny(destinations)...).Err(); err != nil {
		return fmt.Errorf("mark installed: %w", err)
	}
	return nil
}

// MarkUninstalled removes destinations from the installed set.
func (l *RedisLookup) MarkUninstalled(ctx context.Context, destinations ...string) error {
	if len(destinations) == 0 {
		return nil
	}
	if err := l.client.SRem(ctx, l.key, toAny(destinations)...).Err(); err != nil {
		return fmt.Errorf("mark uninstalled: %w", err)
	}
	return nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
