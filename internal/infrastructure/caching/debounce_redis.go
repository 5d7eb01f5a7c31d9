package caching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGate is a DebounceGate shared by every process using the same Redis.
// Each entity gets a set of handled targets that expires one window after it
// was created.
type RedisGate struct {
	client *redis.Client
	keys   KeyBuilder
	window time.Duration
}

func NewRedisGate(client *redis.Client, keys KeyBuilder, window time.Duration) *RedisGate {
	return &RedisGate{client: client, keys: keys, window: window}
}

func (g *RedisGate) Admit(ctx context.Context, id int64, targets []string) ([]string, error) {
	targets = dedupe(targets)
	if g.window <= 0 || len(targets) == 0 {
		return targets, nil
	}

	key := g.keys.DebounceKey(id)
	pipe := g.client.TxPipeline()
	added := make([]*redis.IntCmd, len(targets))
	for i, target := range targets {
		added[i] = pipe.SAdd(ctx, key, target)
	}
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to record debounce targets: %w", err)
	}
	// A set without expiry was created by this call.
	if ttl.Val() < 0 {
		if err := g.client.PExpire(ctx, key, g.window).Err(); err != nil {
			return nil, fmt.Errorf("failed to open debounce window: %w", err)
		}
	}

	admitted := make([]string, 0, len(targets))
	for i, cmd := range added {
		if cmd.Val() > 0 {
			admitted = append(admitted, targets[i])
		}
	}
	return admitted, nil
}
