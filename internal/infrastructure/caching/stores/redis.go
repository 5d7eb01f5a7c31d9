package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/redis/go-redis/v9"
)

var (
	_ interfaces.Backend        = (*RedisStore)(nil)
	_ interfaces.IndexedDeleter = (*RedisStore)(nil)
)

const (
	scanBatchSize = 1000

	// prefixIndexNamespace holds one set per parent prefix listing the keys
	// written directly under it.
	prefixIndexNamespace = "pidx:"
)

// setIndexed writes a key and adds it to its parent index. The index lives
// as long as its longest-lived member.
var setIndexed = redis.NewScript(`
local ttl = tonumber(ARGV[2])
local existed = redis.call('EXISTS', KEYS[2])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[1])
end
redis.call('SADD', KEYS[2], KEYS[1])
if ttl <= 0 then
  redis.call('PERSIST', KEYS[2])
elseif existed == 0 then
  redis.call('PEXPIRE', KEYS[2], ttl)
else
  local current = redis.call('PTTL', KEYS[2])
  if current >= 0 and current < ttl then
    redis.call('PEXPIRE', KEYS[2], ttl)
  end
end
return 1
`)

// deleteIndexed removes every member of an index and the index itself,
// returning how many members still existed.
var deleteIndexed = redis.NewScript(`
local removed = 0
for _, key in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  removed = removed + redis.call('DEL', key)
end
redis.call('DEL', KEYS[1])
return removed
`)

// RedisStore shares cache entries between processes. Expiry is delegated to
// Redis.
type RedisStore struct {
	client *redis.Client
	owned  bool

	indexRoot string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, logger *logging.ChanneledLogger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Cache().Info("Successfully connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &RedisStore{client: client, owned: true}, nil
}

// NewRedisStoreFromClient wraps an existing client. Close leaves the client
// open.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client returns the underlying client so other components can share the
// connection pool.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// WithPrefixIndex makes keys under root indexed by their parent prefix, so
// DeleteIndexed removes them without scanning the keyspace.
func (r *RedisStore) WithPrefixIndex(root string) *RedisStore {
	r.indexRoot = root
	return r
}

func (r *RedisStore) Name() string { return "redis" }

// indexKey is the index set of key's parent prefix, or "" when key is not
// indexed.
func (r *RedisStore) indexKey(key string) string {
	if r.indexRoot == "" || !strings.HasPrefix(key, r.indexRoot) {
		return ""
	}
	cut := strings.LastIndexByte(key, ':')
	if cut < len(r.indexRoot)-1 {
		return ""
	}
	return prefixIndexNamespace + key[:cut+1]
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, interfaces.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get value: %w", err)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if index := r.indexKey(key); index != "" {
		if err := setIndexed.Run(ctx, r.client, []string{key, index}, value, ttl.Milliseconds()).Err(); err != nil {
			return fmt.Errorf("failed to set indexed value: %w", err)
		}
		return nil
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	index := r.indexKey(key)
	if index == "" {
		if err := r.client.Unlink(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to unlink key: %w", err)
		}
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Unlink(ctx, key)
	pipe.SRem(ctx, index, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to unlink key: %w", err)
	}
	return nil
}

// DeleteIndexed removes the keys written directly under prefix using the
// prefix index. Prefixes outside the indexed root fall back to
// DeleteByPrefix.
func (r *RedisStore) DeleteIndexed(ctx context.Context, prefix string) (int, error) {
	if !strings.HasSuffix(prefix, ":") || r.indexKey(prefix) != prefixIndexNamespace+prefix {
		return r.DeleteByPrefix(ctx, prefix)
	}
	removed, err := deleteIndexed.Run(ctx, r.client, []string{prefixIndexNamespace + prefix}).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to delete indexed keys: %w", err)
	}
	return removed, nil
}

// DeleteByPrefix scans for keys under prefix and unlinks them in pipelined
// batches. Index sets under prefix are dropped too but not counted.
func (r *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	removed, err := r.unlinkMatching(ctx, escapeGlob(prefix)+"*")
	if err != nil || r.indexRoot == "" {
		return removed, err
	}
	if _, err := r.unlinkMatching(ctx, escapeGlob(prefixIndexNamespace+prefix)+"*"); err != nil {
		return removed, err
	}
	return removed, nil
}

func (r *RedisStore) unlinkMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			pipe := r.client.Pipeline()
			for _, k := range keys {
				pipe.Unlink(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return removed, fmt.Errorf("failed to unlink keys: %w", err)
			}
			removed += len(keys)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return removed, nil
}

func (r *RedisStore) Close() error {
	if r == nil || r.client == nil || !r.owned {
		return nil
	}
	return r.client.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
