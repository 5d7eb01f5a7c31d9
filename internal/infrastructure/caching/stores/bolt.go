package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
	bolt "go.etcd.io/bbolt"
)

var (
	_ interfaces.Backend = (*BoltStore)(nil)
	_ interfaces.Sweeper = (*BoltStore)(nil)
)

const boltBucket = "routes"

// BoltStore persists cache entries in a single bbolt file so a restarted
// process keeps its warm cache. Each value is stored as an 8-byte big endian
// expiry (unix milliseconds, 0 = never) followed by the raw bytes.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt cache: %w", err)
	}
	bucket := []byte(boltBucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bolt bucket: %w", err)
	}
	return &BoltStore{db: db, bucket: bucket, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (s *BoltStore) WithClock(now func() time.Time) *BoltStore {
	s.now = now
	return s
}

func (s *BoltStore) Name() string { return "bolt" }

func (s *BoltStore) expired(v []byte, nowMs int64) bool {
	expiresAt := int64(binary.BigEndian.Uint64(v[:8]))
	return expiresAt > 0 && nowMs >= expiresAt
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	found := false
	nowMs := s.now().UnixMilli()
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if len(v) < 8 || s.expired(v, nowMs) {
			return nil
		}
		found = true
		out = append([]byte{}, v[8:]...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read bolt cache: %w", err)
	}
	if !found {
		return nil, interfaces.ErrCacheMiss
	}
	return out, nil
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := int64(0)
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixMilli()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

func (s *BoltStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	p := []byte(prefix)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bolt prefix: %w", err)
	}
	return removed, nil
}

// PurgeExpired removes expired entries and returns how many were dropped.
func (s *BoltStore) PurgeExpired() int {
	removed := 0
	nowMs := s.now().UnixMilli()
	_ = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var keys [][]byte
		_ = b.ForEach(func(k, v []byte) error {
			if len(v) < 8 || s.expired(v, nowMs) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed
}

func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
