package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/interfaces"
)

const (
	// PostIDsTagPrefix marks frontend tags listing the entity IDs a render
	// depends on, e.g. post-ids-12-40.
	PostIDsTagPrefix = "post-ids-"
	// PostTypeTagPrefix marks the tag covering every render of one type.
	PostTypeTagPrefix = "post-type-"
)

// TagRegistry remembers the cache tags the frontend sent with router
// requests so invalidation can revalidate them later. The set lives under
// one backend key and its TTL is refreshed on every new tag.
type TagRegistry struct {
	backend interfaces.Backend
	key     string
	ttl     time.Duration
	mu      sync.Mutex
}

func NewTagRegistry(backend interfaces.Backend, keys caching.KeyBuilder, ttl time.Duration) *TagRegistry {
	return &TagRegistry{backend: backend, key: keys.TagRegistryKey(), ttl: ttl}
}

// Register adds tag to the set.
func (r *TagRegistry) Register(ctx context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tags, err := r.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range tags {
		if existing == tag {
			return nil
		}
	}
	tags = append(tags, tag)
	sort.Strings(tags)

	raw, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tag registry: %w", err)
	}
	if err := r.backend.Set(ctx, r.key, raw, r.ttl); err != nil {
		return fmt.Errorf("failed to store tag registry: %w", err)
	}
	return nil
}

// Tags returns every registered tag.
func (r *TagRegistry) Tags(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// TagsForContent returns the registered post-ids tags that list id.
func (r *TagRegistry) TagsForContent(ctx context.Context, id int64) ([]string, error) {
	tags, err := r.Tags(ctx)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, tag := range tags {
		if tagListsID(tag, id) {
			matched = append(matched, tag)
		}
	}
	return matched, nil
}

func (r *TagRegistry) load(ctx context.Context) ([]string, error) {
	raw, err := r.backend.Get(ctx, r.key)
	if errors.Is(err, interfaces.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tag registry: %w", err)
	}

	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, nil
	}
	return tags, nil
}

// tagListsID reports whether a post-ids tag names id. IDs are separated by
// dashes or commas.
func tagListsID(tag string, id int64) bool {
	if !strings.HasPrefix(tag, PostIDsTagPrefix) {
		return false
	}
	want := strconv.FormatInt(id, 10)
	for _, part := range strings.FieldsFunc(strings.TrimPrefix(tag, PostIDsTagPrefix), func(r rune) bool {
		return r == '-' || r == ','
	}) {
		if part == want {
			return true
		}
	}
	return false
}

// PostTypeTag is the tag covering every render of postType.
func PostTypeTag(postType string) string {
	return PostTypeTagPrefix + postType
}
