package services

import (
	"context"
	"testing"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/stores"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagListsID(t *testing.T) {
	tests := []struct {
		tag  string
		id   int64
		want bool
	}{
		{"post-ids-12", 12, true},
		{"post-ids-4-12-40", 12, true},
		{"post-ids-4,12", 12, true},
		{"post-ids-120", 12, false},
		{"post-ids-", 12, false},
		{"post-type-post", 12, false},
		{"settings", 12, false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, tagListsID(tt.tag, tt.id))
		})
	}
}

func TestTagRegistry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	backend := stores.NewMemoryStore().WithClock(func() time.Time { return now })
	registry := NewTagRegistry(backend, caching.NewKeyBuilder("np"), time.Hour)

	tags, err := registry.Tags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)

	for _, tag := range []string{"post-ids-9", "settings", " ", "post-ids-1-9", "settings"} {
		require.NoError(t, registry.Register(ctx, tag))
	}
	tags, err = registry.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-ids-1-9", "post-ids-9", "settings"}, tags)

	matched, err := registry.TagsForContent(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-ids-1-9", "post-ids-9"}, matched)

	now = now.Add(2 * time.Hour)
	tags, err = registry.Tags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags, "the set expires with its TTL")
}

func TestPostTypeTag(t *testing.T) {
	assert.Equal(t, "post-type-product", PostTypeTag("product"))
}
