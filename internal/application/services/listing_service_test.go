package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPostsRegistersTagAndCounts(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	page, err := env.listings.List(ctx, ListingRequest{
		Query:    content.PostQuery{Types: []string{content.TypePost}},
		CacheTag: "post-type-post",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Posts, 1)
	base := page.Posts[0].Base()
	assert.Equal(t, "hello-world", base.Slug.Slug)
	assert.Equal(t, "/hello-world/", base.Path)
	assert.Nil(t, base.Content, "content is opt-in for listings")

	tags, err := env.tags.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-type-post"}, tags)
}

func TestListSlugOnly(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	page, err := env.listings.List(context.Background(), ListingRequest{
		Query:    content.PostQuery{Types: []string{content.TypePage}},
		SlugOnly: true,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.ElementsMatch(t, []content.SlugInfo{
		{Slug: "home", FullPath: "/"},
		{Slug: "about-us", FullPath: "/about-us/"},
	}, page.Slugs)
	assert.Equal(t, page.Slugs, page.Body())
}

func TestListRejectsUnpublishedStatuses(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	_, err := env.listings.List(context.Background(), ListingRequest{
		Query: content.PostQuery{Statuses: []content.Status{content.StatusDraft}},
	})
	assert.ErrorIs(t, err, ErrNonPublicListing)
	assert.Zero(t, env.counting.calls.Load())
}

func TestListUsesDefaultPageSize(t *testing.T) {
	env := newTestEnv(t, envOptions{noHooks: true})
	for i := 0; i < 12; i++ {
		env.save(t, &content.Entity{Slug: fmt.Sprintf("post-%d", i), Title: fmt.Sprintf("Post %d", i), Type: content.TypePost, Status: content.StatusPublished})
	}

	page, err := env.listings.List(context.Background(), ListingRequest{Query: content.PostQuery{Types: []string{content.TypePost}}})
	require.NoError(t, err)
	assert.Equal(t, 13, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Posts, 10)

	last, err := env.listings.List(context.Background(), ListingRequest{Query: content.PostQuery{Types: []string{content.TypePost}, Page: 2}})
	require.NoError(t, err)
	assert.Len(t, last.Posts, 3)
}

func TestTermsAndTerm(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()

	terms, err := env.listings.Terms(ctx, content.TaxonomyCategory, true)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "news", terms[0].Slug)
	assert.Equal(t, "https://cms.example/category/news/", terms[0].URL)

	term, err := env.listings.Term(ctx, content.TaxonomyCategory, "news")
	require.NoError(t, err)
	require.NotNil(t, term)
	assert.Equal(t, "News", term.Name)

	missing, err := env.listings.Term(ctx, content.TaxonomyCategory, "sports")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
