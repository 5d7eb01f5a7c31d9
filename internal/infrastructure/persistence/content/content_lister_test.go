package content

import (
	"context"
	"testing"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listingFixture struct {
	alpha, beta, gamma, about *content.Entity
}

func seedListing(t *testing.T, store *SQLContentStore) listingFixture {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	save := func(e *content.Entity, offset time.Duration) *content.Entity {
		e.CreatedAt = base.Add(offset)
		saved, err := store.Save(ctx, e)
		require.NoError(t, err)
		return saved
	}

	return listingFixture{
		alpha: save(&content.Entity{Title: "Alpha release", Slug: "alpha", Type: content.TypePost, Status: content.StatusPublished,
			Terms: []content.Term{{Taxonomy: content.TaxonomyCategory, Slug: "news", Name: "News", Description: "Company news"}}}, time.Hour),
		beta: save(&content.Entity{Title: "Beta notes", Slug: "beta", Type: content.TypePost, Status: content.StatusPublished,
			Terms: []content.Term{{Taxonomy: content.TaxonomyTag, Slug: "go", Name: "Go"}}}, 2*time.Hour),
		gamma: save(&content.Entity{Title: "Gamma plan", Slug: "gamma", Type: content.TypePost, Status: content.StatusDraft,
			Terms: []content.Term{{Taxonomy: content.TaxonomyCategory, Slug: "internal", Name: "Internal"}}}, 3*time.Hour),
		about: save(&content.Entity{Title: "About", Slug: "about", Type: content.TypePage, Status: content.StatusPublished}, 0),
	}
}

func entityIDs(entities []*content.Entity) []int64 {
	out := make([]int64, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

func TestListContentFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	f := seedListing(t, store)

	cases := []struct {
		name  string
		query content.PostQuery
		want  []int64
	}{
		{"published of every type, newest first", content.PostQuery{}, []int64{f.beta.ID, f.alpha.ID, f.about.ID}},
		{"by type", content.PostQuery{Types: []string{content.TypePost}}, []int64{f.beta.ID, f.alpha.ID}},
		{"excluding a type", content.PostQuery{ExcludeTypes: []string{content.TypePost}}, []int64{f.about.ID}},
		{"search", content.PostQuery{Search: "release"}, []int64{f.alpha.ID}},
		{"included ids", content.PostQuery{IncludeIDs: []int64{f.alpha.ID, f.gamma.ID}}, []int64{f.alpha.ID}},
		{"excluded ids", content.PostQuery{ExcludeIDs: []int64{f.beta.ID}}, []int64{f.alpha.ID, f.about.ID}},
		{"term slug", content.PostQuery{Terms: []content.TermFilter{{Taxonomy: content.TaxonomyCategory, Slugs: []string{"news"}}}}, []int64{f.alpha.ID}},
		{"term id", content.PostQuery{Terms: []content.TermFilter{{Taxonomy: content.TaxonomyTag, IDs: []int64{f.beta.Terms[0].ID}}}}, []int64{f.beta.ID}},
		{"term of another taxonomy", content.PostQuery{Terms: []content.TermFilter{{Taxonomy: content.TaxonomyTag, Slugs: []string{"news"}}}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entities, total, err := store.ListContent(ctx, tc.query)
			require.NoError(t, err)
			assert.Equal(t, len(tc.want), total)
			if tc.want == nil {
				assert.Empty(t, entities)
				return
			}
			assert.Equal(t, tc.want, entityIDs(entities))
		})
	}
}

func TestListContentPagesAndLoadsTerms(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	f := seedListing(t, store)

	entities, total, err := store.ListContent(ctx, content.PostQuery{Types: []string{content.TypePost}, PerPage: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entities, 1)
	assert.Equal(t, f.alpha.ID, entities[0].ID)
	require.Len(t, entities[0].Terms, 1)
	assert.Equal(t, "news", entities[0].Terms[0].Slug)
}

func TestTermsByTaxonomy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedListing(t, store)

	all, err := store.TermsByTaxonomy(ctx, content.TaxonomyCategory, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "internal", all[0].Slug)
	assert.Equal(t, "news", all[1].Slug)
	assert.Equal(t, "Company news", all[1].Description)

	used, err := store.TermsByTaxonomy(ctx, content.TaxonomyCategory, true)
	require.NoError(t, err)
	require.Len(t, used, 1, "terms only on drafts are empty")
	assert.Equal(t, "news", used[0].Slug)

	none, err := store.TermsByTaxonomy(ctx, "genre", false)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFindTerm(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedListing(t, store)

	term, err := store.FindTerm(ctx, content.TaxonomyTag, "go")
	require.NoError(t, err)
	require.NotNil(t, term)
	assert.Equal(t, "Go", term.Name)

	missing, err := store.FindTerm(ctx, content.TaxonomyCategory, "go")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
