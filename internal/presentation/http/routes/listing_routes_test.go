package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostsEndpoint(t *testing.T) {
	r, c, _ := newTestApp(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Store.Save(ctx, &content.Entity{Slug: fmt.Sprintf("note-%d", i), Title: fmt.Sprintf("Note %d", i), Type: content.TypePost, Status: content.StatusPublished})
		require.NoError(t, err)
	}

	w := do(r, http.MethodGet, "/posts?post_type=post&per_page=2&cache_tag=post-type-post", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", w.Header().Get("X-WP-Total"))
	assert.Equal(t, "2", w.Header().Get("X-WP-TotalPages"))

	var posts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	assert.Len(t, posts, 2)
	assert.NotContains(t, posts[0], "content")

	tags, err := c.TagRegistry.Tags(ctx)
	require.NoError(t, err)
	assert.Contains(t, tags, "post-type-post")
}

func TestPostsEndpointFiltersAndSlugs(t *testing.T) {
	r, _, _ := newTestApp(t)

	w := do(r, http.MethodGet, "/api/v1/posts?filter_category=news&slug_only=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"slug":"hello-world","full_path":"/hello-world/"}]`, w.Body.String())
	assert.Equal(t, "1", w.Header().Get("X-WP-Total"))

	w = do(r, http.MethodGet, "/posts?filter_category=sports", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, "0", w.Header().Get("X-WP-TotalPages"))
}

func TestPostsEndpointRejectsBadQueries(t *testing.T) {
	r, _, _ := newTestApp(t)

	for _, target := range []string{"/posts?status=draft", "/posts?per_page=ten", "/posts?post__in=a,b", "/posts?status=bogus"} {
		w := do(r, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, decode(t, w), "error", target)
	}
}

func TestTaxonomyEndpoints(t *testing.T) {
	r, _, _ := newTestApp(t)

	w := do(r, http.MethodGet, "/tax_list/category?hide_empty=true", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var terms []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &terms))
	require.Len(t, terms, 1)
	assert.Equal(t, "news", terms[0]["slug"])
	assert.Equal(t, "/category/news/", terms[0]["url"])
	assert.Contains(t, terms[0], "term_id")

	w = do(r, http.MethodGet, "/api/v1/tax_term/category/news", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "News", decode(t, w)["name"])

	w = do(r, http.MethodGet, "/tax_term/category/sports", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodGet, "/tax_list/bad.taxonomy", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
