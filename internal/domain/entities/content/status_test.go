package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusAcceptsWordPressNames(t *testing.T) {
	cases := map[string]Status{
		"publish":    StatusPublished,
		"published":  StatusPublished,
		"future":     StatusScheduled,
		"auto-draft": StatusDraft,
		"trash":      StatusTrashed,
		"inherit":    StatusRevision,
		" Private ":  StatusPrivate,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseStatus("archived")
	assert.Error(t, err)
}

func TestStatusWordPressRoundTrip(t *testing.T) {
	for _, status := range []Status{StatusPublished, StatusDraft, StatusPending, StatusScheduled, StatusPrivate, StatusTrashed, StatusRevision} {
		parsed, err := ParseStatus(status.WordPress())
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPublished.IsPublic())
	assert.False(t, StatusDraft.IsPublic())
	assert.True(t, StatusScheduled.IsDraftLike())
	assert.False(t, StatusTrashed.IsDraftLike())
	assert.False(t, StatusPublished.IsDraftLike())
}

func TestParseChangeKind(t *testing.T) {
	kind, err := ParseChangeKind("untrash")
	require.NoError(t, err)
	assert.Equal(t, ChangeRestored, kind)

	kind, err = ParseChangeKind("save")
	require.NoError(t, err)
	assert.Equal(t, ChangeUpdated, kind)

	_, err = ParseChangeKind("publish")
	assert.Error(t, err)
}

func TestTermArchivePath(t *testing.T) {
	assert.Equal(t, "category/news", Term{Taxonomy: TaxonomyCategory, Slug: "news"}.ArchivePath())
	assert.Equal(t, "tag/go", Term{Taxonomy: TaxonomyTag, Slug: "go"}.ArchivePath())
	assert.Equal(t, "genre/jazz", Term{Taxonomy: "genre", Slug: "jazz"}.ArchivePath())
}

func TestEntityRefCopiesParent(t *testing.T) {
	parent := int64(7)
	e := &Entity{ID: 42, Slug: "about-us", Type: TypePage, Status: StatusPublished, ParentID: &parent}

	ref := e.Ref()
	*e.ParentID = 9

	require.NotNil(t, ref.ParentID)
	assert.Equal(t, int64(7), *ref.ParentID)
	assert.False(t, ref.IsRevision())
}
