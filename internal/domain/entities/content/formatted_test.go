package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFormattedRestoresVariant(t *testing.T) {
	page := NewPage(BaseContent{ID: 42, Title: "About Us", Path: "/about-us/"})
	page.ParentID = 3

	raw, err := json.Marshal(page)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"page"`)

	decoded, err := DecodeFormatted(raw)
	require.NoError(t, err)

	got, ok := decoded.(*PageContent)
	require.True(t, ok)
	assert.Equal(t, KindPage, got.Kind())
	assert.Equal(t, int64(42), got.Base().ID)
	assert.Equal(t, int64(3), got.ParentID)
}

func TestDecodeFormattedArchive(t *testing.T) {
	archive := NewArchive(BaseContent{ID: 5}, ArchiveInfo{PostType: TypePost, Path: "blog"})
	raw, err := json.Marshal(archive)
	require.NoError(t, err)

	decoded, err := DecodeFormatted(raw)
	require.NoError(t, err)
	assert.Equal(t, KindArchive, decoded.Kind())
	assert.Equal(t, "blog", decoded.(*ArchiveContent).Archive.Path)
}

func TestDecodeFormattedRejectsUnknownKind(t *testing.T) {
	_, err := DecodeFormatted([]byte(`{"kind":"widget","id":1}`))
	assert.Error(t, err)

	_, err = DecodeFormatted([]byte(`not json`))
	assert.Error(t, err)
}
