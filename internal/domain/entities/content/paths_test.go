package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"root", "/", ""},
		{"empty", "", ""},
		{"trims slashes", "/about-us/", "about-us"},
		{"collapses repeats", "//parent///child//", "parent/child"},
		{"lowercases", "/About-Us", "about-us"},
		{"drops query and fragment", "/about?preview=true#top", "about"},
		{"absolute url", "https://example.com/blog/hello-world/?p=1", "blog/hello-world"},
		{"keeps escapes", "/caf%C3%A9", "caf%c3%a9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePathRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"/../etc/passwd", "/a/./b", "/hello world", "/<script>", "/a;b"} {
		_, err := NormalizePath(raw)
		assert.True(t, errors.Is(err, ErrMalformedPath), "expected malformed for %q", raw)
	}
}

func TestNormalizePathProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	segment := gen.RegexMatch(`[a-zA-Z0-9\-_]{1,8}`)
	paths := gen.SliceOfN(4, segment).Map(func(segments []string) string {
		return "/" + strings.Join(segments, "//") + "/"
	})

	properties.Property("normalization is idempotent", prop.ForAll(
		func(raw string) bool {
			once, err := NormalizePath(raw)
			if err != nil {
				return false
			}
			twice, err := NormalizePath(once)
			return err == nil && once == twice
		},
		paths,
	))

	properties.Property("normalized paths have no edge or doubled slashes", prop.ForAll(
		func(raw string) bool {
			p, err := NormalizePath(raw)
			if err != nil {
				return false
			}
			return !strings.HasPrefix(p, "/") && !strings.HasSuffix(p, "/") && !strings.Contains(p, "//")
		},
		paths,
	))

	properties.TestingRun(t)
}

func TestIsNotFoundPath(t *testing.T) {
	assert.True(t, IsNotFoundPath("/404"))
	assert.True(t, IsNotFoundPath("/blog/page-404-missing"))
	assert.False(t, IsNotFoundPath("/about-us"))
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "child", LastSegment("parent/child"))
	assert.Equal(t, "about", LastSegment("about"))
	assert.Equal(t, "", LastSegment(""))
	assert.Equal(t, "café", LastSegment("caf%c3%a9"))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello World"))
	assert.Equal(t, "about-us", Slugify("  About   Us! "))
	assert.Equal(t, "my_draft-2", Slugify("My_Draft 2"))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestURLPath(t *testing.T) {
	assert.Equal(t, "/", URLPath(""))
	assert.Equal(t, "/parent/child/", URLPath("parent/child"))
}
