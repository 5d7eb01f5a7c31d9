package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var validPath = regexp.MustCompile(`^[a-z0-9\-_%/]*$`)

// IsNotFoundPath reports whether a raw request path asks for the 404 page.
// Such paths never reach the store.
func IsNotFoundPath(raw string) bool {
	return strings.Contains(raw, "404")
}

// NormalizePath turns a raw request path or absolute URL into a RoutePath:
// lowercase, without scheme, host, query or fragment, no leading or trailing
// slash and no empty segments. The empty string is the site root.
func NormalizePath(raw string) (string, error) {
	p := strings.TrimSpace(raw)

	if strings.Contains(p, "://") {
		u, err := url.Parse(p)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedPath, err)
		}
		p = u.EscapedPath()
	}
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	p = strings.ToLower(p)
	segments := strings.Split(p, "/")
	kept := segments[:0]
	for _, segment := range segments {
		switch segment {
		case "":
			continue
		case ".", "..":
			return "", fmt.Errorf("%w: relative segment in %q", ErrMalformedPath, raw)
		}
		kept = append(kept, segment)
	}
	p = strings.Join(kept, "/")

	if !validPath.MatchString(p) {
		return "", fmt.Errorf("%w: %q", ErrMalformedPath, raw)
	}
	return p, nil
}

// LastSegment returns the final segment of a RoutePath, decoded.
func LastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}

// Slugify derives a URL slug from a title the way sanitize_title does for
// plain ASCII input.
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case r == '_':
			b.WriteRune(r)
			dash = false
		case unicode.IsSpace(r) || r == '-' || r == '/' || r == '.':
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// URLPath renders a RoutePath as an absolute URL path with a trailing slash,
// the shape WordPress permalinks use.
func URLPath(path string) string {
	if path == "" {
		return "/"
	}
	return "/" + path + "/"
}
