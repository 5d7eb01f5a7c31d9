package content

import "errors"

var (
	// ErrNotFound reports that no entity resolves for a path or ID.
	ErrNotFound = errors.New("content not found")

	// ErrMalformedPath reports a request path that cannot be normalized.
	ErrMalformedPath = errors.New("malformed route path")

	// ErrStoreUnavailable wraps failures of the backing content store.
	ErrStoreUnavailable = errors.New("content store unavailable")
)
