// Package caching derives cache keys and gates repeated invalidation work.
package caching

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// RouteFlags are the request parameters that select a cache variant of a
// route path.
type RouteFlags struct {
	IncludeContent bool
	Preview        bool
	ExplicitID     int64
}

func (f RouteFlags) variant() string {
	return fmt.Sprintf("c=%t|p=%t|id=%d", f.IncludeContent, f.Preview, f.ExplicitID)
}

// Digest is the 64-bit xxhash of s as 16 hex characters.
func Digest(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// KeyBuilder derives every key the service writes. Route keys have the form
// <ns>:route:<path digest>:<variant digest> so all variants of one path
// share a prefix.
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) KeyBuilder {
	return KeyBuilder{namespace: namespace}
}

func (k KeyBuilder) Namespace() string { return k.namespace }

// RoutePrefix covers every route entry.
func (k KeyBuilder) RoutePrefix() string {
	return k.namespace + ":route:"
}

// PathPrefix covers every variant of one normalized path.
func (k KeyBuilder) PathPrefix(path string) string {
	return k.RoutePrefix() + Digest(path) + ":"
}

// RouteKey is the key of one (path, flags) variant.
func (k KeyBuilder) RouteKey(path string, flags RouteFlags) string {
	return k.PathPrefix(path) + Digest(flags.variant())
}

// IDIndexPrefix covers every content ID index.
func (k KeyBuilder) IDIndexPrefix() string {
	return k.namespace + ":ididx:"
}

// IDIndexKey lists the route keys whose cached payload was built from id.
func (k KeyBuilder) IDIndexKey(id int64) string {
	return k.IDIndexPrefix() + strconv.FormatInt(id, 10)
}

// SnapshotKey holds the paths an entity occupied before a pending write.
func (k KeyBuilder) SnapshotKey(id int64) string {
	return k.namespace + ":snapshot:" + strconv.FormatInt(id, 10)
}

// TagRegistryKey holds the frontend cache tags seen on requests.
func (k KeyBuilder) TagRegistryKey() string {
	return k.namespace + ":tags"
}

// DebounceKey holds the targets already revalidated for an entity.
func (k KeyBuilder) DebounceKey(id int64) string {
	return k.namespace + ":debounce:" + strconv.FormatInt(id, 10)
}
