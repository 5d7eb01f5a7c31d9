package content

import "context"

// InvalidationEvent is raised synchronously by the store's mutation hooks.
// PreviousPath carries the canonical path the entity had before the write,
// when the writer knows it.
type InvalidationEvent struct {
	ContentID    int64      `json:"content_id"`
	Kind         ChangeKind `json:"change_kind"`
	PreviousPath *string    `json:"previous_path,omitempty"`
	Autosave     bool       `json:"autosave,omitempty"`
}

type autosaveKey struct{}

// WithAutosave marks writes performed under ctx as editor autosaves.
func WithAutosave(ctx context.Context) context.Context {
	return context.WithValue(ctx, autosaveKey{}, true)
}

// IsAutosave reports whether ctx was marked by WithAutosave.
func IsAutosave(ctx context.Context) bool {
	v, _ := ctx.Value(autosaveKey{}).(bool)
	return v
}

// Settings sections reported through MutationHooks.Settings.
const (
	SectionSettings  = "settings"
	SectionTemplates = "templates"
	SectionMenus     = "menus"
)
