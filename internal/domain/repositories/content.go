// Package repositories defines the store interfaces the resolver, formatter
// and invalidation engine consume. They keep the application decoupled from
// the database that backs the content.
package repositories

import (
	"context"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
)

// ContentStore is the read side of the content database. Lookups that find
// nothing return a nil entity (or zero ID) and a nil error; errors are
// reserved for store failures.
type ContentStore interface {
	FindByID(ctx context.Context, id int64) (*content.Entity, error)
	FindIDByPath(ctx context.Context, path string) (int64, error)
	FindLatestBySlug(ctx context.Context, slug string, statuses []content.Status) (*content.Entity, error)
	FindByTitle(ctx context.Context, title string, statuses []content.Status) (*content.Entity, error)
	LatestRevision(ctx context.Context, parentID int64) (*content.Entity, error)
	TermsFor(ctx context.Context, id int64) ([]content.Term, error)
	PostType(ctx context.Context, name string) (*content.PostType, error)
	PostTypes(ctx context.Context) ([]content.PostType, error)
	Settings(ctx context.Context) (content.SiteSettings, error)
	Templates(ctx context.Context, postType string) ([]content.TemplateRecord, error)
	Ping(ctx context.Context) error
}

// ContentLister serves the listing endpoints. Lookups that find nothing
// return empty results and a nil error.
type ContentLister interface {
	ListContent(ctx context.Context, query content.PostQuery) ([]*content.Entity, int, error)
	TermsByTaxonomy(ctx context.Context, taxonomy string, hideEmpty bool) ([]content.Term, error)
	FindTerm(ctx context.Context, taxonomy, slug string) (*content.Term, error)
}

// ContentWriter is the write side. Every mutation raises an
// InvalidationEvent through the registered MutationHooks.
type ContentWriter interface {
	Save(ctx context.Context, entity *content.Entity) (*content.Entity, error)
	Trash(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	SaveSettings(ctx context.Context, settings content.SiteSettings) error
	SavePostType(ctx context.Context, postType content.PostType) error
	SaveTemplate(ctx context.Context, template content.TemplateRecord) (int64, error)
	SetHooks(hooks MutationHooks)
}

// MutationHooks are called synchronously around writes. Before runs while
// the previous state is still readable; After runs once the write is
// committed. Neither can fail the write.
type MutationHooks struct {
	Before   func(ctx context.Context, id int64)
	After    func(ctx context.Context, event content.InvalidationEvent)
	Settings func(ctx context.Context, section string)
}
