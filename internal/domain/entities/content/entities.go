// Package content defines the content entities resolved and formatted for the
// decoupled frontend, plus the invalidation events raised when they change.
package content

import "time"

const (
	TypePost        = "post"
	TypePage        = "page"
	TypeRevision    = "revision"
	TypeNavMenuItem = "nav_menu_item"
	TypeBlock       = "wp_block"

	TaxonomyCategory = "category"
	TaxonomyTag      = "post_tag"
)

// ContentRef is an immutable snapshot of an entity taken at resolution time.
type ContentRef struct {
	ID         int64     `json:"id"`
	Slug       string    `json:"slug"`
	Type       string    `json:"type"`
	Status     Status    `json:"status"`
	ParentID   *int64    `json:"parentId,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// IsRevision reports whether the ref points at a stored revision.
func (r ContentRef) IsRevision() bool {
	return r.Type == TypeRevision || r.Status == StatusRevision
}

// Term is a taxonomy term assigned to an entity.
type Term struct {
	ID          int64  `json:"id"`
	Taxonomy    string `json:"taxonomy"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ArchivePath returns the route path of the term's archive listing.
func (t Term) ArchivePath() string {
	switch t.Taxonomy {
	case TaxonomyCategory:
		return "category/" + t.Slug
	case TaxonomyTag:
		return "tag/" + t.Slug
	default:
		return t.Taxonomy + "/" + t.Slug
	}
}

// RawBlock is a parsed editor block as stored with the entity.
type RawBlock struct {
	BlockName    string         `json:"blockName"`
	Attrs        map[string]any `json:"attrs,omitempty"`
	InnerHTML    string         `json:"innerHTML"`
	InnerContent []*string      `json:"innerContent,omitempty"`
	InnerBlocks  []RawBlock     `json:"innerBlocks,omitempty"`
}

// Entity is the full stored row of a content item.
type Entity struct {
	ID           int64
	Slug         string
	Title        string
	Type         string
	Status       Status
	ParentID     *int64
	Excerpt      string
	Blocks       []RawBlock
	ImageURL     string
	ThumbnailURL string
	Author       string
	Password     string
	Sticky       bool
	Path         string
	CreatedAt    time.Time
	ModifiedAt   time.Time
	Terms        []Term
}

// Ref returns the immutable reference for the entity.
func (e *Entity) Ref() ContentRef {
	ref := ContentRef{
		ID:         e.ID,
		Slug:       e.Slug,
		Type:       e.Type,
		Status:     e.Status,
		ModifiedAt: e.ModifiedAt,
	}
	if e.ParentID != nil {
		parent := *e.ParentID
		ref.ParentID = &parent
	}
	return ref
}

// TermsIn returns the entity's terms of one taxonomy.
func (e *Entity) TermsIn(taxonomy string) []Term {
	var out []Term
	for _, term := range e.Terms {
		if term.Taxonomy == taxonomy {
			out = append(out, term)
		}
	}
	return out
}

// ArchivePaths returns the archive route of every assigned term.
func (e *Entity) ArchivePaths() []string {
	paths := make([]string, 0, len(e.Terms))
	for _, term := range e.Terms {
		paths = append(paths, term.ArchivePath())
	}
	return paths
}

// PostType describes a registered content type.
type PostType struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	RewriteSlug  string `json:"rewriteSlug"`
	HasArchive   bool   `json:"hasArchive"`
	Hierarchical bool   `json:"hierarchical"`
}

// SiteSettings carries the reading settings that drive root resolution.
type SiteSettings struct {
	ShowOnFront string `json:"showOnFront"`
	HomepageID  int64  `json:"homepageId"`
	PostsPageID int64  `json:"postsPageId"`
}

// StaticFrontPage reports whether the root path renders a chosen page.
func (s SiteSettings) StaticFrontPage() bool {
	return s.ShowOnFront == "page" && s.HomepageID > 0
}

// TemplateRecord is a stored before/after content template for a post type,
// optionally restricted to a category.
type TemplateRecord struct {
	ID             int64
	PostType       string
	CategoryID     *int64
	BeforeContent  []RawBlock
	AfterContent   []RawBlock
	SidebarContent []RawBlock
}

// GlobalTemplateType is the post type key of the site-wide default template.
const GlobalTemplateType = "*"
