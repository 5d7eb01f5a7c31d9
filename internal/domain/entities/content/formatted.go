package content

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the formatted payload variants.
type Kind string

const (
	KindPost    Kind = "post"
	KindPage    Kind = "page"
	KindArchive Kind = "archive"
)

// Formatted is the response payload for a resolved entity. Every variant
// shares BaseContent and adds its own fields.
type Formatted interface {
	Base() *BaseContent
	Kind() Kind
}

// ContentTransform post-processes a formatted payload. Transforms run in
// registration order.
type ContentTransform func(Formatted) Formatted

type SlugInfo struct {
	Slug     string `json:"slug"`
	FullPath string `json:"full_path"`
}

type TypeInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Image struct {
	Full      string `json:"full"`
	Thumbnail string `json:"thumbnail"`
}

type TermInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Breadcrumb struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// BlockType identifies the kind of a formatted block.
type BlockType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Block is a formatted editor block.
type Block struct {
	ID           string    `json:"id"`
	BlockName    string    `json:"blockName"`
	Slug         string    `json:"slug"`
	InnerHTML    string    `json:"innerHTML"`
	InnerContent []*string `json:"innerContent"`
	Type         BlockType `json:"type"`
	Parent       string    `json:"parent"`
	InnerBlocks  []Block   `json:"innerBlocks"`
	Data         any       `json:"data"`
	ClassName    string    `json:"className,omitempty"`
}

// Template holds the blocks rendered around the entity's own content.
type Template struct {
	BeforeContent  []Block `json:"before_content"`
	AfterContent   []Block `json:"after_content"`
	SidebarContent []Block `json:"sidebar_content,omitempty"`
}

// BaseContent is the shape shared by every payload variant.
type BaseContent struct {
	Variant       Kind                  `json:"kind"`
	ID            int64                 `json:"id"`
	Slug          SlugInfo              `json:"slug"`
	Type          TypeInfo              `json:"type"`
	Status        string                `json:"status"`
	Date          string                `json:"date"`
	Title         string                `json:"title"`
	Excerpt       string                `json:"excerpt"`
	Image         *Image                `json:"image"`
	Categories    []TermInfo            `json:"categories"`
	Tags          []TermInfo            `json:"tags"`
	CategoryNames []string              `json:"category_names"`
	Terms         map[string][]TermInfo `json:"terms,omitempty"`
	Path          string                `json:"path"`
	WordPressPath string                `json:"wordpress_path"`
	IsHomepage    bool                  `json:"is_homepage"`
	Protected     bool                  `json:"protected"`
	Breadcrumbs   []Breadcrumb          `json:"breadcrumbs"`
	Template      *Template             `json:"template,omitempty"`
	Content       []Block               `json:"content,omitempty"`
}

func (b *BaseContent) Base() *BaseContent { return b }
func (b *BaseContent) Kind() Kind         { return b.Variant }

// PostContent is a non-hierarchical entity such as a blog post.
type PostContent struct {
	BaseContent
	Author string `json:"author"`
	Sticky bool   `json:"sticky"`
}

// PageContent is a hierarchical entity.
type PageContent struct {
	BaseContent
	ParentID int64 `json:"parent_id"`
}

// ArchiveInfo describes the listing an archive page stands for.
type ArchiveInfo struct {
	PostType string `json:"post_type"`
	Path     string `json:"path"`
}

// ArchiveContent is a page that acts as a type's index view.
type ArchiveContent struct {
	BaseContent
	Archive ArchiveInfo `json:"archive"`
}

// NewPost, NewPage and NewArchive build variants with the discriminator set.
func NewPost(base BaseContent) *PostContent {
	base.Variant = KindPost
	return &PostContent{BaseContent: base}
}

func NewPage(base BaseContent) *PageContent {
	base.Variant = KindPage
	return &PageContent{BaseContent: base}
}

func NewArchive(base BaseContent, archive ArchiveInfo) *ArchiveContent {
	base.Variant = KindArchive
	return &ArchiveContent{BaseContent: base, Archive: archive}
}

// DecodeFormatted restores a payload from its JSON form using the "kind"
// discriminator.
func DecodeFormatted(raw []byte) (Formatted, error) {
	var header struct {
		Kind Kind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("failed to read payload kind: %w", err)
	}

	var out Formatted
	switch header.Kind {
	case KindPost:
		out = &PostContent{}
	case KindPage:
		out = &PageContent{}
	case KindArchive:
		out = &ArchiveContent{}
	default:
		return nil, fmt.Errorf("unknown payload kind %q", header.Kind)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", header.Kind, err)
	}
	return out, nil
}

// NotFoundBody is the response body of a resolution miss.
func NotFoundBody() map[string]bool {
	return map[string]bool{"404": true}
}
