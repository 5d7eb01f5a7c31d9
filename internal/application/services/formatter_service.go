package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/domain/repositories"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
)

const (
	excerptWords     = 55
	excerptMore      = " [&hellip;]"
	maxReusableDepth = 8
	reusableBlock    = "core/block"
)

// FormatOptions select the optional parts of a payload.
type FormatOptions struct {
	IncludeContent bool
	Preview        bool
}

// FormatterService turns a resolved entity into the response payload.
type FormatterService struct {
	store        repositories.ContentStore
	logger       *logging.ChanneledLogger
	wordpressURL string
	transforms   []content.ContentTransform
}

func NewFormatterService(store repositories.ContentStore, logger *logging.ChanneledLogger, wordpressURL string, transforms ...content.ContentTransform) *FormatterService {
	return &FormatterService{
		store:        store,
		logger:       logger,
		wordpressURL: strings.TrimRight(wordpressURL, "/"),
		transforms:   transforms,
	}
}

// Register appends a transform. Call during startup only.
func (s *FormatterService) Register(transform content.ContentTransform) {
	s.transforms = append(s.transforms, transform)
}

// formatContext carries the lookups shared by one Format call.
type formatContext struct {
	entity   *content.Entity
	postType content.PostType
	settings content.SiteSettings
	path     string
}

// Format loads the entity behind ref and builds its payload. A revision is
// presented under its parent's identity; with opts.Preview the latest
// revision's fields replace the published ones.
func (s *FormatterService) Format(ctx context.Context, ref content.ContentRef, opts FormatOptions) (content.Formatted, error) {
	start := time.Now()

	entity, err := s.store.FindByID(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load content %d: %w", ref.ID, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("content %d: %w", ref.ID, content.ErrNotFound)
	}
	if entity, err = s.applyRevision(ctx, entity, opts.Preview); err != nil {
		return nil, err
	}

	formatted, err := s.FormatEntity(ctx, entity, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Content().Debug("Content formatted", "id", entity.ID, "kind", formatted.Kind(), "includeContent", opts.IncludeContent, "duration", time.Since(start))
	return formatted, nil
}

// FormatEntity builds the payload of an already loaded entity.
func (s *FormatterService) FormatEntity(ctx context.Context, entity *content.Entity, opts FormatOptions) (content.Formatted, error) {
	fc, err := s.loadContext(ctx, entity)
	if err != nil {
		return nil, err
	}

	base := content.BaseContent{
		ID:            entity.ID,
		Slug:          content.SlugInfo{Slug: entity.Slug, FullPath: content.URLPath(fc.path)},
		Type:          content.TypeInfo{ID: fc.postType.Name, Name: fc.postType.Label, Slug: fc.postType.RewriteSlug},
		Status:        entity.Status.WordPress(),
		Date:          entity.CreatedAt.Format(time.RFC3339),
		Title:         entity.Title,
		Excerpt:       s.excerpt(entity),
		Image:         image(entity),
		Categories:    termInfos(entity.TermsIn(content.TaxonomyCategory)),
		Tags:          termInfos(entity.TermsIn(content.TaxonomyTag)),
		CategoryNames: termNames(entity.TermsIn(content.TaxonomyCategory)),
		Terms:         customTerms(entity.Terms),
		Path:          content.URLPath(fc.path),
		WordPressPath: s.wordpressURL + content.URLPath(fc.path),
		IsHomepage:    fc.settings.StaticFrontPage() && fc.settings.HomepageID == entity.ID,
		Protected:     entity.Password != "",
	}

	if base.Breadcrumbs, err = s.breadcrumbs(ctx, fc); err != nil {
		return nil, err
	}

	if opts.IncludeContent {
		template, err := s.template(ctx, fc)
		if err != nil {
			return nil, err
		}
		base.Template = template
		if base.Content, err = s.formatBlocks(ctx, entity.Blocks, "", 0); err != nil {
			return nil, err
		}
	}

	formatted, err := s.variant(ctx, fc, base)
	if err != nil {
		return nil, err
	}
	for _, transform := range s.transforms {
		formatted = transform(formatted)
	}
	return formatted, nil
}

func (s *FormatterService) applyRevision(ctx context.Context, entity *content.Entity, preview bool) (*content.Entity, error) {
	if entity.Ref().IsRevision() {
		if entity.ParentID == nil {
			return entity, nil
		}
		parent, err := s.store.FindByID(ctx, *entity.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load revision parent %d: %w", *entity.ParentID, err)
		}
		if parent == nil {
			return entity, nil
		}
		return overlayRevision(parent, entity), nil
	}

	if !preview {
		return entity, nil
	}
	revision, err := s.store.LatestRevision(ctx, entity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest revision of %d: %w", entity.ID, err)
	}
	if revision == nil {
		return entity, nil
	}
	return overlayRevision(entity, revision), nil
}

// overlayRevision returns parent with the editable fields of revision.
func overlayRevision(parent, revision *content.Entity) *content.Entity {
	merged := *parent
	merged.Title = revision.Title
	merged.Excerpt = revision.Excerpt
	merged.Blocks = revision.Blocks
	merged.ModifiedAt = revision.ModifiedAt
	return &merged
}

// SlugOf returns the slug and canonical URL path of entity.
func (s *FormatterService) SlugOf(ctx context.Context, entity *content.Entity) (content.SlugInfo, error) {
	fc, err := s.loadContext(ctx, entity)
	if err != nil {
		return content.SlugInfo{}, err
	}
	return content.SlugInfo{Slug: entity.Slug, FullPath: content.URLPath(fc.path)}, nil
}

func (s *FormatterService) loadContext(ctx context.Context, entity *content.Entity) (*formatContext, error) {
	postType, err := s.store.PostType(ctx, entity.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load post type %q: %w", entity.Type, err)
	}
	if postType == nil {
		postType = &content.PostType{Name: entity.Type, Label: ucfirst(entity.Type)}
	}

	settings, err := s.store.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	fc := &formatContext{entity: entity, postType: *postType, settings: settings}
	if fc.path, err = s.routePath(ctx, entity, *postType, settings); err != nil {
		return nil, err
	}
	return fc, nil
}

// routePath is the entity's canonical path. Entities without one (drafts
// saved without a slug) get the path they would have once published.
func (s *FormatterService) routePath(ctx context.Context, entity *content.Entity, postType content.PostType, settings content.SiteSettings) (string, error) {
	if settings.StaticFrontPage() && settings.HomepageID == entity.ID {
		return "", nil
	}
	if entity.Path != "" {
		return entity.Path, nil
	}

	slug := entity.Slug
	if slug == "" {
		slug = content.Slugify(entity.Title)
	}
	if slug == "" {
		return "", nil
	}
	slug = strings.ToLower(slug)

	if postType.Hierarchical && entity.ParentID != nil {
		parent, err := s.store.FindByID(ctx, *entity.ParentID)
		if err != nil {
			return "", fmt.Errorf("failed to load parent %d: %w", *entity.ParentID, err)
		}
		if parent != nil && parent.Path != "" {
			return parent.Path + "/" + slug, nil
		}
	}
	if postType.RewriteSlug != "" {
		return postType.RewriteSlug + "/" + slug, nil
	}
	return slug, nil
}

// variant picks Archive for index pages, Page for hierarchical types and
// Post otherwise.
func (s *FormatterService) variant(ctx context.Context, fc *formatContext, base content.BaseContent) (content.Formatted, error) {
	entity := fc.entity

	if fc.settings.PostsPageID > 0 && fc.settings.PostsPageID == entity.ID {
		return content.NewArchive(base, content.ArchiveInfo{PostType: content.TypePost, Path: base.Path}), nil
	}
	if entity.Type == content.TypePage {
		postTypes, err := s.store.PostTypes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load post types: %w", err)
		}
		for _, pt := range postTypes {
			if pt.HasArchive && pt.RewriteSlug != "" && pt.RewriteSlug == fc.path {
				return content.NewArchive(base, content.ArchiveInfo{PostType: pt.Name, Path: base.Path}), nil
			}
		}
	}

	if fc.postType.Hierarchical {
		page := content.NewPage(base)
		if entity.ParentID != nil {
			page.ParentID = *entity.ParentID
		}
		return page, nil
	}

	post := content.NewPost(base)
	post.Author = entity.Author
	post.Sticky = entity.Sticky
	return post, nil
}

// excerpt returns the stored excerpt, or the first words of the rendered
// block text.
func (s *FormatterService) excerpt(entity *content.Entity) string {
	if entity.Excerpt != "" {
		return entity.Excerpt
	}

	var html strings.Builder
	collectHTML(entity.Blocks, &html)
	if html.Len() == 0 {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.String()))
	if err != nil {
		s.logger.Content().Warn("Failed to parse block HTML for excerpt", "id", entity.ID, "error", err.Error())
		return ""
	}
	doc.Find("script, style").Remove()

	words := strings.Fields(doc.Text())
	if len(words) <= excerptWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:excerptWords], " ") + excerptMore
}

func collectHTML(blocks []content.RawBlock, out *strings.Builder) {
	for _, block := range blocks {
		if len(block.InnerBlocks) > 0 {
			collectHTML(block.InnerBlocks, out)
			continue
		}
		out.WriteString(block.InnerHTML)
		out.WriteString(" ")
	}
}

func image(entity *content.Entity) *content.Image {
	if entity.ImageURL == "" {
		return nil
	}
	thumbnail := entity.ThumbnailURL
	if thumbnail == "" {
		thumbnail = entity.ImageURL
	}
	return &content.Image{Full: entity.ImageURL, Thumbnail: thumbnail}
}

func termInfos(terms []content.Term) []content.TermInfo {
	infos := make([]content.TermInfo, 0, len(terms))
	for _, term := range terms {
		infos = append(infos, content.TermInfo{ID: term.ID, Name: term.Name, Slug: term.Slug})
	}
	return infos
}

func termNames(terms []content.Term) []string {
	names := make([]string, 0, len(terms))
	for _, term := range terms {
		names = append(names, term.Name)
	}
	return names
}

// customTerms groups terms of taxonomies other than category and tag.
func customTerms(terms []content.Term) map[string][]content.TermInfo {
	var grouped map[string][]content.TermInfo
	for _, term := range terms {
		if term.Taxonomy == content.TaxonomyCategory || term.Taxonomy == content.TaxonomyTag {
			continue
		}
		if grouped == nil {
			grouped = make(map[string][]content.TermInfo)
		}
		grouped[term.Taxonomy] = append(grouped[term.Taxonomy], content.TermInfo{ID: term.ID, Name: term.Name, Slug: term.Slug})
	}
	return grouped
}

// breadcrumbs lists Home, the posts page for posts, the ancestors of
// hierarchical entities and the entity itself.
func (s *FormatterService) breadcrumbs(ctx context.Context, fc *formatContext) ([]content.Breadcrumb, error) {
	crumbs := []content.Breadcrumb{{Title: "Home", Path: "/"}}
	if fc.path == "" {
		return crumbs, nil
	}
	entity := fc.entity

	if entity.Type == content.TypePost && fc.settings.PostsPageID > 0 && fc.settings.PostsPageID != entity.ID {
		postsPage, err := s.store.FindByID(ctx, fc.settings.PostsPageID)
		if err != nil {
			return nil, fmt.Errorf("failed to load posts page: %w", err)
		}
		if postsPage != nil {
			crumbs = append(crumbs, content.Breadcrumb{Title: postsPage.Title, Path: content.URLPath(postsPage.Path)})
		}
	}

	if fc.postType.Hierarchical {
		var ancestors []content.Breadcrumb
		seen := map[int64]bool{entity.ID: true}
		for parentID := entity.ParentID; parentID != nil && !seen[*parentID]; {
			seen[*parentID] = true
			parent, err := s.store.FindByID(ctx, *parentID)
			if err != nil {
				return nil, fmt.Errorf("failed to load ancestor %d: %w", *parentID, err)
			}
			if parent == nil {
				break
			}
			ancestors = append([]content.Breadcrumb{{Title: parent.Title, Path: content.URLPath(parent.Path)}}, ancestors...)
			parentID = parent.ParentID
		}
		crumbs = append(crumbs, ancestors...)
	}

	return append(crumbs, content.Breadcrumb{Title: entity.Title, Path: content.URLPath(fc.path)}), nil
}

// template picks the category-specific template of the entity's type, then
// the type default, then the site-wide default.
func (s *FormatterService) template(ctx context.Context, fc *formatContext) (*content.Template, error) {
	record, err := s.findTemplate(ctx, fc.entity)
	if err != nil {
		return nil, err
	}

	template := &content.Template{BeforeContent: []content.Block{}, AfterContent: []content.Block{}}
	if record == nil {
		return template, nil
	}
	if template.BeforeContent, err = s.formatBlocks(ctx, record.BeforeContent, "", 0); err != nil {
		return nil, err
	}
	if template.AfterContent, err = s.formatBlocks(ctx, record.AfterContent, "", 0); err != nil {
		return nil, err
	}
	if template.SidebarContent, err = s.formatBlocks(ctx, record.SidebarContent, "", 0); err != nil {
		return nil, err
	}
	if len(template.SidebarContent) == 0 {
		template.SidebarContent = nil
	}
	return template, nil
}

func (s *FormatterService) findTemplate(ctx context.Context, entity *content.Entity) (*content.TemplateRecord, error) {
	records, err := s.store.Templates(ctx, entity.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates for %q: %w", entity.Type, err)
	}

	categories := make(map[int64]bool)
	for _, term := range entity.TermsIn(content.TaxonomyCategory) {
		categories[term.ID] = true
	}

	var typeDefault *content.TemplateRecord
	for i := range records {
		record := &records[i]
		if record.CategoryID == nil {
			if typeDefault == nil {
				typeDefault = record
			}
			continue
		}
		if categories[*record.CategoryID] {
			return record, nil
		}
	}
	if typeDefault != nil {
		return typeDefault, nil
	}

	globals, err := s.store.Templates(ctx, content.GlobalTemplateType)
	if err != nil {
		return nil, fmt.Errorf("failed to load default templates: %w", err)
	}
	for i := range globals {
		if globals[i].CategoryID == nil {
			return &globals[i], nil
		}
	}
	return nil, nil
}

// formatBlocks drops empty blocks, expands reusable block references in
// place and formats the rest recursively.
func (s *FormatterService) formatBlocks(ctx context.Context, raw []content.RawBlock, parent string, depth int) ([]content.Block, error) {
	blocks := make([]content.Block, 0, len(raw))
	for _, block := range raw {
		if block.BlockName == "" {
			continue
		}

		if block.BlockName == reusableBlock {
			expanded, err := s.expandReusable(ctx, block, parent, depth)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, expanded...)
			continue
		}

		formatted := content.Block{
			ID:           blockID(block),
			BlockName:    block.BlockName,
			Slug:         blockSlug(block.BlockName),
			InnerHTML:    block.InnerHTML,
			InnerContent: block.InnerContent,
			Type:         blockType(block.BlockName),
			Parent:       parent,
			Data:         blockData(block.Attrs),
		}
		if className, ok := block.Attrs["className"].(string); ok {
			formatted.ClassName = className
		}

		inner, err := s.formatBlocks(ctx, block.InnerBlocks, formatted.ID, depth)
		if err != nil {
			return nil, err
		}
		formatted.InnerBlocks = inner
		blocks = append(blocks, formatted)
	}
	return blocks, nil
}

func (s *FormatterService) expandReusable(ctx context.Context, block content.RawBlock, parent string, depth int) ([]content.Block, error) {
	ref, ok := numericAttr(block.Attrs, "ref")
	if !ok || depth >= maxReusableDepth {
		return nil, nil
	}

	reusable, err := s.store.FindByID(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load reusable block %d: %w", ref, err)
	}
	if reusable == nil || reusable.Status != content.StatusPublished {
		return nil, nil
	}
	return s.formatBlocks(ctx, reusable.Blocks, parent, depth+1)
}

func numericAttr(attrs map[string]any, name string) (int64, bool) {
	switch v := attrs[name].(type) {
	case float64:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	case int:
		return int64(v), v > 0
	}
	return 0, false
}

func blockID(block content.RawBlock) string {
	for _, attr := range []string{"anchor", "nextpress_id"} {
		if id, ok := block.Attrs[attr].(string); ok && id != "" {
			return id
		}
	}
	return block.BlockName
}

// blockSlug sanitizes a block name the way WordPress titles are sanitized:
// characters outside [a-z0-9_-] are dropped.
func blockSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return b.String()
}

func blockType(name string) content.BlockType {
	short := strings.TrimPrefix(name, "core/")
	return content.BlockType{ID: name, Name: ucfirst(short), Slug: short}
}

func blockData(attrs map[string]any) any {
	if data, ok := attrs["data"]; ok {
		return data
	}
	if attrs == nil {
		return map[string]any{}
	}
	return attrs
}

func ucfirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
