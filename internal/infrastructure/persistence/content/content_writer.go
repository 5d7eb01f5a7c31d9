package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/domain/repositories"
)

func (s *SQLContentStore) SetHooks(hooks repositories.MutationHooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

func (s *SQLContentStore) currentHooks() repositories.MutationHooks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hooks
}

func (s *SQLContentStore) before(ctx context.Context, id int64) {
	if hook := s.currentHooks().Before; hook != nil && id != 0 {
		hook(ctx, id)
	}
}

func (s *SQLContentStore) after(ctx context.Context, event content.InvalidationEvent) {
	if hook := s.currentHooks().After; hook != nil {
		event.Autosave = event.Autosave || content.IsAutosave(ctx)
		hook(ctx, event)
	}
}

func (s *SQLContentStore) settingsChanged(ctx context.Context, section string) {
	if hook := s.currentHooks().Settings; hook != nil {
		hook(ctx, section)
	}
}

// movedPath records a descendant whose path changed with its ancestor.
type movedPath struct {
	id       int64
	previous string
}

// Save inserts or updates an entity, recomputes its canonical path and those
// of its descendants, then raises one event per changed entity. An entity
// with a non-zero ID that does not exist yet is inserted under that ID.
func (s *SQLContentStore) Save(ctx context.Context, entity *content.Entity) (*content.Entity, error) {
	if entity == nil || entity.Type == "" {
		return nil, fmt.Errorf("save content: type is required")
	}
	saved := *entity
	if saved.Status == "" {
		saved.Status = content.StatusDraft
	}
	if saved.Slug == "" && saved.Status.IsPublic() {
		saved.Slug = content.Slugify(saved.Title)
	}

	s.before(ctx, saved.ID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin save", err)
	}
	defer tx.Rollback()

	var previous sql.NullString
	exists := false
	if saved.ID != 0 {
		err := tx.QueryRowContext(ctx, `SELECT path FROM contents WHERE id = ?`, saved.ID).Scan(&previous)
		switch {
		case err == nil:
			exists = true
		case !errors.Is(err, sql.ErrNoRows):
			return nil, unavailable("load previous path", err)
		}
	}

	path, err := s.computePath(ctx, tx, &saved)
	if err != nil {
		return nil, err
	}

	now := s.now()
	saved.ModifiedAt = now
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	blocks, err := json.Marshal(blocksOrEmpty(saved.Blocks))
	if err != nil {
		return nil, fmt.Errorf("save content: failed to encode blocks: %w", err)
	}

	args := []any{saved.Slug, saved.Title, saved.Type, string(saved.Status), nullableID(saved.ParentID), saved.Excerpt, string(blocks),
		saved.ImageURL, saved.ThumbnailURL, saved.Author, saved.Password, saved.Sticky, nullableString(path),
		saved.CreatedAt.UnixNano(), saved.ModifiedAt.UnixNano()}

	start := time.Now()
	if exists {
		query := `UPDATE contents SET slug = ?, title = ?, type = ?, status = ?, parent_id = ?, excerpt = ?, blocks = ?,
			image_url = ?, thumbnail_url = ?, author = ?, password = ?, sticky = ?, path = ?, created_at = ?, modified_at = ?
			WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, append(args, saved.ID)...); err != nil {
			s.logger.Database().Error("Content update failed", "error", err.Error(), "id", saved.ID)
			return nil, unavailable("update content", err)
		}
		s.observe(query, start)
	} else {
		query := `INSERT INTO contents (id, ` + strings.TrimPrefix(entityColumns, "id, ") + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, query, append([]any{nullableID(nonZero(saved.ID))}, args...)...)
		if err != nil {
			s.logger.Database().Error("Content insert failed", "error", err.Error(), "slug", saved.Slug)
			return nil, unavailable("insert content", err)
		}
		s.observe(query, start)
		if saved.ID == 0 {
			if saved.ID, err = res.LastInsertId(); err != nil {
				return nil, unavailable("insert content", err)
			}
		}
	}

	if saved.Terms, err = s.replaceTerms(ctx, tx, saved.ID, saved.Terms); err != nil {
		return nil, err
	}

	var moved []movedPath
	if exists && previous.String != path {
		if moved, err = s.movePaths(ctx, tx, saved.ID, path); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit save", err)
	}
	saved.Path = path

	s.logger.Database().Info("Content saved", "id", saved.ID, "type", saved.Type, "status", saved.Status, "path", path)

	event := content.InvalidationEvent{ContentID: saved.ID, Kind: content.ChangeCreated}
	if exists {
		event.Kind = content.ChangeUpdated
		if previous.Valid && previous.String != path {
			prev := previous.String
			event.PreviousPath = &prev
		}
	}
	s.after(ctx, event)
	for _, m := range moved {
		prev := m.previous
		s.after(ctx, content.InvalidationEvent{ContentID: m.id, Kind: content.ChangeUpdated, PreviousPath: &prev})
	}
	return &saved, nil
}

// computePath derives the canonical path: hierarchical types nest under the
// parent's path, other types prefix their rewrite slug. Revisions and
// internal types have none.
func (s *SQLContentStore) computePath(ctx context.Context, tx *sql.Tx, entity *content.Entity) (string, error) {
	switch entity.Type {
	case content.TypeRevision, content.TypeNavMenuItem, content.TypeBlock:
		return "", nil
	}
	if entity.Slug == "" {
		return "", nil
	}

	pt, err := scanPostType(tx.QueryRowContext(ctx, `SELECT `+postTypeColumns+` FROM content_types WHERE name = ?`, entity.Type))
	if errors.Is(err, sql.ErrNoRows) {
		pt = &content.PostType{Name: entity.Type}
	} else if err != nil {
		return "", unavailable("load post type", err)
	}

	slug := strings.ToLower(entity.Slug)
	if pt.Hierarchical && entity.ParentID != nil {
		var parentPath sql.NullString
		err := tx.QueryRowContext(ctx, `SELECT path FROM contents WHERE id = ?`, *entity.ParentID).Scan(&parentPath)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return "", unavailable("load parent path", err)
		}
		if parentPath.String != "" {
			return parentPath.String + "/" + slug, nil
		}
	}
	if pt.RewriteSlug != "" {
		return strings.Trim(pt.RewriteSlug, "/") + "/" + slug, nil
	}
	return slug, nil
}

// movePaths rewrites the paths of every descendant of id after its path
// changed to newPath.
func (s *SQLContentStore) movePaths(ctx context.Context, tx *sql.Tx, id int64, newPath string) ([]movedPath, error) {
	type child struct {
		id   int64
		slug string
		path sql.NullString
	}

	var moved []movedPath
	queue := []struct {
		id   int64
		path string
	}{{id, newPath}}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		rows, err := tx.QueryContext(ctx,
			`SELECT id, slug, path FROM contents WHERE parent_id = ? AND `+routable, parent.id)
		if err != nil {
			return nil, unavailable("load children", err)
		}
		var children []child
		for rows.Next() {
			var c child
			if err := rows.Scan(&c.id, &c.slug, &c.path); err != nil {
				rows.Close()
				return nil, unavailable("scan child", err)
			}
			children = append(children, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, unavailable("load children", err)
		}

		for _, c := range children {
			if c.slug == "" || parent.path == "" {
				continue
			}
			childPath := parent.path + "/" + strings.ToLower(c.slug)
			if _, err := tx.ExecContext(ctx, `UPDATE contents SET path = ? WHERE id = ?`, childPath, c.id); err != nil {
				return nil, unavailable("update child path", err)
			}
			if c.path.String != childPath {
				moved = append(moved, movedPath{id: c.id, previous: c.path.String})
			}
			queue = append(queue, struct {
				id   int64
				path string
			}{c.id, childPath})
		}
	}
	return moved, nil
}

// replaceTerms upserts the entity's terms by (taxonomy, slug) and returns
// them with their stored IDs.
func (s *SQLContentStore) replaceTerms(ctx context.Context, tx *sql.Tx, id int64, terms []content.Term) ([]content.Term, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM content_terms WHERE content_id = ?`, id); err != nil {
		return nil, unavailable("clear terms", err)
	}

	stored := make([]content.Term, 0, len(terms))
	for _, term := range terms {
		if term.Slug == "" {
			term.Slug = content.Slugify(term.Name)
		}
		if term.Name == "" {
			term.Name = term.Slug
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO terms (taxonomy, slug, name, description) VALUES (?, ?, ?, ?)
			 ON CONFLICT(taxonomy, slug) DO UPDATE SET name = excluded.name,
			 description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE terms.description END`,
			term.Taxonomy, term.Slug, term.Name, term.Description); err != nil {
			return nil, unavailable("upsert term", err)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM terms WHERE taxonomy = ? AND slug = ?`, term.Taxonomy, term.Slug).Scan(&term.ID); err != nil {
			return nil, unavailable("load term", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO content_terms (content_id, term_id) VALUES (?, ?)`, id, term.ID); err != nil {
			return nil, unavailable("assign term", err)
		}
		stored = append(stored, term)
	}
	return stored, nil
}

// Trash moves an entity to the trash. Its path stays recorded so the
// invalidation pass can evict it.
func (s *SQLContentStore) Trash(ctx context.Context, id int64) error {
	return s.setStatus(ctx, "trash content", id, content.StatusTrashed, content.ChangeTrashed)
}

// Restore takes an entity out of the trash as a draft, as WordPress does.
func (s *SQLContentStore) Restore(ctx context.Context, id int64) error {
	return s.setStatus(ctx, "restore content", id, content.StatusDraft, content.ChangeRestored)
}

func (s *SQLContentStore) setStatus(ctx context.Context, op string, id int64, status content.Status, kind content.ChangeKind) error {
	s.before(ctx, id)

	query := `UPDATE contents SET status = ?, modified_at = ? WHERE id = ?`
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, string(status), s.now().UnixNano(), id)
	if err != nil {
		return unavailable(op, err)
	}
	s.observe(query, start)
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, content.ErrNotFound)
	}

	s.logger.Database().Info("Content status changed", "id", id, "status", status)
	s.after(ctx, content.InvalidationEvent{ContentID: id, Kind: kind})
	return nil
}

// Delete removes an entity with its revisions and term assignments.
func (s *SQLContentStore) Delete(ctx context.Context, id int64) error {
	s.before(ctx, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin delete", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM content_terms WHERE content_id IN (SELECT id FROM contents WHERE parent_id = ? AND type = 'revision')`,
		`DELETE FROM contents WHERE parent_id = ? AND type = 'revision'`,
		`DELETE FROM content_terms WHERE content_id = ?`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement, id); err != nil {
			return unavailable("delete content", err)
		}
	}

	query := `DELETE FROM contents WHERE id = ?`
	start := time.Now()
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		s.logger.Database().Error("Content delete failed", "error", err.Error(), "id", id)
		return unavailable("delete content", err)
	}
	s.observe(query, start)
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete content %d: %w", id, content.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit delete", err)
	}

	s.logger.Database().Info("Content delete completed", "id", id)
	s.after(ctx, content.InvalidationEvent{ContentID: id, Kind: content.ChangeDeleted})
	return nil
}

func (s *SQLContentStore) SaveSettings(ctx context.Context, settings content.SiteSettings) error {
	values := map[string]string{
		"show_on_front":  settings.ShowOnFront,
		"page_on_front":  fmt.Sprint(settings.HomepageID),
		"page_for_posts": fmt.Sprint(settings.PostsPageID),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin settings", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value); err != nil {
			return unavailable("save settings", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit settings", err)
	}

	s.settingsChanged(ctx, content.SectionSettings)
	return nil
}

func (s *SQLContentStore) SavePostType(ctx context.Context, postType content.PostType) error {
	if postType.Name == "" {
		return fmt.Errorf("save post type: name is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content_types (name, label, rewrite_slug, has_archive, hierarchical) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET label = excluded.label, rewrite_slug = excluded.rewrite_slug,
		 has_archive = excluded.has_archive, hierarchical = excluded.hierarchical`,
		postType.Name, postType.Label, strings.Trim(postType.RewriteSlug, "/"), postType.HasArchive, postType.Hierarchical)
	if err != nil {
		return unavailable("save post type", err)
	}

	s.settingsChanged(ctx, content.SectionSettings)
	return nil
}

// SaveTemplate inserts a template, or replaces it when the record has an ID.
func (s *SQLContentStore) SaveTemplate(ctx context.Context, template content.TemplateRecord) (int64, error) {
	if template.PostType == "" {
		template.PostType = content.GlobalTemplateType
	}

	encoded := make([]string, 0, 3)
	for _, part := range [][]content.RawBlock{template.BeforeContent, template.AfterContent, template.SidebarContent} {
		raw, err := json.Marshal(blocksOrEmpty(part))
		if err != nil {
			return 0, fmt.Errorf("save template: failed to encode blocks: %w", err)
		}
		encoded = append(encoded, string(raw))
	}

	var err error
	if template.ID != 0 {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO templates (id, post_type, category_id, before_content, after_content, sidebar_content) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET post_type = excluded.post_type, category_id = excluded.category_id,
			 before_content = excluded.before_content, after_content = excluded.after_content, sidebar_content = excluded.sidebar_content`,
			template.ID, template.PostType, nullableID(template.CategoryID), encoded[0], encoded[1], encoded[2])
	} else {
		var res sql.Result
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO templates (post_type, category_id, before_content, after_content, sidebar_content) VALUES (?, ?, ?, ?, ?)`,
			template.PostType, nullableID(template.CategoryID), encoded[0], encoded[1], encoded[2])
		if err == nil {
			template.ID, err = res.LastInsertId()
		}
	}
	if err != nil {
		return 0, unavailable("save template", err)
	}

	s.settingsChanged(ctx, content.SectionTemplates)
	return template.ID, nil
}

func blocksOrEmpty(blocks []content.RawBlock) []content.RawBlock {
	if blocks == nil {
		return []content.RawBlock{}
	}
	return blocks
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nonZero(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
