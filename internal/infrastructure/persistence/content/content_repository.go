// Package content provides the SQL content store
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/domain/repositories"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/observability/logging"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/persistence/database"
)

const entityColumns = `id, slug, title, type, status, parent_id, excerpt, blocks, image_url, thumbnail_url, author, password, sticky, path, created_at, modified_at`

// routable excludes the internal types that never render at a path.
const routable = `type NOT IN ('revision', 'nav_menu_item', 'wp_block')`

// SQLContentStore implements repositories.ContentStore and
// repositories.ContentWriter over the content schema.
type SQLContentStore struct {
	db        *sql.DB
	logger    *logging.ChanneledLogger
	slowQuery time.Duration
	now       func() time.Time

	mu    sync.RWMutex
	hooks repositories.MutationHooks
}

var (
	_ repositories.ContentStore  = (*SQLContentStore)(nil)
	_ repositories.ContentWriter = (*SQLContentStore)(nil)
)

func NewSQLContentStore(db *sql.DB, logger *logging.ChanneledLogger, slowQuery time.Duration) *SQLContentStore {
	return &SQLContentStore{
		db:        db,
		logger:    logger,
		slowQuery: slowQuery,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source used for writes.
func (s *SQLContentStore) WithClock(now func() time.Time) *SQLContentStore {
	s.now = now
	return s
}

func (s *SQLContentStore) observe(query string, start time.Time) {
	database.CheckAndLogSlowQuery(s.logger, s.slowQuery, query, time.Since(start))
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, content.ErrStoreUnavailable, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*content.Entity, error) {
	var (
		e          content.Entity
		status     string
		parentID   sql.NullInt64
		blocks     string
		path       sql.NullString
		createdAt  int64
		modifiedAt int64
	)
	err := row.Scan(&e.ID, &e.Slug, &e.Title, &e.Type, &status, &parentID, &e.Excerpt, &blocks,
		&e.ImageURL, &e.ThumbnailURL, &e.Author, &e.Password, &e.Sticky, &path, &createdAt, &modifiedAt)
	if err != nil {
		return nil, err
	}

	e.Status = content.Status(status)
	if parentID.Valid {
		id := parentID.Int64
		e.ParentID = &id
	}
	if path.Valid {
		e.Path = path.String
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	e.ModifiedAt = time.Unix(0, modifiedAt).UTC()
	if blocks != "" {
		if err := json.Unmarshal([]byte(blocks), &e.Blocks); err != nil {
			return nil, fmt.Errorf("failed to decode blocks of content %d: %w", e.ID, err)
		}
	}
	return &e, nil
}

// findOne runs a single-row entity query and attaches the entity's terms.
func (s *SQLContentStore) findOne(ctx context.Context, op, query string, args ...any) (*content.Entity, error) {
	start := time.Now()
	entity, err := scanEntity(s.db.QueryRowContext(ctx, query, args...))
	s.observe(query, start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.Database().Error("Content query failed", "op", op, "error", err.Error())
		return nil, unavailable(op, err)
	}

	terms, err := s.TermsFor(ctx, entity.ID)
	if err != nil {
		return nil, err
	}
	entity.Terms = terms
	return entity, nil
}

func (s *SQLContentStore) FindByID(ctx context.Context, id int64) (*content.Entity, error) {
	return s.findOne(ctx, "find content by id",
		`SELECT `+entityColumns+` FROM contents WHERE id = ?`, id)
}

// FindIDByPath is the canonical URL index lookup. Only published routable
// entities own a path.
func (s *SQLContentStore) FindIDByPath(ctx context.Context, path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	query := `SELECT id FROM contents WHERE path = ? AND status = 'published' AND ` + routable + ` ORDER BY id LIMIT 1`

	start := time.Now()
	var id int64
	err := s.db.QueryRowContext(ctx, query, path).Scan(&id)
	s.observe(query, start)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("find content by path", err)
	}
	return id, nil
}

func statusArgs(statuses []content.Status) (string, []any) {
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}
	return strings.Join(placeholders, ", "), args
}

// FindLatestBySlug returns the most recently created entity with the slug in
// one of statuses.
func (s *SQLContentStore) FindLatestBySlug(ctx context.Context, slug string, statuses []content.Status) (*content.Entity, error) {
	if slug == "" || len(statuses) == 0 {
		return nil, nil
	}
	in, args := statusArgs(statuses)
	query := `SELECT ` + entityColumns + ` FROM contents WHERE slug = ? AND status IN (` + in + `) AND ` + routable +
		` ORDER BY created_at DESC, id DESC LIMIT 1`
	return s.findOne(ctx, "find content by slug", query, append([]any{slug}, args...)...)
}

// FindByTitle matches the title case-insensitively. With several matches the
// first row the database returns wins.
func (s *SQLContentStore) FindByTitle(ctx context.Context, title string, statuses []content.Status) (*content.Entity, error) {
	if title == "" || len(statuses) == 0 {
		return nil, nil
	}
	in, args := statusArgs(statuses)
	query := `SELECT ` + entityColumns + ` FROM contents WHERE title = ? COLLATE NOCASE AND status IN (` + in + `) AND ` + routable + ` LIMIT 1`
	return s.findOne(ctx, "find content by title", query, append([]any{title}, args...)...)
}

func (s *SQLContentStore) LatestRevision(ctx context.Context, parentID int64) (*content.Entity, error) {
	return s.findOne(ctx, "find latest revision",
		`SELECT `+entityColumns+` FROM contents WHERE parent_id = ? AND type = 'revision' ORDER BY created_at DESC, id DESC LIMIT 1`,
		parentID)
}

func (s *SQLContentStore) TermsFor(ctx context.Context, id int64) ([]content.Term, error) {
	query := `SELECT t.id, t.taxonomy, t.slug, t.name FROM terms t
		JOIN content_terms ct ON ct.term_id = t.id
		WHERE ct.content_id = ? ORDER BY t.taxonomy, t.name`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, unavailable("load terms", err)
	}
	defer rows.Close()

	var terms []content.Term
	for rows.Next() {
		var term content.Term
		if err := rows.Scan(&term.ID, &term.Taxonomy, &term.Slug, &term.Name); err != nil {
			return nil, unavailable("scan term", err)
		}
		terms = append(terms, term)
	}
	s.observe(query, start)
	if err := rows.Err(); err != nil {
		return nil, unavailable("load terms", err)
	}
	return terms, nil
}

const postTypeColumns = `name, label, rewrite_slug, has_archive, hierarchical`

func scanPostType(row rowScanner) (*content.PostType, error) {
	var pt content.PostType
	if err := row.Scan(&pt.Name, &pt.Label, &pt.RewriteSlug, &pt.HasArchive, &pt.Hierarchical); err != nil {
		return nil, err
	}
	return &pt, nil
}

func (s *SQLContentStore) PostType(ctx context.Context, name string) (*content.PostType, error) {
	pt, err := scanPostType(s.db.QueryRowContext(ctx, `SELECT `+postTypeColumns+` FROM content_types WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("load post type", err)
	}
	return pt, nil
}

func (s *SQLContentStore) PostTypes(ctx context.Context) ([]content.PostType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postTypeColumns+` FROM content_types ORDER BY name`)
	if err != nil {
		return nil, unavailable("load post types", err)
	}
	defer rows.Close()

	var types []content.PostType
	for rows.Next() {
		pt, err := scanPostType(rows)
		if err != nil {
			return nil, unavailable("scan post type", err)
		}
		types = append(types, *pt)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load post types", err)
	}
	return types, nil
}

func (s *SQLContentStore) Settings(ctx context.Context) (content.SiteSettings, error) {
	var settings content.SiteSettings

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return settings, unavailable("load settings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, unavailable("scan setting", err)
		}
		switch key {
		case "show_on_front":
			settings.ShowOnFront = value
		case "page_on_front":
			settings.HomepageID, _ = strconv.ParseInt(value, 10, 64)
		case "page_for_posts":
			settings.PostsPageID, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	if err := rows.Err(); err != nil {
		return settings, unavailable("load settings", err)
	}
	return settings, nil
}

func (s *SQLContentStore) Templates(ctx context.Context, postType string) ([]content.TemplateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_type, category_id, before_content, after_content, sidebar_content
		 FROM templates WHERE post_type = ? ORDER BY id`, postType)
	if err != nil {
		return nil, unavailable("load templates", err)
	}
	defer rows.Close()

	var templates []content.TemplateRecord
	for rows.Next() {
		var (
			record                        content.TemplateRecord
			categoryID                    sql.NullInt64
			before, after, sidebarContent string
		)
		if err := rows.Scan(&record.ID, &record.PostType, &categoryID, &before, &after, &sidebarContent); err != nil {
			return nil, unavailable("scan template", err)
		}
		if categoryID.Valid {
			id := categoryID.Int64
			record.CategoryID = &id
		}
		for _, part := range []struct {
			raw  string
			dest *[]content.RawBlock
		}{{before, &record.BeforeContent}, {after, &record.AfterContent}, {sidebarContent, &record.SidebarContent}} {
			if err := json.Unmarshal([]byte(part.raw), part.dest); err != nil {
				return nil, fmt.Errorf("failed to decode template %d: %w", record.ID, err)
			}
		}
		templates = append(templates, record)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load templates", err)
	}
	return templates, nil
}

func (s *SQLContentStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}
