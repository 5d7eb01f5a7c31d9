package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TableCreator handles the creation of the content schema.
type TableCreator struct{}

// NewTableCreator creates a new TableCreator.
func NewTableCreator() *TableCreator {
	return &TableCreator{}
}

// CreateSchema executes all necessary queries to build the tables and indexes.
func (tc *TableCreator) CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, tableSQL := range tables {
		if _, err := db.ExecContext(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}

	for _, column := range addedColumns {
		if err := tc.addColumn(ctx, db, column); err != nil {
			return err
		}
	}

	for _, indexSQL := range indexes {
		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}

	for _, seedSQL := range contentTypes {
		if _, err := db.ExecContext(ctx, seedSQL); err != nil {
			return fmt.Errorf("failed to register content type [%s]: %w", seedSQL, err)
		}
	}
	return nil
}

// SeedInitialContent adds a homepage, an about page and a first post so a
// fresh database answers the root path.
func (tc *TableCreator) SeedInitialContent(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixNano()

	homeID, err := seedContent(ctx, db, "home", "Home", "page", now)
	if err != nil {
		return err
	}
	if _, err := seedContent(ctx, db, "about-us", "About Us", "page", now); err != nil {
		return err
	}
	postID, err := seedContent(ctx, db, "hello-world", "Hello world!", "post", now)
	if err != nil {
		return err
	}

	// Idempotently create the default category and assign the first post.
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO terms (taxonomy, slug, name) VALUES ('category', 'news', 'News')`); err != nil {
		return fmt.Errorf("failed to insert default category: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO content_terms (content_id, term_id)
		 SELECT ?, id FROM terms WHERE taxonomy = 'category' AND slug = 'news'`, postID); err != nil {
		return fmt.Errorf("failed to assign default category: %w", err)
	}

	settings := map[string]string{
		"show_on_front":  "page",
		"page_on_front":  fmt.Sprint(homeID),
		"page_for_posts": "0",
	}
	for key, value := range settings {
		if _, err := db.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", key, err)
		}
	}
	return nil
}

func seedContent(ctx context.Context, db *sql.DB, slug, title, contentType string, now int64) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM contents WHERE slug = ? AND type = ? AND status = 'published'`, slug, contentType).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to check for %s %q: %w", contentType, slug, err)
	}

	blocks := fmt.Sprintf(`[{"blockName":"core/paragraph","attrs":{},"innerHTML":"<p>%s</p>","innerContent":["<p>%s</p>"]}]`, title, title)
	res, err := db.ExecContext(ctx,
		`INSERT INTO contents (slug, title, type, status, blocks, path, created_at, modified_at)
		 VALUES (?, ?, ?, 'published', ?, ?, ?, ?)`,
		slug, title, contentType, blocks, slug, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert default %s %q: %w", contentType, slug, err)
	}
	return res.LastInsertId()
}

var tables = []string{
	`CREATE TABLE IF NOT EXISTS content_types (name TEXT PRIMARY KEY, label TEXT NOT NULL, rewrite_slug TEXT NOT NULL DEFAULT '', has_archive BOOLEAN NOT NULL DEFAULT 0, hierarchical BOOLEAN NOT NULL DEFAULT 0)`,
	`CREATE TABLE IF NOT EXISTS contents (id INTEGER PRIMARY KEY AUTOINCREMENT, slug TEXT NOT NULL, title TEXT NOT NULL DEFAULT '', type TEXT NOT NULL, status TEXT NOT NULL, parent_id INTEGER, excerpt TEXT NOT NULL DEFAULT '', blocks TEXT NOT NULL DEFAULT '[]', image_url TEXT NOT NULL DEFAULT '', thumbnail_url TEXT NOT NULL DEFAULT '', author TEXT NOT NULL DEFAULT '', password TEXT NOT NULL DEFAULT '', sticky BOOLEAN NOT NULL DEFAULT 0, path TEXT, created_at INTEGER NOT NULL, modified_at INTEGER NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS terms (id INTEGER PRIMARY KEY AUTOINCREMENT, taxonomy TEXT NOT NULL, slug TEXT NOT NULL, name TEXT NOT NULL, description TEXT NOT NULL DEFAULT '', UNIQUE(taxonomy, slug))`,
	`CREATE TABLE IF NOT EXISTS content_terms (content_id INTEGER NOT NULL REFERENCES contents(id) ON DELETE CASCADE, term_id INTEGER NOT NULL REFERENCES terms(id) ON DELETE CASCADE, PRIMARY KEY (content_id, term_id))`,
	`CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS templates (id INTEGER PRIMARY KEY AUTOINCREMENT, post_type TEXT NOT NULL, category_id INTEGER, before_content TEXT NOT NULL DEFAULT '[]', after_content TEXT NOT NULL DEFAULT '[]', sidebar_content TEXT NOT NULL DEFAULT '[]')`,
}

// addedColumns were introduced after the first schema release and are
// added to databases created before them.
type addedColumn struct {
	table, name, definition string
}

var addedColumns = []addedColumn{
	{"terms", "description", "TEXT NOT NULL DEFAULT ''"},
}

func (tc *TableCreator) addColumn(ctx context.Context, db *sql.DB, column addedColumn) error {
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, column.table, column.name).Scan(&count); err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", column.table, err)
	}
	if count > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, column.table, column.name, column.definition)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", column.table, column.name, err)
	}
	return nil
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_contents_path ON contents(path)`,
	`CREATE INDEX IF NOT EXISTS idx_contents_slug_status ON contents(slug, status)`,
	`CREATE INDEX IF NOT EXISTS idx_contents_title ON contents(title)`,
	`CREATE INDEX IF NOT EXISTS idx_contents_parent_id ON contents(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_content_terms_term_id ON content_terms(term_id)`,
	`CREATE INDEX IF NOT EXISTS idx_templates_post_type ON templates(post_type)`,
}

var contentTypes = []string{
	`INSERT OR IGNORE INTO content_types (name, label, rewrite_slug, has_archive, hierarchical) VALUES ('post', 'Posts', '', 1, 0)`,
	`INSERT OR IGNORE INTO content_types (name, label, rewrite_slug, has_archive, hierarchical) VALUES ('page', 'Pages', '', 0, 1)`,
	`INSERT OR IGNORE INTO content_types (name, label, rewrite_slug, has_archive, hierarchical) VALUES ('revision', 'Revisions', '', 0, 0)`,
	`INSERT OR IGNORE INTO content_types (name, label, rewrite_slug, has_archive, hierarchical) VALUES ('wp_block', 'Reusable blocks', '', 0, 0)`,
}
