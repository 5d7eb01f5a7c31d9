package content

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/domain/repositories"
)

var _ repositories.ContentLister = (*SQLContentStore)(nil)

const termColumns = `t.id, t.taxonomy, t.slug, t.name, t.description`

func inList[T any](values []T) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ", "), args
}

// listingWhere renders the filters of q as a WHERE clause.
func listingWhere(q content.PostQuery) (string, []any) {
	clauses := []string{routable}
	var args []any
	add := func(clause string, values ...any) {
		clauses = append(clauses, clause)
		args = append(args, values...)
	}

	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = []content.Status{content.StatusPublished}
	}
	in, statusValues := statusArgs(statuses)
	add(`status IN (`+in+`)`, statusValues...)

	if len(q.Types) > 0 {
		in, values := inList(q.Types)
		add(`type IN (`+in+`)`, values...)
	}
	if len(q.ExcludeTypes) > 0 {
		in, values := inList(q.ExcludeTypes)
		add(`type NOT IN (`+in+`)`, values...)
	}
	if len(q.IncludeIDs) > 0 {
		in, values := inList(q.IncludeIDs)
		add(`id IN (`+in+`)`, values...)
	}
	if len(q.ExcludeIDs) > 0 {
		in, values := inList(q.ExcludeIDs)
		add(`id NOT IN (`+in+`)`, values...)
	}
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		add(`(title LIKE ? OR excerpt LIKE ?)`, pattern, pattern)
	}

	for _, filter := range q.Terms {
		var match []string
		values := []any{filter.Taxonomy}
		if len(filter.IDs) > 0 {
			in, ids := inList(filter.IDs)
			match = append(match, `t.id IN (`+in+`)`)
			values = append(values, ids...)
		}
		if len(filter.Slugs) > 0 {
			in, slugs := inList(filter.Slugs)
			match = append(match, `t.slug IN (`+in+`)`)
			values = append(values, slugs...)
		}
		if len(match) == 0 {
			continue
		}
		add(`id IN (SELECT ct.content_id FROM content_terms ct JOIN terms t ON t.id = ct.term_id
			WHERE t.taxonomy = ? AND (`+strings.Join(match, " OR ")+`))`, values...)
	}

	return strings.Join(clauses, " AND "), args
}

// ListContent returns one page of entities matching q, newest first, and the
// total number of matches.
func (s *SQLContentStore) ListContent(ctx context.Context, q content.PostQuery) ([]*content.Entity, int, error) {
	where, args := listingWhere(q)

	countQuery := `SELECT COUNT(*) FROM contents WHERE ` + where
	start := time.Now()
	var total int
	err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	s.observe(countQuery, start)
	if err != nil {
		return nil, 0, unavailable("count content", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	query := `SELECT ` + entityColumns + ` FROM contents WHERE ` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	entities, err := s.scanEntities(ctx, query, append(args, q.Limit(), q.Offset())...)
	if err != nil {
		return nil, 0, err
	}

	for _, entity := range entities {
		if entity.Terms, err = s.TermsFor(ctx, entity.ID); err != nil {
			return nil, 0, err
		}
	}
	return entities, total, nil
}

// scanEntities reads every row before returning so follow-up queries do not
// contend with an open cursor.
func (s *SQLContentStore) scanEntities(ctx context.Context, query string, args ...any) ([]*content.Entity, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list content", err)
	}
	defer rows.Close()

	var entities []*content.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, unavailable("scan content", err)
		}
		entities = append(entities, entity)
	}
	s.observe(query, start)
	if err := rows.Err(); err != nil {
		return nil, unavailable("list content", err)
	}
	return entities, nil
}

// TermsByTaxonomy lists the terms of taxonomy by name. With hideEmpty only
// terms assigned to published content are returned.
func (s *SQLContentStore) TermsByTaxonomy(ctx context.Context, taxonomy string, hideEmpty bool) ([]content.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms t WHERE t.taxonomy = ?`
	if hideEmpty {
		query += ` AND EXISTS (SELECT 1 FROM content_terms ct JOIN contents c ON c.id = ct.content_id
			WHERE ct.term_id = t.id AND c.status = 'published')`
	}
	query += ` ORDER BY t.name, t.id`

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, taxonomy)
	if err != nil {
		return nil, unavailable("list terms", err)
	}
	defer rows.Close()

	terms := []content.Term{}
	for rows.Next() {
		var term content.Term
		if err := rows.Scan(&term.ID, &term.Taxonomy, &term.Slug, &term.Name, &term.Description); err != nil {
			return nil, unavailable("scan term", err)
		}
		terms = append(terms, term)
	}
	s.observe(query, start)
	if err := rows.Err(); err != nil {
		return nil, unavailable("list terms", err)
	}
	return terms, nil
}

// FindTerm returns the term of taxonomy with slug, or nil.
func (s *SQLContentStore) FindTerm(ctx context.Context, taxonomy, slug string) (*content.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms t WHERE t.taxonomy = ? AND t.slug = ?`

	start := time.Now()
	var term content.Term
	err := s.db.QueryRowContext(ctx, query, taxonomy, slug).
		Scan(&term.ID, &term.Taxonomy, &term.Slug, &term.Name, &term.Description)
	s.observe(query, start)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("find term", err)
	}
	return &term, nil
}
