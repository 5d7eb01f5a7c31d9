package content

// MaxPerPage caps a listing page. PerPage -1 asks for every match and is
// honored up to this cap too.
const MaxPerPage = 100

// TermFilter restricts a listing to entities carrying one of the terms of a
// taxonomy, matched by ID or by slug.
type TermFilter struct {
	Taxonomy string
	IDs      []int64
	Slugs    []string
}

// PostQuery selects a page of routable entities. Empty slices do not
// filter. Statuses defaults to published.
type PostQuery struct {
	Types        []string
	ExcludeTypes []string
	Statuses     []Status
	Search       string
	IncludeIDs   []int64
	ExcludeIDs   []int64
	Terms        []TermFilter
	PerPage      int
	Page         int
}

// Limit is the number of rows one page holds.
func (q PostQuery) Limit() int {
	if q.PerPage <= 0 || q.PerPage > MaxPerPage {
		return MaxPerPage
	}
	return q.PerPage
}

// Offset is the number of rows before the requested page.
func (q PostQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit()
}

// TotalPages is the page count for total matches, at least one when any
// match exists.
func (q PostQuery) TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	limit := q.Limit()
	return (total + limit - 1) / limit
}
