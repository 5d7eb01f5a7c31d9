package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostQueryPaging(t *testing.T) {
	q := PostQuery{PerPage: 10, Page: 3}
	assert.Equal(t, 10, q.Limit())
	assert.Equal(t, 20, q.Offset())
	assert.Equal(t, 3, q.TotalPages(21))
	assert.Equal(t, 2, q.TotalPages(20))
	assert.Zero(t, q.TotalPages(0))
}

func TestPostQueryCapsPerPage(t *testing.T) {
	assert.Equal(t, MaxPerPage, PostQuery{PerPage: -1}.Limit())
	assert.Equal(t, MaxPerPage, PostQuery{PerPage: 5000}.Limit())
	assert.Zero(t, PostQuery{PerPage: 10, Page: 0}.Offset())
}
