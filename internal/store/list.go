package store

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ListOptions controls paging and ordering
type ListOptions struct {
	Limit  int
	Offset int
	Sort   string
	Desc   bool
}

// filter accumulates WHERE clauses with positional arguments
type filter struct {
	clauses []string
	args    []any
}

// add appends a clause; every %d in cond is replaced with the new argument's position
func (f *filter) add(cond string, arg any) {
	f.args = append(f.args, arg)
	n := len(f.args)
	f.clauses = append(f.clauses, strings.ReplaceAll(cond, "%d", fmt.Sprint(n)))
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// tail renders ORDER BY, LIMIT and OFFSET. Sort columns outside allowed fall
// back to fallback.
func (f *filter) tail(opts ListOptions, allowed map[string]bool, fallback string) string {
	col := fallback
	if allowed[opts.Sort] {
		col = opts.Sort
	}
	dir := "ASC"
	if opts.Desc {
		dir = "DESC"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	f.args = append(f.args, limit, offset)
	n := len(f.args)
	return fmt.Sprintf(" ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d", pq.QuoteIdentifier(col), dir, n-1, n)
}
