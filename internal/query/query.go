// Package query provides an immutable, chainable description of a
// filtered, sorted, paginated view over a snapshot's posts.
//
// Every chain step returns a new Query value, so a held prefix of a chain
// can be extended in different directions without interference. Nothing is
// evaluated until Execute, which always applies filter, then sort, then
// pagination, regardless of the order the chain was built in.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/store"
)

// SortField selects the primary sort key.
type SortField string

// SortOrder selects the sort direction.
type SortOrder string

const (
	SortByDate   SortField = "date"
	SortByTitle  SortField = "title"
	SortByAuthor SortField = "author"

	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

var (
	ErrInvalidSortField = errors.New("query: invalid sort field")
	ErrInvalidSortOrder = errors.New("query: invalid sort order")
)

// ParseSortField validates and canonicalizes a sort field name.
func ParseSortField(s string) (SortField, error) {
	f := SortField(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case SortByDate, SortByTitle, SortByAuthor:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortField, s)
}

// ParseSortOrder validates and canonicalizes a sort order name.
func ParseSortOrder(s string) (SortOrder, error) {
	o := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case OrderAsc, OrderDesc:
		return o, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSortOrder, s)
}

type sortSpec struct {
	field       SortField
	order       SortOrder
	stickyFirst bool
}

// Query describes a view over one snapshot's records. Build with New;
// Query values are immutable.
type Query struct {
	snap    *store.Snapshot
	filters []func(models.Post) bool
	sort    *sortSpec
	offset  int
	limit   *int
	err     error
}

// New returns a Query over snap with no filters, slug ordering, and no
// pagination.
func New(snap *store.Snapshot) Query {
	return Query{snap: snap}
}

// withFilter appends a predicate onto a fresh backing array so sibling
// chains sharing a prefix never observe each other's filters.
func (q Query) withFilter(f func(models.Post) bool) Query {
	filters := make([]func(models.Post) bool, len(q.filters), len(q.filters)+1)
	copy(filters, q.filters)
	q.filters = append(filters, f)
	return q
}

// FilterByTenant keeps posts in the given tenant partition.
func (q Query) FilterByTenant(tenant string) Query {
	return q.withFilter(func(p models.Post) bool { return p.Tenant == tenant })
}

// FilterByTag keeps posts carrying the tag. Distinct filter calls combine
// conjunctively: chaining two FilterByTag calls keeps only posts carrying
// both tags.
func (q Query) FilterByTag(tag string) Query {
	return q.withFilter(func(p models.Post) bool {
		for _, t := range p.Tags {
			if t == tag {
				return true
			}
		}
		return false
	})
}

// FilterByAuthor keeps posts by the given author.
func (q Query) FilterByAuthor(author string) Query {
	return q.withFilter(func(p models.Post) bool { return p.Author == author })
}

// MatchSticky keeps posts whose sticky flag equals v.
func (q Query) MatchSticky(v bool) Query {
	return q.withFilter(func(p models.Post) bool { return p.Sticky == v })
}

// SortBy orders results by field in the given direction. With stickyFirst,
// sticky posts precede all non-sticky posts regardless of the primary
// field; within each group the primary ordering applies. Ties on the
// primary field break by slug ascending so results are deterministic.
//
// Invalid field or order values poison the chain immediately: Err reports
// the failure right after this call and Execute refuses to run.
func (q Query) SortBy(field SortField, order SortOrder, stickyFirst bool) Query {
	if q.err != nil {
		return q
	}
	f, err := ParseSortField(string(field))
	if err != nil {
		q.err = err
		return q
	}
	o, err := ParseSortOrder(string(order))
	if err != nil {
		q.err = err
		return q
	}
	q.sort = &sortSpec{field: f, order: o, stickyFirst: stickyFirst}
	return q
}

// Offset skips the first n results. Values past the end clamp to an empty
// tail; negative values clamp to zero.
func (q Query) Offset(n int) Query {
	q.offset = n
	return q
}

// Limit caps the number of results. Zero or negative yields an empty
// result. Omitting the call means no cap.
func (q Query) Limit(n int) Query {
	q.limit = &n
	return q
}

// Err reports the first construction error recorded in the chain, if any.
func (q Query) Err() error {
	return q.err
}

// Count reports how many posts match the filters, ignoring pagination.
func (q Query) Count() (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	n := 0
	for _, p := range q.snap.Posts() {
		if q.matches(p) {
			n++
		}
	}
	return n, nil
}

// Execute materializes the query: filter, then sort, then paginate, in
// that fixed order. The returned slice is freshly allocated.
func (q Query) Execute() ([]models.Post, error) {
	if q.err != nil {
		return nil, q.err
	}

	posts := q.snap.Posts()
	if len(q.filters) > 0 {
		filtered := make([]models.Post, 0, len(posts))
		for _, p := range posts {
			if q.matches(p) {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}

	if q.sort != nil {
		q.sort.apply(posts)
	}

	return paginate(posts, q.offset, q.limit), nil
}

func (q Query) matches(p models.Post) bool {
	for _, f := range q.filters {
		if !f(p) {
			return false
		}
	}
	return true
}

func (s *sortSpec) apply(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if s.stickyFirst && a.Sticky != b.Sticky {
			return a.Sticky
		}
		if c := s.comparePrimary(a, b); c != 0 {
			if s.order == OrderDesc {
				return c > 0
			}
			return c < 0
		}
		return a.Slug < b.Slug
	})
}

func (s *sortSpec) comparePrimary(a, b models.Post) int {
	switch s.field {
	case SortByTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortByAuthor:
		return strings.Compare(strings.ToLower(a.Author), strings.ToLower(b.Author))
	default: // SortByDate
		switch {
		case a.PublishedAt.Before(b.PublishedAt):
			return -1
		case a.PublishedAt.After(b.PublishedAt):
			return 1
		}
		return 0
	}
}

func paginate(posts []models.Post, offset int, limit *int) []models.Post {
	if limit != nil && *limit <= 0 {
		return []models.Post{}
	}
	if offset < 0 {
		offset = 0
	}
	if offset > len(posts) {
		offset = len(posts)
	}
	out := posts[offset:]
	if limit != nil && *limit < len(out) {
		out = out[:*limit]
	}
	return out
}
