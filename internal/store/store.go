// Package store holds the published content snapshot.
//
// A Snapshot is the atomic unit of published content: an immutable set of
// parsed posts plus the parse errors from the same scan. The Store keeps
// the current Snapshot behind an atomic pointer so reads never block and
// never observe a partially built view.
package store

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/norandom/blogd/internal/checksum"
	"github.com/norandom/blogd/internal/models"
)

// Snapshot is one immutable, internally consistent view of all parsed
// content at a point in time. Once constructed it is never mutated;
// refreshes build a replacement and publish it wholesale.
type Snapshot struct {
	records map[string]models.Post
	errs    []models.ParseError
	posts   []models.Post // sorted by slug
	builtAt time.Time
	digest  string
}

// NewSnapshot builds a Snapshot from the results of one scan. The records
// map and errors slice are captured as-is; callers hand over ownership.
func NewSnapshot(records map[string]models.Post, parseErrors []models.ParseError) *Snapshot {
	if records == nil {
		records = map[string]models.Post{}
	}
	posts := make([]models.Post, 0, len(records))
	for _, p := range records {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Slug < posts[j].Slug })

	errs := make([]models.ParseError, len(parseErrors))
	copy(errs, parseErrors)
	sort.Slice(errs, func(i, j int) bool { return errs[i].SourcePath < errs[j].SourcePath })

	parts := make([]string, 0, len(posts)*2+len(errs))
	for _, p := range posts {
		parts = append(parts, p.Slug, p.Checksum)
	}
	for _, e := range errs {
		parts = append(parts, e.SourcePath, string(e.Kind), e.Detail)
	}

	return &Snapshot{
		records: records,
		errs:    errs,
		posts:   posts,
		builtAt: time.Now(),
		digest:  checksum.SumStrings(parts...),
	}
}

// Get returns the post stored under slug.
func (s *Snapshot) Get(slug string) (models.Post, bool) {
	p, ok := s.records[slug]
	return p, ok
}

// Posts returns a fresh copy of all posts, sorted by slug. Callers may
// reorder or truncate the returned slice freely.
func (s *Snapshot) Posts() []models.Post {
	out := make([]models.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Errors returns a copy of the parse errors collected during the scan,
// sorted by source path.
func (s *Snapshot) Errors() []models.ParseError {
	out := make([]models.ParseError, len(s.errs))
	copy(out, s.errs)
	return out
}

// Len reports the number of live records.
func (s *Snapshot) Len() int { return len(s.records) }

// BuiltAt reports when this snapshot was constructed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Checksum returns a digest over record and error content. Two snapshots
// built from an unchanged directory share the same checksum even though
// their BuiltAt timestamps differ.
func (s *Snapshot) Checksum() string { return s.digest }

// Store publishes snapshots to concurrent readers.
type Store struct {
	mu      sync.Mutex // serializes publishers; readers never take it
	current atomic.Pointer[Snapshot]
}

// New creates an empty Store. Current returns nil until the first Publish.
func New() *Store {
	return &Store{}
}

// Current returns the latest published Snapshot, or nil before the first
// publish. The load is a single atomic read.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish atomically replaces the current Snapshot. Concurrent publishers
// serialize with each other; readers keep whatever snapshot they already
// loaded and are never blocked. next must be non-nil.
func (s *Store) Publish(next *Snapshot) {
	if next == nil {
		panic("store: publish nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(next)
}
