// Package postservice coordinates the ingestion pipeline, content store,
// search index, and stats cache behind one API shared by the HTTP and MCP
// surfaces.
package postservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/norandom/blogd/internal/apperr"
	"github.com/norandom/blogd/internal/ingest"
	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/query"
	"github.com/norandom/blogd/internal/search"
	"github.com/norandom/blogd/internal/sse"
	"github.com/norandom/blogd/internal/stats"
	"github.com/norandom/blogd/internal/store"
)

// Config carries the tunables the service needs from the application
// configuration. The zero value is usable for tests.
type Config struct {
	DefaultTenant  string
	Tenants        []string
	MinQueryLength int
	MaxResults     int
	SuggestLimit   int
	CacheTTL       time.Duration
	CacheEnabled   bool
}

func (c Config) withDefaults() Config {
	if c.DefaultTenant == "" {
		c.DefaultTenant = "shared"
	}
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = 2
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 100
	}
	if c.SuggestLimit <= 0 {
		c.SuggestLimit = 10
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}

// ListParams narrows and orders a post listing.
type ListParams struct {
	Tenant      string
	Tags        []string
	Author      string
	Sticky      *bool
	SortField   string
	SortOrder   string
	StickyFirst bool
	Offset      int
	Limit       *int
}

// RefreshResult reports the outcome of one snapshot rebuild.
type RefreshResult struct {
	Posts           int       `json:"posts"`
	Errors          int       `json:"errors"`
	DurationSeconds float64   `json:"duration_seconds"`
	BuiltAt         time.Time `json:"built_at"`
	Checksum        string    `json:"checksum"`
}

// TenantInfo describes one tenant partition in the tenants listing.
type TenantInfo struct {
	Tenant string `json:"tenant"`
	Posts  int    `json:"posts"`
}

// TagCount is one tag with its usage count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Service owns the component graph around the content store. All reads go
// through the current snapshot or the index built from it; Refresh is the
// only mutation and replaces both wholesale.
type Service struct {
	cfg      Config
	logger   *slog.Logger
	pipeline *ingest.Pipeline
	store    *store.Store
	index    atomic.Pointer[search.Index]

	statsCache  *stats.Cache[models.Stats]
	tenantCache *stats.Cache[models.TenantStats]

	broker  *sse.Broker // optional
	refresh singleflight.Group
}

// NewService wires a service around the pipeline. broker may be nil when no
// event stream is exposed.
func NewService(pipeline *ingest.Pipeline, broker *sse.Broker, logger *slog.Logger, cfg Config) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:         cfg,
		logger:      logger,
		pipeline:    pipeline,
		store:       store.New(),
		statsCache:  stats.NewCache[models.Stats](cfg.CacheTTL, !cfg.CacheEnabled),
		tenantCache: stats.NewCache[models.TenantStats](cfg.CacheTTL, !cfg.CacheEnabled),
		broker:      broker,
	}
}

// Refresh rebuilds the snapshot from disk and swaps it in, along with a
// fresh search index. Concurrent callers share one rebuild: whoever arrives
// while a rebuild is in flight waits for it and receives its result. A
// failed rebuild leaves the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	ch := s.refresh.DoChan("refresh", func() (any, error) {
		started := time.Now()
		snap, err := s.pipeline.Run(ctx)
		if err != nil {
			return RefreshResult{}, err
		}
		s.store.Publish(snap)
		s.index.Store(search.Build(snap))
		s.statsCache.InvalidateAll()
		s.tenantCache.InvalidateAll()

		res := RefreshResult{
			Posts:           snap.Len(),
			Errors:          len(snap.Errors()),
			DurationSeconds: time.Since(started).Seconds(),
			BuiltAt:         snap.BuiltAt(),
			Checksum:        snap.Checksum(),
		}
		if s.broker != nil {
			s.broker.Publish(sse.Event{Type: "snapshot.published", Data: res})
		}
		return res, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return RefreshResult{}, fmt.Errorf("postservice: refresh: %w", res.Err)
		}
		return res.Val.(RefreshResult), nil
	case <-ctx.Done():
		return RefreshResult{}, ctx.Err()
	}
}

// Ready reports whether an initial snapshot has been published.
func (s *Service) Ready() bool { return s.store.Current() != nil }

// Snapshot returns the current snapshot, or an empty one before the first
// successful refresh.
func (s *Service) Snapshot() *store.Snapshot {
	if snap := s.store.Current(); snap != nil {
		return snap
	}
	return store.NewSnapshot(nil, nil)
}

// List returns posts matching params plus the total match count before
// pagination.
func (s *Service) List(_ context.Context, params ListParams) ([]models.Post, int, error) {
	if params.Tenant != "" && !s.knownTenant(params.Tenant) {
		return nil, 0, fmt.Errorf("postservice: list tenant %q: %w", params.Tenant, apperr.ErrTenantUnknown)
	}

	field, order := query.SortByDate, query.OrderDesc
	var err error
	if params.SortField != "" {
		if field, err = query.ParseSortField(params.SortField); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", apperr.ErrInvalidQuery, err)
		}
	}
	if params.SortOrder != "" {
		if order, err = query.ParseSortOrder(params.SortOrder); err != nil {
			return nil, 0, fmt.Errorf("%w: %w", apperr.ErrInvalidQuery, err)
		}
	}

	q := query.New(s.Snapshot())
	if params.Tenant != "" {
		q = q.FilterByTenant(params.Tenant)
	}
	for _, tag := range params.Tags {
		q = q.FilterByTag(tag)
	}
	if params.Author != "" {
		q = q.FilterByAuthor(params.Author)
	}
	if params.Sticky != nil {
		q = q.MatchSticky(*params.Sticky)
	}
	q = q.SortBy(field, order, params.StickyFirst)

	total, err := q.Count()
	if err != nil {
		return nil, 0, err
	}

	q = q.Offset(params.Offset)
	if params.Limit != nil {
		q = q.Limit(*params.Limit)
	}
	posts, err := q.Execute()
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Get returns one post by slug.
func (s *Service) Get(_ context.Context, slug string) (models.Post, error) {
	post, ok := s.Snapshot().Get(slug)
	if !ok {
		return models.Post{}, fmt.Errorf("postservice: get %q: %w", slug, apperr.ErrNotFound)
	}
	return post, nil
}

// Search runs a ranked query over the index. Queries shorter than the
// configured minimum are rejected; limit is clamped to the configured
// maximum.
func (s *Service) Search(_ context.Context, q, tenant string, limit int) ([]search.Result, error) {
	if len(strings.TrimSpace(q)) < s.cfg.MinQueryLength {
		return nil, fmt.Errorf("postservice: query shorter than %d characters: %w",
			s.cfg.MinQueryLength, apperr.ErrInvalidQuery)
	}
	if tenant != "" && !s.knownTenant(tenant) {
		return nil, fmt.Errorf("postservice: search tenant %q: %w", tenant, apperr.ErrTenantUnknown)
	}
	if limit <= 0 || limit > s.cfg.MaxResults {
		limit = s.cfg.MaxResults
	}
	idx := s.index.Load()
	if idx == nil {
		return []search.Result{}, nil
	}
	return idx.Search(q, tenant, limit), nil
}

// Suggest returns completion candidates for a query prefix.
func (s *Service) Suggest(_ context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 || limit > s.cfg.SuggestLimit {
		limit = s.cfg.SuggestLimit
	}
	idx := s.index.Load()
	if idx == nil {
		return []string{}, nil
	}
	suggestions := idx.Suggest(prefix, limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions, nil
}

// Related returns summaries of posts related to the given one.
func (s *Service) Related(_ context.Context, slug string, limit int) ([]models.Summary, error) {
	if _, ok := s.Snapshot().Get(slug); !ok {
		return nil, fmt.Errorf("postservice: related %q: %w", slug, apperr.ErrNotFound)
	}
	idx := s.index.Load()
	if idx == nil {
		return []models.Summary{}, nil
	}
	related := idx.Related(slug, limit)
	out := make([]models.Summary, len(related))
	for i, p := range related {
		out[i] = models.NewSummary(p)
	}
	return out, nil
}

// Stats returns snapshot-wide aggregates, cached for the configured TTL.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	return s.statsCache.Get(ctx, "stats", func() (models.Stats, error) {
		return stats.Compute(s.Snapshot()), nil
	})
}

// TenantStats returns aggregates for one tenant, cached for the configured
// TTL.
func (s *Service) TenantStats(ctx context.Context, tenant string) (models.TenantStats, error) {
	if !s.knownTenant(tenant) {
		return models.TenantStats{}, fmt.Errorf("postservice: tenant %q: %w", tenant, apperr.ErrTenantUnknown)
	}
	return s.tenantCache.Get(ctx, tenant, func() (models.TenantStats, error) {
		return stats.ComputeTenant(s.Snapshot(), tenant), nil
	})
}

// Tenants lists the known tenant partitions with their post counts. With a
// configured whitelist the listing is the whitelist; otherwise it is derived
// from the snapshot.
func (s *Service) Tenants(ctx context.Context) ([]TenantInfo, error) {
	aggregate, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	names := s.tenantNames()
	if len(names) == 0 {
		for name := range aggregate.PostsByTenant {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	out := make([]TenantInfo, len(names))
	for i, name := range names {
		out[i] = TenantInfo{Tenant: name, Posts: aggregate.PostsByTenant[name]}
	}
	return out, nil
}

// Tags lists every tag with its usage count, most used first.
func (s *Service) Tags(ctx context.Context) ([]TagCount, error) {
	aggregate, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TagCount, 0, len(aggregate.Tags))
	for tag, count := range aggregate.Tags {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sortTagCounts(out)
	return out, nil
}

// Errors returns the parse errors recorded in the current snapshot.
func (s *Service) Errors(_ context.Context) []models.ParseError {
	return s.Snapshot().Errors()
}

// Attachment resolves one of a post's attachments to a path relative to the
// content root. name may be the bare filename or the full recorded
// reference.
func (s *Service) Attachment(_ context.Context, slug, name string) (string, error) {
	post, ok := s.Snapshot().Get(slug)
	if !ok {
		return "", fmt.Errorf("postservice: attachment post %q: %w", slug, apperr.ErrNotFound)
	}
	for _, ref := range post.Attachments {
		if ref == name || strings.HasSuffix(ref, "/"+name) {
			return ref, nil
		}
	}
	return "", fmt.Errorf("postservice: attachment %q of %q: %w", name, slug, apperr.ErrNotFound)
}

func (s *Service) knownTenant(tenant string) bool {
	names := s.tenantNames()
	if len(names) == 0 {
		return true
	}
	for _, t := range names {
		if t == tenant {
			return true
		}
	}
	return false
}

// tenantNames returns the configured whitelist with the default tenant
// included, or nil when no whitelist is configured.
func (s *Service) tenantNames() []string {
	if len(s.cfg.Tenants) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.cfg.Tenants)+1)
	seen := map[string]struct{}{}
	for _, t := range append([]string{s.cfg.DefaultTenant}, s.cfg.Tenants...) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		names = append(names, t)
	}
	return names
}

func sortTagCounts(s []TagCount) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Count != s[j].Count {
			return s[i].Count > s[j].Count
		}
		return s[i].Tag < s[j].Tag
	})
}
