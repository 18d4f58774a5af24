// Package ingest builds content snapshots from the posts directory.
//
// A scan fans the directory listing out to a bounded pool of parser
// invocations and merges the outcomes into one immutable snapshot. A
// single document's failure never aborts the scan: every candidate file
// ends up either as a record or as a parse error, and the two sets
// together account for exactly the scanned inputs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/parser"
	"github.com/norandom/blogd/internal/storage"
	"github.com/norandom/blogd/internal/store"
)

// DefaultWorkers bounds parser concurrency when none is configured.
const DefaultWorkers = 4

// DefaultAttachmentExts lists the recognized attachment extensions in
// resolution order.
var DefaultAttachmentExts = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".pdf", ".zip", ".webp",
}

// Config configures a Pipeline.
type Config struct {
	// Parser holds parse-time defaults applied to every document.
	Parser parser.Options
	// AttachmentExts lists same-stem attachment extensions in resolution
	// order. Defaults to DefaultAttachmentExts.
	AttachmentExts []string
	// Workers bounds the parser pool. Defaults to DefaultWorkers.
	Workers int
	Logger  *slog.Logger
}

// Pipeline scans the posts directory and produces snapshots.
type Pipeline struct {
	provider   storage.Provider
	parserOpts parser.Options
	attachExts []string
	workers    int
	logger     *slog.Logger
}

// New creates a Pipeline over the given provider.
func New(provider storage.Provider, cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	exts := cfg.AttachmentExts
	if len(exts) == 0 {
		exts = DefaultAttachmentExts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider:   provider,
		parserOpts: cfg.Parser,
		attachExts: exts,
		workers:    workers,
		logger:     logger,
	}
}

// Run scans the directory once and builds a Snapshot. Scans are
// best-effort: unreadable or malformed documents become ParseErrors in the
// snapshot rather than failing the run. Run returns an error only when the
// listing itself fails or ctx is cancelled; in both cases no snapshot is
// produced and any previously published one stays valid.
func (p *Pipeline) Run(ctx context.Context) (*store.Snapshot, error) {
	started := time.Now()

	files, err := p.provider.List()
	if err != nil {
		return nil, fmt.Errorf("ingest: list posts: %w", err)
	}

	var docs []storage.FileInfo
	for _, fi := range files {
		if strings.HasSuffix(fi.Path, ".md") {
			docs = append(docs, fi)
		}
	}

	var (
		mu       sync.Mutex
		parsed   []models.Post
		failures []models.ParseError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, readErr := p.provider.Read(doc.Path)
			if readErr != nil {
				p.collectFailure(&mu, &failures, models.ParseError{
					SourcePath: doc.Path,
					Kind:       models.KindUnreadableFile,
					Detail:     readErr.Error(),
				})
				return nil
			}
			post, parseErr := parser.Parse(data, doc.Path, p.parserOpts)
			if parseErr != nil {
				var pe models.ParseError
				if !errors.As(parseErr, &pe) {
					pe = models.ParseError{
						SourcePath: doc.Path,
						Kind:       models.KindMalformedBlock,
						Detail:     parseErr.Error(),
					}
				}
				p.collectFailure(&mu, &failures, pe)
				return nil
			}
			mu.Lock()
			parsed = append(parsed, post)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest: scan aborted: %w", err)
	}

	// Duplicate slugs resolve deterministically: the lexicographically
	// smallest source path wins, the rest are reported as errors, keeping
	// records and errors together accounting for every input.
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].SourcePath < parsed[j].SourcePath })
	records := make(map[string]models.Post, len(parsed))
	for _, post := range parsed {
		if winner, taken := records[post.Slug]; taken {
			failures = append(failures, models.ParseError{
				SourcePath: post.SourcePath,
				Kind:       models.KindDuplicateKey,
				Detail:     fmt.Sprintf("slug %q already taken by %s", post.Slug, winner.SourcePath),
			})
			continue
		}
		records[post.Slug] = post
	}

	for slug, refs := range resolveAttachments(files, records, p.attachExts) {
		post := records[slug]
		post.Attachments = refs
		records[slug] = post
	}

	snap := store.NewSnapshot(records, failures)
	p.logger.Info("ingest: scan complete",
		slog.Int("documents", len(docs)),
		slog.Int("posts", snap.Len()),
		slog.Int("errors", len(failures)),
		slog.Duration("took", time.Since(started)))
	return snap, nil
}

func (p *Pipeline) collectFailure(mu *sync.Mutex, failures *[]models.ParseError, pe models.ParseError) {
	p.logger.Warn("ingest: document skipped",
		slog.String("path", pe.SourcePath),
		slog.String("kind", string(pe.Kind)),
		slog.String("detail", pe.Detail))
	mu.Lock()
	*failures = append(*failures, pe)
	mu.Unlock()
}

// resolveAttachments finds each record's attachments in the listing:
// same-directory files named <slug><ext> in extension order, then every
// file under a sibling <slug>_assets/ directory, sorted.
func resolveAttachments(files []storage.FileInfo, records map[string]models.Post, exts []string) map[string][]string {
	fileSet := make(map[string]struct{}, len(files))
	for _, fi := range files {
		fileSet[fi.Path] = struct{}{}
	}

	out := make(map[string][]string, len(records))
	for slug, post := range records {
		dir := path.Dir(post.SourcePath)
		refs := []string{}
		for _, ext := range exts {
			candidate := path.Join(dir, slug+ext)
			if _, ok := fileSet[candidate]; ok {
				refs = append(refs, candidate)
			}
		}
		assetsPrefix := path.Join(dir, slug+"_assets") + "/"
		var assets []string
		for p := range fileSet {
			if strings.HasPrefix(p, assetsPrefix) {
				assets = append(assets, p)
			}
		}
		sort.Strings(assets)
		out[slug] = append(refs, assets...)
	}
	return out
}
