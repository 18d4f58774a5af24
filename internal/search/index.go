// Package search provides an in-memory ranked index over one content
// snapshot. An Index is built once from a snapshot and never mutated;
// every published snapshot gets a fresh index, so stale indexes are
// discarded wholesale instead of patched in place.
package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/btree"

	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/store"
)

// Field weights for ranking. An author match admits a record into the
// result set but contributes no weight of its own.
const (
	titleWeight = 3
	tagWeight   = 2
	bodyWeight  = 1
)

// maxBodyTokens caps how many body tokens are indexed per document so a
// single huge post cannot bloat the index.
const maxBodyTokens = 1000

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"that": {}, "the": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Result pairs a matched post with its ranking score.
type Result struct {
	Post  models.Post
	Score int
}

type document struct {
	post         models.Post
	titleLower   string
	bodyLower    string
	authorLower  string
	tagsLower    []string
	titleTokens  map[string]struct{}
	tagTokens    map[string]struct{}
	bodyTokens   map[string]struct{}
	authorTokens map[string]struct{}
}

// tokenEntry is one title token in the suggestion tree, carrying every
// title containing the token and the token's position within that title.
type tokenEntry struct {
	token string
	refs  []tokenRef
}

type tokenRef struct {
	title string
	pos   int
}

// Index answers search, suggestion, and related-content queries over the
// snapshot it was built from.
type Index struct {
	snap    *store.Snapshot
	docs    []*document
	bySlug  map[string]*document
	suggest *btree.BTreeG[*tokenEntry]
}

// Build indexes every record in the snapshot.
func Build(snap *store.Snapshot) *Index {
	posts := snap.Posts()
	idx := &Index{
		snap:    snap,
		docs:    make([]*document, 0, len(posts)),
		bySlug:  make(map[string]*document, len(posts)),
		suggest: btree.NewG[*tokenEntry](8, func(a, b *tokenEntry) bool { return a.token < b.token }),
	}
	for _, p := range posts {
		doc := &document{
			post:         p,
			titleLower:   strings.ToLower(p.Title),
			bodyLower:    strings.ToLower(p.Body),
			authorLower:  strings.ToLower(p.Author),
			titleTokens:  tokenSet(tokenize(p.Title), 0),
			bodyTokens:   tokenSet(tokenize(p.Body), maxBodyTokens),
			authorTokens: tokenSet(tokenize(p.Author), 0),
		}
		doc.tagsLower = make([]string, len(p.Tags))
		for i, tag := range p.Tags {
			doc.tagsLower[i] = strings.ToLower(tag)
		}
		doc.tagTokens = tokenSet(tokenize(strings.Join(p.Tags, " ")), 0)

		idx.docs = append(idx.docs, doc)
		idx.bySlug[p.Slug] = doc
		idx.indexTitle(p.Title)
	}
	return idx
}

// Snapshot returns the snapshot this index was built from, so callers can
// pair index results with a consistent view of the records.
func (idx *Index) Snapshot() *store.Snapshot { return idx.snap }

// Len returns the number of indexed documents.
func (idx *Index) Len() int { return len(idx.docs) }

// Search matches query case-insensitively against title, tags, body, and
// author. A document matches when any field contains the query as a
// substring or shares a token with the query's tokenization. Results are
// ordered by score descending, then publication date descending, then slug
// ascending; limit > 0 caps the result, tenant != "" narrows it.
func (idx *Index) Search(query, tenant string, limit int) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	qTokens := tokenize(q)

	var out []Result
	for _, d := range idx.docs {
		if tenant != "" && d.post.Tenant != tenant {
			continue
		}
		score := 0
		if fieldMatches(d.titleLower, d.titleTokens, q, qTokens) {
			score += titleWeight
		}
		if d.tagMatch(q, qTokens) {
			score += tagWeight
		}
		if fieldMatches(d.bodyLower, d.bodyTokens, q, qTokens) {
			score += bodyWeight
		}
		if score == 0 && !fieldMatches(d.authorLower, d.authorTokens, q, qTokens) {
			continue
		}
		out = append(out, Result{Post: d.post, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Post.PublishedAt.Equal(out[j].Post.PublishedAt) {
			return out[i].Post.PublishedAt.After(out[j].Post.PublishedAt)
		}
		return out[i].Post.Slug < out[j].Post.Slug
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Suggest returns up to max post titles containing a title token that has
// prefix as a prefix, ordered by the matched token's position within the
// title, then alphabetically. Each title appears at most once.
func (idx *Index) Suggest(prefix string, max int) []string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" || max <= 0 {
		return nil
	}

	best := make(map[string]int)
	idx.suggest.AscendGreaterOrEqual(&tokenEntry{token: p}, func(e *tokenEntry) bool {
		if !strings.HasPrefix(e.token, p) {
			return false
		}
		for _, ref := range e.refs {
			if pos, ok := best[ref.title]; !ok || ref.pos < pos {
				best[ref.title] = ref.pos
			}
		}
		return true
	})
	if len(best) == 0 {
		return nil
	}

	titles := make([]string, 0, len(best))
	for title := range best {
		titles = append(titles, title)
	}
	sort.Slice(titles, func(i, j int) bool {
		if best[titles[i]] != best[titles[j]] {
			return best[titles[i]] < best[titles[j]]
		}
		return titles[i] < titles[j]
	})
	if len(titles) > max {
		titles = titles[:max]
	}
	return titles
}

// Related scores every other post against the given one: +2 per shared tag
// (case-insensitive), +1 for the same author, +1 for the same tenant.
// Results are ordered by score descending, then publication date descending,
// then slug ascending; max > 0 caps the result. An unknown slug yields nil.
func (idx *Index) Related(slug string, max int) []models.Post {
	doc, ok := idx.bySlug[slug]
	if !ok {
		return nil
	}

	var out []Result
	for _, other := range idx.docs {
		if other.post.Slug == slug {
			continue
		}
		score := 0
		for _, tag := range doc.tagsLower {
			if containsString(other.tagsLower, tag) {
				score += 2
			}
		}
		if doc.authorLower != "" && doc.authorLower == other.authorLower {
			score++
		}
		if doc.post.Tenant == other.post.Tenant {
			score++
		}
		if score > 0 {
			out = append(out, Result{Post: other.post, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Post.PublishedAt.Equal(out[j].Post.PublishedAt) {
			return out[i].Post.PublishedAt.After(out[j].Post.PublishedAt)
		}
		return out[i].Post.Slug < out[j].Post.Slug
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}

	posts := make([]models.Post, len(out))
	for i, r := range out {
		posts[i] = r.Post
	}
	return posts
}

// indexTitle records each title token and its position in the suggestion
// tree. Only the first occurrence of a repeated token counts.
func (idx *Index) indexTitle(title string) {
	for pos, tok := range tokenize(title) {
		entry, ok := idx.suggest.Get(&tokenEntry{token: tok})
		if !ok {
			entry = &tokenEntry{token: tok}
			idx.suggest.ReplaceOrInsert(entry)
		}
		if !entry.hasTitle(title) {
			entry.refs = append(entry.refs, tokenRef{title: title, pos: pos})
		}
	}
}

func (e *tokenEntry) hasTitle(title string) bool {
	for _, ref := range e.refs {
		if ref.title == title {
			return true
		}
	}
	return false
}

func (d *document) tagMatch(q string, qTokens []string) bool {
	for _, tag := range d.tagsLower {
		if strings.Contains(tag, q) {
			return true
		}
	}
	return sharesToken(d.tagTokens, qTokens)
}

func fieldMatches(lower string, tokens map[string]struct{}, q string, qTokens []string) bool {
	if lower == "" {
		return false
	}
	if strings.Contains(lower, q) {
		return true
	}
	return sharesToken(tokens, qTokens)
}

func sharesToken(set map[string]struct{}, tokens []string) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// tokenize lowercases text, splits it on non-word runes, and drops stop
// words and tokens of two runes or fewer.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, w := range fields {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}

func tokenSet(tokens []string, max int) map[string]struct{} {
	if max > 0 && len(tokens) > max {
		tokens = tokens[:max]
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
