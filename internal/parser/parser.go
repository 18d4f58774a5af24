// Package parser converts raw frontmatter documents into validated posts.
//
// Parsing is a pure transformation: the same bytes and options always
// produce the same Post or ParseError. All failure modes are reported as
// models.ParseError values; the parser never touches the filesystem.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/norandom/blogd/internal/checksum"
	"github.com/norandom/blogd/internal/models"
)

const delim = "---"

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	markdownRe   = regexp.MustCompile("[#*`_\\[\\]()]+")
	wordsPerMin  = 200.0
	excerptFloor = 0.8 // cut at the last space only past this share of the cap
)

// dateFormats lists the accepted publication date layouts, tried in order.
// Zone-less layouts resolve to UTC.
var dateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
}

// Options controls parse-time defaults. The zero value is usable: the
// tenant falls back to "shared" and derived excerpts cap at 200 characters.
type Options struct {
	// DefaultTenant is assigned when a document names no tenant, or names
	// one outside Tenants.
	DefaultTenant string
	// Tenants is an optional whitelist. Empty means any label is accepted.
	Tenants []string
	// ExcerptLength caps derived excerpts, in bytes.
	ExcerptLength int
}

func (o Options) withDefaults() Options {
	if o.DefaultTenant == "" {
		o.DefaultTenant = "shared"
	}
	if o.ExcerptLength <= 0 {
		o.ExcerptLength = 200
	}
	return o
}

// Parse converts one raw document into a Post. The returned error, when
// non-nil, is always a models.ParseError carrying sourcePath and a kind.
//
// Validation order: the metadata block must be present and well-formed,
// then title and date are required, then tags default to empty and the
// tenant falls back to the configured default.
func Parse(data []byte, sourcePath string, opts Options) (models.Post, error) {
	opts = opts.withDefaults()

	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return models.Post{}, models.ParseError{
			SourcePath: sourcePath,
			Kind:       models.KindMalformedBlock,
			Detail:     err.Error(),
		}
	}

	title := stringField(fm, "title")
	if title == "" {
		detail := "missing required field: title"
		if _, present := fm["title"]; present {
			detail = "title must be a non-empty string"
		}
		return models.Post{}, models.ParseError{
			SourcePath: sourcePath,
			Kind:       models.KindMissingField,
			Detail:     detail,
		}
	}

	rawDate, ok := fm["date"]
	if !ok {
		rawDate, ok = fm["publishedAt"]
	}
	if !ok {
		return models.Post{}, models.ParseError{
			SourcePath: sourcePath,
			Kind:       models.KindMissingField,
			Detail:     "missing required field: date",
		}
	}
	publishedAt, err := parseDate(rawDate)
	if err != nil {
		return models.Post{}, models.ParseError{
			SourcePath: sourcePath,
			Kind:       models.KindMalformedDate,
			Detail:     err.Error(),
		}
	}

	tenant := stringField(fm, "tenant")
	if tenant == "" || !allowedTenant(tenant, opts.Tenants) {
		tenant = opts.DefaultTenant
	}

	excerpt := stringField(fm, "excerpt")
	if excerpt == "" {
		excerpt = deriveExcerpt(body, opts.ExcerptLength)
	}

	return models.Post{
		Slug:        Slug(sourcePath),
		Title:       title,
		Author:      stringField(fm, "author"),
		Tenant:      tenant,
		Tags:        parseTags(fm["tags"]),
		Excerpt:     excerpt,
		PublishedAt: publishedAt,
		Body:        body,
		ReadingTime: readingTime(body),
		Sticky:      parseSticky(fm["sticky"]),
		Attachments: []string{},
		Meta:        fm,
		SourcePath:  sourcePath,
		Checksum:    checksum.Sum(data),
	}, nil
}

// Slug derives the store key from a document path: the filename stem.
func Slug(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// splitFrontmatter separates the YAML metadata block (between leading ---
// delimiters) from the body. Unlike loosely structured Markdown, a document
// without a complete metadata block is an error here, not body-only content.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	if !bytes.HasPrefix(data, []byte(delim)) {
		return nil, "", errors.New("missing metadata block")
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", errors.New("unterminated metadata block")
	}
	block := rest[:idx]
	body := rest[idx+1+len(delim):]

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, "", fmt.Errorf("invalid metadata block: %w", err)
	}
	if fm == nil {
		return nil, "", errors.New("metadata block is not a mapping")
	}
	return fm, strings.TrimSpace(string(body)), nil
}

// parseDate accepts either a native timestamp (yaml.v3 resolves ISO dates
// itself) or a string in one of the supported layouts.
func parseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateFormats {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
	default:
		return time.Time{}, fmt.Errorf("date must be a string or timestamp, got %T", v)
	}
}

// parseTags accepts a YAML list or a comma-separated string. Elements are
// stringified, trimmed, and deduplicated preserving first appearance.
func parseTags(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.Split(t, ",")
	}

	seen := make(map[string]struct{}, len(raw))
	out := []string{}
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func parseSticky(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	case int:
		return t != 0
	}
	return false
}

func stringField(fm map[string]any, key string) string {
	if v, ok := fm[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func allowedTenant(tenant string, tenants []string) bool {
	if len(tenants) == 0 {
		return true
	}
	for _, t := range tenants {
		if t == tenant {
			return true
		}
	}
	return false
}

// deriveExcerpt builds a plain-text preview from the body: markdown
// punctuation stripped, whitespace collapsed, truncated at the last space
// past 80% of the cap with an ellipsis appended.
func deriveExcerpt(body string, maxLen int) string {
	plain := markdownRe.ReplaceAllString(body, "")
	plain = strings.Join(strings.Fields(plain), " ")
	if len(plain) <= maxLen {
		return plain
	}
	cut := plain[:maxLen]
	if i := strings.LastIndex(cut, " "); i > int(float64(maxLen)*excerptFloor) {
		cut = cut[:i]
	}
	return cut + "..."
}

// readingTime estimates minutes to read the body at 200 words per minute,
// never reporting less than one minute.
func readingTime(body string) int {
	plain := htmlTagRe.ReplaceAllString(body, "")
	plain = markdownRe.ReplaceAllString(plain, "")
	words := len(strings.Fields(plain))
	minutes := math.Round(float64(words) / wordsPerMin)
	if minutes < 1 {
		minutes = 1
	}
	return int(minutes)
}
