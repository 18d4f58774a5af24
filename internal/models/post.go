// Package models defines the domain types for blogd.
package models

import (
	"fmt"
	"time"
)

// Post represents one parsed content document. Posts are created by the
// ingestion pipeline and never mutated afterwards; a re-scan replaces the
// whole set.
type Post struct {
	Slug        string         `json:"slug"`
	Title       string         `json:"title"`
	Author      string         `json:"author,omitempty"`
	Tenant      string         `json:"tenant"`
	Tags        []string       `json:"tags"`
	Excerpt     string         `json:"excerpt,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
	Body        string         `json:"body"`
	ReadingTime int            `json:"reading_time"`
	Sticky      bool           `json:"sticky"`
	Attachments []string       `json:"attachments"`
	Meta        map[string]any `json:"meta,omitempty"`
	SourcePath  string         `json:"source_path,omitempty"`
	Checksum    string         `json:"-"`
}

// Summary is a lightweight representation of a Post used in related-post
// and recent-post listings.
type Summary struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Tenant      string    `json:"tenant"`
	Tags        []string  `json:"tags"`
	Excerpt     string    `json:"excerpt,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// NewSummary derives a Summary from a Post.
func NewSummary(p Post) Summary {
	return Summary{
		Slug:        p.Slug,
		Title:       p.Title,
		Author:      p.Author,
		Tenant:      p.Tenant,
		Tags:        p.Tags,
		Excerpt:     p.Excerpt,
		PublishedAt: p.PublishedAt,
	}
}

// ErrorKind classifies a document parse failure.
type ErrorKind string

const (
	KindMissingField   ErrorKind = "missing-required-field"
	KindMalformedDate  ErrorKind = "malformed-date"
	KindUnreadableFile ErrorKind = "unreadable-file"
	KindMalformedBlock ErrorKind = "malformed-metadata-block"
	KindDuplicateKey   ErrorKind = "duplicate-key"
)

// ParseError describes one document that failed to parse. Parse errors are
// collected alongside successful records and never abort a scan.
type ParseError struct {
	SourcePath string    `json:"source_path"`
	Kind       ErrorKind `json:"kind"`
	Detail     string    `json:"detail"`
}

// Error implements the error interface.
func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.SourcePath, e.Kind, e.Detail)
}

// Stats aggregates counters across every post in a snapshot.
type Stats struct {
	TotalPosts    int            `json:"total_posts"`
	Tags          map[string]int `json:"tags"`
	Authors       map[string]int `json:"authors"`
	PostsByMonth  map[string]int `json:"posts_by_month"`
	PostsByTenant map[string]int `json:"posts_by_tenant"`
}

// TenantStats aggregates counters for a single tenant partition.
type TenantStats struct {
	Tenant       string         `json:"tenant"`
	TotalPosts   int            `json:"total_posts"`
	Tags         map[string]int `json:"tags"`
	Authors      map[string]int `json:"authors"`
	PostsByMonth map[string]int `json:"posts_by_month"`
	RecentPosts  []Summary      `json:"recent_posts"`
}
