package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/norandom/blogd/internal/models"
)

func TestParse_FullDocument(t *testing.T) {
	input := []byte(`---
title: Threat Modeling Basics
date: 2024-03-10T09:30:00Z
author: mara
tenant: infosec
tags:
  - security
  - modeling
excerpt: A short primer.
sticky: true
---
# Threat Modeling

Body text goes here.
`)
	p, err := Parse(input, "guides/threat-modeling.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Slug != "threat-modeling" {
		t.Errorf("slug = %q, want %q", p.Slug, "threat-modeling")
	}
	if p.Title != "Threat Modeling Basics" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Author != "mara" {
		t.Errorf("author = %q, want %q", p.Author, "mara")
	}
	if p.Tenant != "infosec" {
		t.Errorf("tenant = %q, want %q", p.Tenant, "infosec")
	}
	want := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	if !p.PublishedAt.Equal(want) {
		t.Errorf("publishedAt = %v, want %v", p.PublishedAt, want)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "security" || p.Tags[1] != "modeling" {
		t.Errorf("tags = %v, want [security modeling]", p.Tags)
	}
	if p.Excerpt != "A short primer." {
		t.Errorf("excerpt = %q", p.Excerpt)
	}
	if !p.Sticky {
		t.Error("sticky = false, want true")
	}
	if !strings.HasPrefix(p.Body, "# Threat Modeling") {
		t.Errorf("body = %q", p.Body)
	}
	if p.ReadingTime != 1 {
		t.Errorf("readingTime = %d, want 1", p.ReadingTime)
	}
	if p.Checksum == "" {
		t.Error("checksum is empty")
	}
}

func TestParse_MissingBlock(t *testing.T) {
	_, err := Parse([]byte("# Just a heading\nSome text.\n"), "plain.md", Options{})
	assertParseError(t, err, models.KindMalformedBlock)
}

func TestParse_UnterminatedBlock(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: Oops\ndate: 2024-01-01\n"), "oops.md", Options{})
	assertParseError(t, err, models.KindMalformedBlock)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"), "bad.md", Options{})
	assertParseError(t, err, models.KindMalformedBlock)
}

func TestParse_BlockNotAMapping(t *testing.T) {
	_, err := Parse([]byte("---\njust a scalar\n---\nBody\n"), "scalar.md", Options{})
	assertParseError(t, err, models.KindMalformedBlock)
}

func TestParse_MissingTitle(t *testing.T) {
	_, err := Parse([]byte("---\ndate: 2024-01-01\n---\nBody\n"), "untitled.md", Options{})
	assertParseError(t, err, models.KindMissingField)
}

func TestParse_TitleNotAString(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: 42\ndate: 2024-01-01\n---\nBody\n"), "numeric.md", Options{})
	pe := assertParseError(t, err, models.KindMissingField)
	if !strings.Contains(pe.Detail, "string") {
		t.Errorf("detail = %q, want mention of string", pe.Detail)
	}
}

func TestParse_MissingDate(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: No Date\n---\nBody\n"), "nodate.md", Options{})
	assertParseError(t, err, models.KindMissingField)
}

func TestParse_MalformedDate(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: Bad Date\ndate: \"not a date\"\n---\nBody\n"), "baddate.md", Options{})
	assertParseError(t, err, models.KindMalformedDate)
}

func TestParse_DateFormats(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		// Unquoted ISO dates resolve through yaml.v3's native timestamp type.
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"\"2024-01-15\"", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"\"2024-01-15 08:30:00\"", time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)},
		{"\"2024-01-15T08:30:00Z\"", time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)},
		{"\"January 15, 2024\"", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		input := []byte("---\ntitle: T\ndate: " + tc.raw + "\n---\nBody\n")
		p, err := Parse(input, "t.md", Options{})
		if err != nil {
			t.Fatalf("date %s: unexpected error: %v", tc.raw, err)
		}
		if !p.PublishedAt.Equal(tc.want) {
			t.Errorf("date %s: publishedAt = %v, want %v", tc.raw, p.PublishedAt, tc.want)
		}
	}
}

func TestParse_PublishedAtAlias(t *testing.T) {
	input := []byte("---\ntitle: Alias\npublishedAt: \"2024-02-01\"\n---\nBody\n")
	p, err := Parse(input, "alias.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.PublishedAt.IsZero() {
		t.Error("publishedAt is zero, want parsed value")
	}
}

func TestParse_TagsDefaultEmpty(t *testing.T) {
	p, err := Parse([]byte("---\ntitle: T\ndate: 2024-01-01\n---\nBody\n"), "t.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tags == nil || len(p.Tags) != 0 {
		t.Errorf("tags = %#v, want empty non-nil slice", p.Tags)
	}
}

func TestParse_TagsCommaString(t *testing.T) {
	input := []byte("---\ntitle: T\ndate: 2024-01-01\ntags: \"go, security , go\"\n---\nBody\n")
	p, err := Parse(input, "t.md", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "go" || p.Tags[1] != "security" {
		t.Errorf("tags = %v, want [go security]", p.Tags)
	}
}

func TestParse_TenantDefault(t *testing.T) {
	p, err := Parse([]byte("---\ntitle: T\ndate: 2024-01-01\n---\nBody\n"), "t.md", Options{DefaultTenant: "shared"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tenant != "shared" {
		t.Errorf("tenant = %q, want %q", p.Tenant, "shared")
	}
}

func TestParse_TenantWhitelistCoercion(t *testing.T) {
	opts := Options{DefaultTenant: "shared", Tenants: []string{"shared", "infosec"}}
	input := []byte("---\ntitle: T\ndate: 2024-01-01\ntenant: rogue\n---\nBody\n")
	p, err := Parse(input, "t.md", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Tenant != "shared" {
		t.Errorf("tenant = %q, want coerced to %q", p.Tenant, "shared")
	}
}

func TestParse_StickyVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"\"yes\"", true},
		{"\"1\"", true},
		{"false", false},
		{"\"no\"", false},
		{"\"maybe\"", false},
	}
	for _, tc := range cases {
		input := []byte("---\ntitle: T\ndate: 2024-01-01\nsticky: " + tc.raw + "\n---\nBody\n")
		p, err := Parse(input, "t.md", Options{})
		if err != nil {
			t.Fatalf("sticky %s: unexpected error: %v", tc.raw, err)
		}
		if p.Sticky != tc.want {
			t.Errorf("sticky %s = %v, want %v", tc.raw, p.Sticky, tc.want)
		}
	}
}

func TestDeriveExcerpt_ShortBody(t *testing.T) {
	got := deriveExcerpt("# Heading\n\nSome *emphasized* text.", 200)
	if got != "Heading Some emphasized text." {
		t.Errorf("excerpt = %q", got)
	}
}

func TestDeriveExcerpt_Truncates(t *testing.T) {
	body := strings.Repeat("word ", 100)
	got := deriveExcerpt(body, 200)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("excerpt = %q, want ... suffix", got)
	}
	if len(got) > 203 {
		t.Errorf("len(excerpt) = %d, want <= 203", len(got))
	}
	// Must cut on a word boundary, not mid-word.
	trimmed := strings.TrimSuffix(got, "...")
	if strings.HasSuffix(trimmed, " ") {
		t.Errorf("excerpt ends with space before ellipsis: %q", got)
	}
	for _, w := range strings.Fields(trimmed) {
		if w != "word" {
			t.Errorf("unexpected fragment %q in %q", w, got)
		}
	}
}

func TestReadingTime(t *testing.T) {
	cases := []struct {
		words int
		want  int
	}{
		{0, 1},
		{50, 1},
		{250, 1},
		{350, 2},
		{900, 5}, // round(4.5) rounds half away from zero
	}
	for _, tc := range cases {
		body := strings.TrimSpace(strings.Repeat("word ", tc.words))
		got := readingTime(body)
		if got != tc.want {
			t.Errorf("readingTime(%d words) = %d, want %d", tc.words, got, tc.want)
		}
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("guides/zero-trust.md"); got != "zero-trust" {
		t.Errorf("slug = %q, want %q", got, "zero-trust")
	}
	if got := Slug("plain.md"); got != "plain" {
		t.Errorf("slug = %q, want %q", got, "plain")
	}
}

// assertParseError fails the test unless err is a models.ParseError of the
// given kind, and returns it for further inspection.
func assertParseError(t *testing.T, err error, kind models.ErrorKind) models.ParseError {
	t.Helper()
	if err == nil {
		t.Fatal("expected a parse error, got nil")
	}
	var pe models.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error type = %T, want models.ParseError", err)
	}
	if pe.Kind != kind {
		t.Fatalf("kind = %q, want %q", pe.Kind, kind)
	}
	if pe.SourcePath == "" {
		t.Error("sourcePath is empty")
	}
	return pe
}
