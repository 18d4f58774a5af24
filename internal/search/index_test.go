package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/store"
)

func day(n int) time.Time {
	return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC)
}

func buildIndex(posts ...models.Post) *Index {
	records := make(map[string]models.Post, len(posts))
	for _, p := range posts {
		records[p.Slug] = p
	}
	return Build(store.NewSnapshot(records, nil))
}

func resultSlugs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Post.Slug
	}
	return out
}

func postSlugs(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Slug
	}
	return out
}

func TestSearch_TitleOutranksBody(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "greeting", Title: "Hello World", Body: "unrelated text"},
		models.Post{Slug: "aside", Title: "Something Else", Body: "hello from the footnotes"},
	)

	got := idx.Search("hello", "", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "greeting", got[0].Post.Slug)
	assert.Equal(t, 3, got[0].Score)
	assert.Equal(t, "aside", got[1].Post.Slug)
	assert.Equal(t, 1, got[1].Score)
}

func TestSearch_WeightsAccumulate(t *testing.T) {
	idx := buildIndex(models.Post{
		Slug:  "all-fields",
		Title: "Kubernetes Operators",
		Tags:  []string{"kubernetes"},
		Body:  "Kubernetes controllers reconcile state.",
	})

	got := idx.Search("kubernetes", "", 0)
	require.Len(t, got, 1)
	assert.Equal(t, 6, got[0].Score, "title 3 + tag 2 + body 1")
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	idx := buildIndex(models.Post{Slug: "k8s", Title: "Kubernetes Deep Dive"})

	assert.Len(t, idx.Search("KUBER", "", 0), 1, "partial word should match as substring")
	assert.Len(t, idx.Search("deep dive", "", 0), 1)
}

func TestSearch_TokenMatch(t *testing.T) {
	idx := buildIndex(models.Post{Slug: "go-post", Title: "Profiling Golang Services"})

	// No contiguous substring, but the query shares the token "golang".
	got := idx.Search("golang tutorials", "", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "go-post", got[0].Post.Slug)
}

func TestSearch_AuthorAdmitsWithZeroScore(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "by-mara", Title: "Storage Engines", Author: "Mara Jones"},
		models.Post{Slug: "about-mara", Title: "Interview with Mara"},
	)

	got := idx.Search("mara", "", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "about-mara", got[0].Post.Slug, "title match outranks author-only match")
	assert.Equal(t, 3, got[0].Score)
	assert.Equal(t, "by-mara", got[1].Post.Slug)
	assert.Equal(t, 0, got[1].Score)
}

func TestSearch_TenantFilter(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "a", Title: "Threat Hunting", Tenant: "infosec"},
		models.Post{Slug: "b", Title: "Threat Models", Tenant: "quant"},
	)

	got := idx.Search("threat", "infosec", 0)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Post.Slug)
}

func TestSearch_Limit(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "a", Title: "Caching One"},
		models.Post{Slug: "b", Title: "Caching Two"},
		models.Post{Slug: "c", Title: "Caching Three"},
	)

	assert.Len(t, idx.Search("caching", "", 2), 2)
	assert.Len(t, idx.Search("caching", "", 0), 3, "limit 0 means no cap")
}

func TestSearch_TiesBrokenByDateThenSlug(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "old", Title: "Hashing Basics", PublishedAt: day(1)},
		models.Post{Slug: "newer", Title: "Hashing Tricks", PublishedAt: day(9)},
		models.Post{Slug: "alpha", Title: "Hashing Notes", PublishedAt: day(1)},
	)

	got := idx.Search("hashing", "", 0)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"newer", "alpha", "old"}, resultSlugs(got))
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := buildIndex(models.Post{Slug: "a", Title: "Anything"})

	assert.Nil(t, idx.Search("", "", 0))
	assert.Nil(t, idx.Search("   ", "", 0))
}

func TestSearch_NoMatch(t *testing.T) {
	idx := buildIndex(models.Post{Slug: "a", Title: "Compilers", Body: "parsing"})

	assert.Empty(t, idx.Search("gardening", "", 0))
}

func TestSuggest_OrderedByPositionThenAlpha(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "a", Title: "Kubernetes Deep Dive"},
		models.Post{Slug: "b", Title: "Intro to Kubernetes"},
		models.Post{Slug: "c", Title: "Kubecon Notes"},
	)

	got := idx.Suggest("kube", 10)
	// "to" is dropped by tokenization, so "Kubernetes" sits at position 1
	// in the second title.
	assert.Equal(t, []string{"Kubecon Notes", "Kubernetes Deep Dive", "Intro to Kubernetes"}, got)
}

func TestSuggest_DedupesTitles(t *testing.T) {
	idx := buildIndex(models.Post{Slug: "a", Title: "Caching Caching Caching"})

	got := idx.Suggest("cach", 10)
	assert.Equal(t, []string{"Caching Caching Caching"}, got)
}

func TestSuggest_Limit(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "a", Title: "Golang Profiling"},
		models.Post{Slug: "b", Title: "Golang Generics"},
		models.Post{Slug: "c", Title: "Golang Modules"},
	)

	assert.Len(t, idx.Suggest("gol", 2), 2)
}

func TestSuggest_EmptyPrefix(t *testing.T) {
	idx := buildIndex(models.Post{Slug: "a", Title: "Anything Goes"})

	assert.Nil(t, idx.Suggest("", 5))
	assert.Nil(t, idx.Suggest("any", 0))
}

func TestSuggest_NoFalsePrefixMatches(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "a", Title: "Zig Allocators"},
		models.Post{Slug: "b", Title: "Allocation Strategies"},
	)

	got := idx.Suggest("alloc", 10)
	assert.Equal(t, []string{"Allocation Strategies", "Zig Allocators"}, got)
	assert.Empty(t, idx.Suggest("allocx", 10))
}

func TestRelated_ScoresTagsAuthorTenant(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "base", Tags: []string{"go", "concurrency"}, Author: "mara", Tenant: "shared"},
		// two shared tags (+4), same author (+1), same tenant (+1) = 6
		models.Post{Slug: "twin", Tags: []string{"Go", "Concurrency"}, Author: "Mara", Tenant: "shared"},
		// one shared tag (+2), same tenant (+1) = 3
		models.Post{Slug: "cousin", Tags: []string{"go"}, Author: "liam", Tenant: "shared"},
		// same tenant only = 1
		models.Post{Slug: "neighbor", Tags: []string{"rust"}, Author: "liam", Tenant: "shared"},
		// nothing in common = excluded
		models.Post{Slug: "stranger", Tags: []string{"rust"}, Author: "liam", Tenant: "quant"},
	)

	got := idx.Related("base", 0)
	assert.Equal(t, []string{"twin", "cousin", "neighbor"}, postSlugs(got))
}

func TestRelated_LimitAndUnknownSlug(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "base", Tenant: "shared"},
		models.Post{Slug: "s1", Tenant: "shared"},
		models.Post{Slug: "s2", Tenant: "shared"},
	)

	assert.Len(t, idx.Related("base", 1), 1)
	assert.Nil(t, idx.Related("missing", 5))
}

func TestRelated_TiesByDateThenSlug(t *testing.T) {
	idx := buildIndex(
		models.Post{Slug: "base", Tenant: "shared", PublishedAt: day(1)},
		models.Post{Slug: "bravo", Tenant: "shared", PublishedAt: day(2)},
		models.Post{Slug: "alpha", Tenant: "shared", PublishedAt: day(2)},
		models.Post{Slug: "charlie", Tenant: "shared", PublishedAt: day(8)},
	)

	got := idx.Related("base", 0)
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, postSlugs(got))
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"the quick brown fox", []string{"quick", "brown", "fox"}},
		{"Go is fun", []string{"fun"}},
		{"snake_case stays", []string{"snake_case", "stays"}},
		{"", nil},
		{"a an the", nil},
	}
	for _, tt := range tests {
		got := tokenize(tt.in)
		if len(tt.want) == 0 {
			assert.Empty(t, got, "tokenize(%q)", tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, "tokenize(%q)", tt.in)
	}
}

func TestIndexLenAndSnapshot(t *testing.T) {
	snap := store.NewSnapshot(map[string]models.Post{
		"a": {Slug: "a", Title: "One"},
		"b": {Slug: "b", Title: "Two"},
	}, nil)
	idx := Build(snap)

	assert.Equal(t, 2, idx.Len())
	assert.Same(t, snap, idx.Snapshot())
}
