package stats

import (
	"sort"

	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/store"
)

// recentLimit is how many of the newest posts a tenant aggregate lists.
const recentLimit = 5

// monthFormat keys the per-month counters, e.g. "2024-03".
const monthFormat = "2006-01"

// Compute aggregates counters across every post in the snapshot.
func Compute(snap *store.Snapshot) models.Stats {
	posts := snap.Posts()
	out := models.Stats{
		TotalPosts:    len(posts),
		Tags:          make(map[string]int),
		Authors:       make(map[string]int),
		PostsByMonth:  make(map[string]int),
		PostsByTenant: make(map[string]int),
	}
	for _, p := range posts {
		for _, tag := range p.Tags {
			out.Tags[tag]++
		}
		if p.Author != "" {
			out.Authors[p.Author]++
		}
		out.PostsByMonth[p.PublishedAt.Format(monthFormat)]++
		out.PostsByTenant[p.Tenant]++
	}
	return out
}

// ComputeTenant aggregates counters for one tenant partition. The caller is
// responsible for validating the tenant name; an unknown tenant simply
// yields empty counters.
func ComputeTenant(snap *store.Snapshot, tenant string) models.TenantStats {
	out := models.TenantStats{
		Tenant:       tenant,
		Tags:         make(map[string]int),
		Authors:      make(map[string]int),
		PostsByMonth: make(map[string]int),
	}

	var posts []models.Post
	for _, p := range snap.Posts() {
		if p.Tenant != tenant {
			continue
		}
		posts = append(posts, p)
		for _, tag := range p.Tags {
			out.Tags[tag]++
		}
		if p.Author != "" {
			out.Authors[p.Author]++
		}
		out.PostsByMonth[p.PublishedAt.Format(monthFormat)]++
	}
	out.TotalPosts = len(posts)

	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].PublishedAt.Equal(posts[j].PublishedAt) {
			return posts[i].PublishedAt.After(posts[j].PublishedAt)
		}
		return posts[i].Slug < posts[j].Slug
	})
	if len(posts) > recentLimit {
		posts = posts[:recentLimit]
	}
	out.RecentPosts = make([]models.Summary, len(posts))
	for i, p := range posts {
		out.RecentPosts[i] = models.NewSummary(p)
	}
	return out
}
