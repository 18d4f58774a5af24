package api

import (
	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/postservice"
)

// PostDetail is the full post response type (aliased from the domain layer).
type PostDetail = models.Post

// PostSummary is the lightweight post shape used in related and recent
// listings (aliased from the domain layer).
type PostSummary = models.Summary

// PostListResponse wraps paginated post listings.
type PostListResponse struct {
	Items   []PostDetail `json:"items" validate:"required"`
	Total   int          `json:"total" example:"42" validate:"required"`
	Offset  int          `json:"offset" example:"0"`
	Limit   *int         `json:"limit,omitempty" example:"20"`
	HasMore bool         `json:"has_more"`
}

// SearchHit is a single search result with its relevance score.
type SearchHit struct {
	PostSummary
	Score int `json:"score" example:"3"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query string      `json:"query" example:"kubernetes" validate:"required"`
	Items []SearchHit `json:"items" validate:"required"`
	Total int         `json:"total" example:"2"`
}

// SuggestResponse wraps search suggestions.
type SuggestResponse struct {
	Query       string   `json:"query" example:"kuber"`
	Suggestions []string `json:"suggestions" validate:"required"`
}

// RelatedResponse wraps related posts for one slug.
type RelatedResponse struct {
	Slug  string        `json:"slug" example:"intro-to-zeek"`
	Items []PostSummary `json:"items" validate:"required"`
}

// TagsResponse wraps the tag frequency listing.
type TagsResponse struct {
	Tags      []postservice.TagCount `json:"tags" validate:"required"`
	TotalTags int                    `json:"total_tags" example:"12"`
}

// TenantsResponse wraps the tenant listing.
type TenantsResponse struct {
	Tenants []postservice.TenantInfo `json:"tenants" validate:"required"`
	Total   int                      `json:"total" example:"3"`
}

// ErrorsResponse wraps the parse errors collected by the last scan.
type ErrorsResponse struct {
	Errors []models.ParseError `json:"errors" validate:"required"`
	Total  int                 `json:"total" example:"1"`
}

// RefreshResponse reports the outcome of a manual refresh (aliased from the
// domain layer).
type RefreshResponse = postservice.RefreshResult

// StatsResponse is the global statistics payload (aliased from the domain layer).
type StatsResponse = models.Stats

// TenantStatsResponse is the per-tenant statistics payload (aliased from the
// domain layer).
type TenantStatsResponse = models.TenantStats
