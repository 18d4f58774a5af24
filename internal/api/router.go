package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/norandom/blogd/internal/postservice"
	"github.com/norandom/blogd/internal/ratelimit"
	"github.com/norandom/blogd/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, is mounted at GET /events.
// limiter, if non-nil, applies per-client rate limiting to every route.
func NewRouter(svc *postservice.Service, provider storage.Provider, events http.Handler, limiter ratelimit.Limiter, rlCfg ratelimit.Config) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(svc, provider)

	r := chi.NewRouter()
	r.Use(corsHeaders)
	if limiter != nil {
		r.Use(ratelimit.Middleware(limiter, rlCfg))
	}

	// Posts.
	r.Get("/posts", h.ListPosts)
	r.Get("/posts/{slug}", h.GetPost)
	r.Get("/posts/{slug}/related", h.RelatedPosts)

	// Search.
	r.Get("/search", h.SearchPosts)
	r.Get("/search/suggest", h.SuggestSearch)

	// Aggregations.
	r.Get("/stats", h.GetStats)
	r.Get("/tags", h.ListTags)
	r.Get("/tenants", h.ListTenants)
	r.Get("/tenants/{tenant}", h.GetTenantStats)
	r.Get("/tenants/{tenant}/posts", h.TenantPosts)

	// Attachments.
	r.Get("/attachments/{slug}/*", ah.Serve)

	// Ops.
	r.Post("/refresh", h.TriggerRefresh)
	r.Get("/errors", h.ListErrors)

	// SSE endpoint.
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
