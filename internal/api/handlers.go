package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/norandom/blogd/internal/apperr"
	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/postservice"
)

const (
	maxLimit        = 100
	maxOffset       = 10000
	maxQueryLength  = 200
	maxPrefixLength = 50
	maxRelatedLimit = 20
)

// Handler holds API route handlers.
type Handler struct {
	svc *postservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *postservice.Service) *Handler {
	return &Handler{svc: svc}
}

// listQuery extracts the shared listing parameters from the URL query.
func listQuery(q url.Values) (postservice.ListParams, error) {
	params := postservice.ListParams{
		Tenant:      q.Get("tenant"),
		Tags:        q["tag"],
		Author:      q.Get("author"),
		SortField:   q.Get("sort_by"),
		SortOrder:   q.Get("order"),
		StickyFirst: true,
	}

	if v := q.Get("sticky"); v != "" {
		sticky, err := strconv.ParseBool(v)
		if err != nil {
			return params, fmt.Errorf("sticky must be a boolean")
		}
		params.Sticky = &sticky
	}
	if v := q.Get("sticky_first"); v != "" {
		first, err := strconv.ParseBool(v)
		if err != nil {
			return params, fmt.Errorf("sticky_first must be a boolean")
		}
		params.StickyFirst = first
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxOffset {
			return params, fmt.Errorf("offset must be between 0 and %d", maxOffset)
		}
		params.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			return params, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
		params.Limit = &n
	}
	return params, nil
}

// ListPosts handles GET /api/v1/posts.
//
//	@Summary		List posts with filtering, sorting and pagination
//	@Tags			posts
//	@Produce		json
//	@Param			tenant			query		string	false	"Filter by tenant"
//	@Param			tag				query		string	false	"Filter by tag (repeatable, all must match)"
//	@Param			author			query		string	false	"Filter by author"
//	@Param			sticky			query		bool	false	"Filter by sticky flag"
//	@Param			sort_by			query		string	false	"Sort field"	Enums(date, title, author)
//	@Param			order			query		string	false	"Sort order"	Enums(asc, desc)
//	@Param			sticky_first	query		bool	false	"Keep sticky posts on top (default true)"
//	@Param			limit			query		int		false	"Page size (1-100)"
//	@Param			offset			query		int		false	"Page offset (0-10000)"
//	@Success		200				{object}	PostListResponse
//	@Failure		400				{object}	errResponse
//	@Router			/posts [get]
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	h.listPosts(w, r, "", http.StatusBadRequest)
}

// TenantPosts handles GET /api/v1/tenants/{tenant}/posts. It is the tenant
// scoped alias of ListPosts.
//
//	@Summary		List posts of one tenant
//	@Tags			tenants
//	@Produce		json
//	@Param			tenant	path		string	true	"Tenant name"
//	@Success		200		{object}	PostListResponse
//	@Failure		404		{object}	errResponse
//	@Router			/tenants/{tenant}/posts [get]
func (h *Handler) TenantPosts(w http.ResponseWriter, r *http.Request) {
	h.listPosts(w, r, chi.URLParam(r, "tenant"), http.StatusNotFound)
}

// listPosts runs a listing. tenant, when non-empty, overrides the query
// parameter; tenantStatus is the status for an unknown tenant (400 when it
// arrived as a filter, 404 when it was the resource path).
func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request, tenant string, tenantStatus int) {
	params, err := listQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if tenant != "" {
		params.Tenant = tenant
	}

	items, total, err := h.svc.List(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrTenantUnknown):
			writeError(w, tenantStatus, "unknown tenant")
		case errors.Is(err, apperr.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, "invalid sort_by or order parameter")
		default:
			slog.Error("list posts failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, PostListResponse{
		Items:   items,
		Total:   total,
		Offset:  params.Offset,
		Limit:   params.Limit,
		HasMore: params.Offset+len(items) < total,
	})
}

// GetPost handles GET /api/v1/posts/{slug}.
//
//	@Summary		Get a single post by slug
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	PostDetail
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{slug} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	post, err := h.svc.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("get post failed", slog.String("slug", slug), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// The record checksum doubles as a cache validator: it only changes
	// when the source file changes.
	w.Header().Set("ETag", `"`+post.Checksum+`"`)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Trim(match, `"`) == post.Checksum {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// RelatedPosts handles GET /api/v1/posts/{slug}/related.
//
//	@Summary		Posts related by tags, author and tenant
//	@Tags			posts
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Param			limit	query		int		false	"Max related posts (1-20, default 5)"
//	@Success		200		{object}	RelatedResponse
//	@Failure		404		{object}	errResponse
//	@Router			/posts/{slug}/related [get]
func (h *Handler) RelatedPosts(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRelatedLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxRelatedLimit))
			return
		}
		limit = n
	}

	related, err := h.svc.Related(r.Context(), slug, limit)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("related posts failed", slog.String("slug", slug), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, RelatedResponse{Slug: slug, Items: related})
}

// SearchPosts handles GET /api/v1/search.
//
//	@Summary		Ranked search across titles, tags, bodies and authors
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			tenant	query		string	false	"Limit search to one tenant"
//	@Param			limit	query		int		false	"Max results (1-100)"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(q) > maxQueryLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query longer than %d characters", maxQueryLength))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxLimit))
			return
		}
		limit = n
	}

	results, err := h.svc.Search(r.Context(), q, r.URL.Query().Get("tenant"), limit)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, "query too short")
		case errors.Is(err, apperr.ErrTenantUnknown):
			writeError(w, http.StatusBadRequest, "unknown tenant")
		default:
			slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	hits := make([]SearchHit, len(results))
	for i, res := range results {
		hits[i] = SearchHit{PostSummary: models.NewSummary(res.Post), Score: res.Score}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Items: hits, Total: len(hits)})
}

// SuggestSearch handles GET /api/v1/search/suggest.
//
//	@Summary		Title completions for a query prefix
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Query prefix"
//	@Param			limit	query		int		false	"Max suggestions (1-10)"
//	@Success		200		{object}	SuggestResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search/suggest [get]
func (h *Handler) SuggestSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(q) > maxPrefixLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("query longer than %d characters", maxPrefixLength))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	suggestions, err := h.svc.Suggest(r.Context(), q, limit)
	if err != nil {
		slog.Error("suggest failed", slog.String("query", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, SuggestResponse{Query: q, Suggestions: suggestions})
}

// GetStats handles GET /api/v1/stats.
//
//	@Summary		Aggregate statistics across all posts
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Router			/stats [get]
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	aggregate, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, aggregate)
}

// GetTenantStats handles GET /api/v1/tenants/{tenant}.
//
//	@Summary		Aggregate statistics for one tenant
//	@Tags			tenants
//	@Produce		json
//	@Param			tenant	path		string	true	"Tenant name"
//	@Success		200		{object}	TenantStatsResponse
//	@Failure		404		{object}	errResponse
//	@Router			/tenants/{tenant} [get]
func (h *Handler) GetTenantStats(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	aggregate, err := h.svc.TenantStats(r.Context(), tenant)
	if err != nil {
		if errors.Is(err, apperr.ErrTenantUnknown) {
			writeError(w, http.StatusNotFound, "unknown tenant")
		} else {
			slog.Error("tenant stats failed", slog.String("tenant", tenant), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, aggregate)
}

// ListTenants handles GET /api/v1/tenants.
//
//	@Summary		List tenant partitions with post counts
//	@Tags			tenants
//	@Produce		json
//	@Success		200	{object}	TenantsResponse
//	@Router			/tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.Tenants(r.Context())
	if err != nil {
		slog.Error("list tenants failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, TenantsResponse{Tenants: tenants, Total: len(tenants)})
}

// ListTags handles GET /api/v1/tags.
//
//	@Summary		List tags with usage counts, most used first
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.Tags(r.Context())
	if err != nil {
		slog.Error("list tags failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags, TotalTags: len(tags)})
}

// ListErrors handles GET /api/v1/errors.
//
//	@Summary		Parse errors collected by the last content scan
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	ErrorsResponse
//	@Router			/errors [get]
func (h *Handler) ListErrors(w http.ResponseWriter, r *http.Request) {
	errs := h.svc.Errors(r.Context())
	if errs == nil {
		errs = []models.ParseError{}
	}
	writeJSON(w, http.StatusOK, ErrorsResponse{Errors: errs, Total: len(errs)})
}

// TriggerRefresh handles POST /api/v1/refresh.
//
//	@Summary		Rebuild the snapshot from disk
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	RefreshResponse
//	@Failure		500	{object}	errResponse
//	@Router			/refresh [post]
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context())
	if err != nil {
		slog.Error("refresh failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
