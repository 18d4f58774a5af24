// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes blogd tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/norandom/blogd/internal/models"
	"github.com/norandom/blogd/internal/postservice"
)

// defaultListLimit caps list_posts output when the client does not ask for
// a specific page size.
const defaultListLimit = 20

// Server wraps the MCP server with blogd tools.
type Server struct {
	mcp *server.MCPServer
	svc *postservice.Service
}

// New creates a new MCP server with all blogd tools registered.
func New(svc *postservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"blogd",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_posts",
		mcp.WithDescription("Full-text search through post titles, tags, authors, and body text. Returns ranked post summaries."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("tenant", mcp.Description("Optional tenant to scope the search to")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (server default when omitted)")),
	), s.searchPosts)

	s.mcp.AddTool(mcp.NewTool("get_post",
		mcp.WithDescription("Read one post by slug, including the full Markdown body and attachment list."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Post slug (e.g. my-first-post)")),
	), s.getPost)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List post summaries, sticky posts first, newest first. "+
			"Filterable by tenant, tag, and author; paginated via limit and offset."),
		mcp.WithString("tenant", mcp.Description("Optional tenant filter")),
		mcp.WithString("tag", mcp.Description("Optional tag filter")),
		mcp.WithString("author", mcp.Description("Optional author filter")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 20)")),
		mcp.WithNumber("offset", mcp.Description("Number of posts to skip")),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("blog_stats",
		mcp.WithDescription("Aggregate statistics for the published content: post totals, per-tenant counts, top tags, and parse errors."),
	), s.blogStats)

	// Resource: snapshot statistics.
	s.mcp.AddResource(
		mcp.NewResource("blogd://stats", "Blog Statistics",
			mcp.WithResourceDescription("Aggregate counts for the published content snapshot."),
			mcp.WithMIMEType("application/json"),
		),
		s.readStatsResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type searchHit struct {
	models.Summary
	Score int `json:"score"`
}

type listResult struct {
	Items []models.Summary `json:"items"`
	Total int              `json:"total"`
}

func (s *Server) searchPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tenant := ""
	if v, err := req.RequireString("tenant"); err == nil {
		tenant = v
	}
	limit := 0
	if v, err := req.RequireInt("limit"); err == nil {
		limit = v
	}

	results, err := s.svc.Search(ctx, query, tenant, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = searchHit{Summary: models.NewSummary(res.Post), Score: res.Score}
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.Get(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	out, _ := json.MarshalIndent(post, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := postservice.ListParams{StickyFirst: true}
	if v, err := req.RequireString("tenant"); err == nil {
		params.Tenant = v
	}
	if v, err := req.RequireString("tag"); err == nil && v != "" {
		params.Tags = []string{v}
	}
	if v, err := req.RequireString("author"); err == nil {
		params.Author = v
	}
	limit := defaultListLimit
	if v, err := req.RequireInt("limit"); err == nil && v > 0 {
		limit = v
	}
	params.Limit = &limit
	if v, err := req.RequireInt("offset"); err == nil && v > 0 {
		params.Offset = v
	}

	posts, total, err := s.svc.List(ctx, params)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items := make([]models.Summary, len(posts))
	for i, p := range posts {
		items[i] = models.NewSummary(p)
	}
	out, _ := json.MarshalIndent(listResult{Items: items, Total: total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) blogStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readStatsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "blogd://stats",
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
