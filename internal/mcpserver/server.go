// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes memo tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/store"
)

const contentFormatURI = "memos://content-format"

// Server wraps the MCP server with memo tools.
type Server struct {
	mcp *server.MCPServer
	svc *memoservice.Service
}

// New creates a new MCP server with all memo tools registered.
func New(svc *memoservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Memos",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_memos",
		mcp.WithDescription("Full-text search through memo text and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchMemos)

	s.mcp.AddTool(mcp.NewTool("read_memo",
		mcp.WithDescription("Read a memo: its storage content, checksum and status."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Memo id")),
	), s.readMemo)

	s.mcp.AddTool(mcp.NewTool("create_memo",
		mcp.WithDescription("Create a new memo. "+
			"Content MUST follow the memo content format (bold, lists, task lists, "+
			"@[label](id) memo links and #tags). Read it first via the "+
			"get_content_format tool or the "+contentFormatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Memo content in the storage format")),
		mcp.WithString("visibility", mcp.Description("PUBLIC, PROTECTED or PRIVATE (default PRIVATE)")),
	), s.createMemo)

	s.mcp.AddTool(mcp.NewTool("update_memo",
		mcp.WithDescription("Replace the content of a memo. Pass the checksum from read_memo "+
			"as if_match to avoid overwriting concurrent edits."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Memo id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New content in the storage format")),
		mcp.WithString("if_match", mcp.Description("Expected current checksum")),
	), s.updateMemo)

	s.mcp.AddTool(mcp.NewTool("list_memos",
		mcp.WithDescription("List memos newest first as id and one-line preview."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by")),
		mcp.WithBoolean("archived", mcp.Description("List archived memos instead of normal ones")),
		mcp.WithString("type",
			mcp.Description("Only memos linking to other memos (CONNECTED), holding a web URL (LINKED) or an image URL (IMAGED)"),
			mcp.Enum(string(models.Connected), string(models.Linked), string(models.Imaged)),
		),
	), s.listMemos)

	s.mcp.AddTool(mcp.NewTool("get_links",
		mcp.WithDescription("Memos the given memo links to, and normal memos linking to it."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Memo id")),
	), s.getLinks)

	s.mcp.AddTool(mcp.NewTool("get_content_format",
		mcp.WithDescription("Returns the memo content format. "+
			"Call this before creating or updating memos to ensure correct structure."),
	), s.getContentFormat)

	// Resource: content format.
	s.mcp.AddResource(
		mcp.NewResource(contentFormatURI, "Memo Content Format",
			mcp.WithResourceDescription("Storage format that all memo content must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContentFormatResource,
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

// toolError turns a service error into a tool error result.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("memo not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: read the memo again")
	case errors.Is(err, apperr.ErrEmptyContent):
		return mcp.NewToolResultError("content is empty")
	case errors.Is(err, apperr.ErrInvalidInput):
		return mcp.NewToolResultError("invalid input: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	return jsonResult(results)
}

func (s *Server) readMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Get(ctx, int64(id))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(m)
}

func (s *Server) createMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	vis := models.Visibility(strings.ToUpper(req.GetString("visibility", "")))
	m, err := s.svc.Create(ctx, content, vis)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %d", m.ID)), nil
}

func (s *Server) updateMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.SaveContent(ctx, int64(id), content, req.GetString("if_match", ""))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %d (checksum %s)", m.ID, m.Checksum)), nil
}

func (s *Server) listMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := store.ListOptions{
		Status: models.Normal,
		Tag:    req.GetString("tag", ""),
		Type:   models.MemoType(strings.ToUpper(req.GetString("type", ""))),
		Limit:  100,
	}
	if req.GetBool("archived", false) {
		opts.Status = models.Archived
	}
	items, _, err := s.svc.List(ctx, opts)
	if err != nil {
		return toolError(err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no memos found"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d: %s", it.ID, it.Preview)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getLinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.svc.LinksByID(ctx, int64(id))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(g)
}

func (s *Server) getContentFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContentFormat), nil
}

func (s *Server) readContentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contentFormatURI,
			MIMEType: "text/markdown",
			Text:     ContentFormat,
		},
	}, nil
}
