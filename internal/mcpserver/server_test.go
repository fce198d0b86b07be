package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/memos/internal/linkgraph"
	"github.com/starford/memos/internal/memoservice"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/store"
	"github.com/starford/memos/internal/testutil"
)

func testServer(t *testing.T) (*Server, *memoservice.Service) {
	t.Helper()

	db := testutil.TestDB(t)
	svc := memoservice.New(db)
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no in-process "call tool" helper; call the handlers directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_memos":
		result, err = srv.searchMemos(ctx, req)
	case "read_memo":
		result, err = srv.readMemo(ctx, req)
	case "create_memo":
		result, err = srv.createMemo(ctx, req)
	case "update_memo":
		result, err = srv.updateMemo(ctx, req)
	case "list_memos":
		result, err = srv.listMemos(ctx, req)
	case "get_links":
		result, err = srv.getLinks(ctx, req)
	case "get_content_format":
		result, err = srv.getContentFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadMemo(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_memo", map[string]any{
		"content":    "* Hello **world**",
		"visibility": "public",
	})
	if text := resultText(r); text != "created: 1" {
		t.Fatalf("create result = %q", text)
	}

	r = callTool(t, srv, "read_memo", map[string]any{"id": float64(1)})
	var m models.Memo
	if err := json.Unmarshal([]byte(resultText(r)), &m); err != nil {
		t.Fatalf("read result: %v", err)
	}
	if m.Content != "- Hello **world**" || m.Visibility != models.Public {
		t.Errorf("memo = %+v", m)
	}
}

func TestCreateMemo_Empty(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_memo", map[string]any{"content": ""})
	if !r.IsError || resultText(r) != "content is empty" {
		t.Errorf("result = %q, error = %v", resultText(r), r.IsError)
	}
}

func TestReadMemoMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_memo", map[string]any{"id": float64(42)})
	if !r.IsError {
		t.Error("expected error for missing memo")
	}
	r = callTool(t, srv, "read_memo", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestUpdateMemo_Conflict(t *testing.T) {
	srv, svc := testServer(t)
	m, err := svc.Create(context.Background(), "v1", "")
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "update_memo", map[string]any{"id": float64(m.ID), "content": "v2", "if_match": m.Checksum})
	if r.IsError {
		t.Fatalf("update: %s", resultText(r))
	}
	r = callTool(t, srv, "update_memo", map[string]any{"id": float64(m.ID), "content": "v3", "if_match": m.Checksum})
	if !r.IsError || !strings.Contains(resultText(r), "checksum mismatch") {
		t.Errorf("stale update = %q", resultText(r))
	}
}

func TestListAndSearchMemos(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	_, _ = svc.Create(ctx, "alpha #x", "")
	b, _ := svc.Create(ctx, "beta", "")
	if _, err := svc.SetRowStatus(ctx, b.ID, models.Archived); err != nil {
		t.Fatal(err)
	}

	if text := resultText(callTool(t, srv, "list_memos", map[string]any{})); text != "1: alpha #x" {
		t.Errorf("list = %q", text)
	}
	if text := resultText(callTool(t, srv, "list_memos", map[string]any{"archived": true})); text != "2: beta" {
		t.Errorf("archived list = %q", text)
	}
	if text := resultText(callTool(t, srv, "list_memos", map[string]any{"tag": "nope"})); text != "no memos found" {
		t.Errorf("empty list = %q", text)
	}

	var results []store.SearchResult
	r := callTool(t, srv, "search_memos", map[string]any{"query": "alpha"})
	if err := json.Unmarshal([]byte(resultText(r)), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestListMemos_Type(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, "look https://x.io/a.png", "")
	_, _ = svc.Create(ctx, fmt.Sprintf("see @[pic](%d)", a.ID), "")

	if text := resultText(callTool(t, srv, "list_memos", map[string]any{"type": "imaged"})); text != "1: look https://x.io/a.png" {
		t.Errorf("imaged list = %q", text)
	}
	if text := resultText(callTool(t, srv, "list_memos", map[string]any{"type": "CONNECTED"})); text != "2: see pic" {
		t.Errorf("connected list = %q", text)
	}
	r := callTool(t, srv, "list_memos", map[string]any{"type": "video"})
	if !r.IsError || !strings.HasPrefix(resultText(r), "invalid input") {
		t.Errorf("unknown type = %q, error = %v", resultText(r), r.IsError)
	}
}

func TestGetLinks(t *testing.T) {
	srv, svc := testServer(t)
	ctx := context.Background()
	target, _ := svc.Create(ctx, "target", "")
	_, _ = svc.Create(ctx, "links to @[t](1) and @[gone](99)", "")

	r := callTool(t, srv, "get_links", map[string]any{"id": float64(target.ID)})
	var g linkgraph.Graph
	if err := json.Unmarshal([]byte(resultText(r)), &g); err != nil {
		t.Fatal(err)
	}
	if len(g.Forward) != 0 || len(g.Backward) != 1 || g.Backward[0].ID != 2 {
		t.Errorf("graph = %+v", g)
	}

	r = callTool(t, srv, "get_links", map[string]any{"id": float64(2)})
	g = linkgraph.Graph{}
	_ = json.Unmarshal([]byte(resultText(r)), &g)
	if len(g.Forward) != 1 || g.Forward[0].ID != target.ID {
		t.Errorf("forward = %+v", g.Forward)
	}
}

func TestContentFormat(t *testing.T) {
	srv, _ := testServer(t)
	if text := resultText(callTool(t, srv, "get_content_format", nil)); text != ContentFormat {
		t.Error("tool does not return the content format")
	}

	contents, err := srv.readContentFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != contentFormatURI || tc.Text != ContentFormat {
		t.Errorf("resource = %+v", contents[0])
	}
}
