package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/host"
	"github.com/starford/dddot/internal/panel"
	"github.com/starford/dddot/internal/settings"
	"github.com/starford/dddot/internal/testutil"
	"github.com/starford/dddot/internal/viewprop"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	env := testutil.NewEnv(t, map[string]string{
		"alpha.md":        "# Alpha\nSee [[beta]].\n",
		"beta.md":         "# Beta\nbody of beta\n",
		"folder/gamma.md": "# Gamma\n[[beta]]\n",
	})

	hostEnd, panelEnd := bridge.Pipe(16)
	h, err := host.New(hostEnd, settings.NewMemory(), env.Notes, host.Options{Logger: env.Logger})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })

	p := panel.New(panelEnd, viewprop.NewChannel(), panel.Options{Logger: env.Logger})
	t.Cleanup(func() { p.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Mount(ctx); err != nil {
		t.Fatal(err)
	}

	return New(h, p, env.Notes)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_sections":
		result, err = srv.listSections(ctx, req)
	case "get_section":
		result, err = srv.getSection(ctx, req)
	case "select_note":
		result, err = srv.selectNote(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "get_backlinks":
		result, err = srv.getBacklinks(ctx, req)
	case "get_message_contract":
		result, err = srv.getMessageContract(ctx, req)
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

func TestListSections(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "list_sections", nil)
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}
	lines := strings.Split(resultText(res), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 sections, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "recentnotes\t") {
		t.Errorf("first section = %q", lines[0])
	}
}

func TestSelectNote_UpdatesRecentNotes(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "select_note", map[string]interface{}{"path": "beta.md"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		res = callTool(t, srv, "get_section", map[string]interface{}{"section": "recentnotes"})
		if strings.Contains(resultText(res), `"title": "Beta"`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("recent notes never showed Beta: %s", resultText(res))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSelectNote_Unknown(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "select_note", map[string]interface{}{"path": "missing.md"})
	if !res.IsError {
		t.Fatal("expected error for unknown note")
	}
}

func TestGetSection_Unknown(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "get_section", map[string]interface{}{"section": "outline"})
	if !res.IsError {
		t.Fatal("expected error for unknown section")
	}
}

func TestGetSection_MissingParam(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "get_section", map[string]interface{}{})
	if !res.IsError {
		t.Fatal("expected error for missing section")
	}
}

func TestReadNote(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "read_note", map[string]interface{}{"path": "beta.md"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "body of beta") {
		t.Errorf("unexpected content: %s", resultText(res))
	}

	res = callTool(t, srv, "read_note", map[string]interface{}{"path": "nope.md"})
	if !res.IsError {
		t.Fatal("expected error for missing note")
	}
}

func TestGetBacklinks(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "beta.md"})
	text := resultText(res)
	if !strings.Contains(text, "alpha.md") || !strings.Contains(text, "folder/gamma.md") {
		t.Errorf("expected both backlinks, got: %s", text)
	}

	res = callTool(t, srv, "get_backlinks", map[string]interface{}{"path": "alpha.md"})
	if resultText(res) != "no backlinks found" {
		t.Errorf("expected no backlinks, got: %s", resultText(res))
	}
}

func TestMessageContract(t *testing.T) {
	srv := testServer(t)

	res := callTool(t, srv, "get_message_contract", nil)
	if !strings.Contains(resultText(res), "dddot.openNote") {
		t.Error("contract should describe dddot.openNote")
	}

	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != contractURI {
		t.Errorf("unexpected resource: %#v", contents[0])
	}
}
