// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the dddot panel for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/host"
	"github.com/starford/dddot/internal/noteservice"
	"github.com/starford/dddot/internal/panel"
)

const contractURI = "dddot://message-contract"

// Server wraps the MCP server with the dddot tools. It reads section
// contents from an in-process panel mounted on the host.
type Server struct {
	mcp   *server.MCPServer
	host  *host.Host
	panel *panel.Panel
	notes *noteservice.Service
}

// New creates a new MCP server with all dddot tools registered.
func New(h *host.Host, p *panel.Panel, notes *noteservice.Service) *Server {
	s := &Server{host: h, panel: p, notes: notes}

	s.mcp = server.NewMCPServer(
		"dddot",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_sections",
		mcp.WithDescription("List the panel sections in display order."),
	), s.listSections)

	s.mcp.AddTool(mcp.NewTool("get_section",
		mcp.WithDescription("Return the links currently shown in a panel section "+
			"(recentnotes, shortcuts or backlinks)."),
		mcp.WithString("section", mcp.Required(), mcp.Description("Section key")),
	), s.getSection)

	s.mcp.AddTool(mcp.NewTool("select_note",
		mcp.WithDescription("Select a note, as clicking it in the panel does. "+
			"Updates recent notes and backlinks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.selectNote)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_message_contract",
		mcp.WithDescription("Returns the messages the panel and the host exchange."),
	), s.getMessageContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Panel Message Contract",
			mcp.WithResourceDescription("Messages exchanged between the dddot panel and the host."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func (s *Server) listSections(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var keys []string
	for _, d := range s.panel.Sections() {
		keys = append(keys, fmt.Sprintf("%s\t%s", d.Key, d.Title))
	}
	return mcp.NewToolResultText(strings.Join(keys, "\n")), nil
}

type sectionLink struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	IsTodo bool   `json:"isTodo,omitempty"`
	Done   bool   `json:"done,omitempty"`
}

func (s *Server) getSection(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.host.Tool(key); errors.Is(err, apperr.ErrUnknownTool) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown section: %s", key)), nil
	}
	views, err := s.panel.Links(key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]sectionLink, 0, len(views))
	for _, v := range views {
		out = append(out, sectionLink{ID: v.ID, Title: v.Title, Type: string(v.Kind), IsTodo: v.IsTodo, Done: v.IsTodoCompleted})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) selectNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.notes.SelectNote(ctx, path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("select %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("selected: %s", path)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.notes.OpenNoteDetail(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(detail.Content), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.notes.Backlinks(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	paths := make([]string, len(notes))
	for i, n := range notes {
		paths[i] = n.ID
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getMessageContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MessageContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     MessageContract,
		},
	}, nil
}
