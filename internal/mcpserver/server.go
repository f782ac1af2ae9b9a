// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note catalog as read-only tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/query"
)

const hierarchyURI = "tagshelf://tag-hierarchy"

// Server wraps the MCP server with catalog tools.
type Server struct {
	mcp *server.MCPServer
	svc *query.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *query.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tagshelf",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_folder_structure",
		mcp.WithDescription("Return the whole tag folder tree as JSON: name, path, children, "+
			"files and totalUniqueFiles for every folder."),
	), s.getFolderStructure)

	s.mcp.AddTool(mcp.NewTool("list_folder_files",
		mcp.WithDescription("List the notes reachable from a folder, sorted by title, one page at a time."),
		mcp.WithString("path", mcp.Required(), mcp.Description(`Folder path, e.g. "Work/Projects"; "" is the root`)),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default from server config)")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated leaf tags; keeps notes carrying any of them")),
	), s.listFolderFiles)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note: metadata plus its HTML, with attachment links rewritten."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Note key, e.g. \"Trip.html\"")),
		mcp.WithBoolean("raw", mcp.Description("Return the untouched original markup instead")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List every note key in key order, one page at a time."),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default from server config)")),
	), s.listFiles)

	s.mcp.AddResource(
		mcp.NewResource(hierarchyURI, "Tag Hierarchy",
			mcp.WithResourceDescription("How note tags map to folders and bundles."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readHierarchyResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func pageArgs(req mcp.CallToolRequest) (page, limit int) {
	if v, err := req.RequireInt("page"); err == nil {
		page = v
	}
	if v, err := req.RequireInt("limit"); err == nil {
		limit = v
	}
	return page, limit
}

func (s *Server) getFolderStructure(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := s.svc.FolderStructure(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(root)
}

func (s *Server) listFolderFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var tags []string
	if t, err := req.RequireString("tags"); err == nil && t != "" {
		tags = strings.Split(t, ",")
	}
	page, limit := pageArgs(req)

	res, err := s.svc.FilesForFolder(ctx, path, page, limit, tags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.FileContent(ctx, file)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", file)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, _ := req.RequireBool("raw")
	body := note.Content
	if raw {
		body = note.RawHTML
	}
	return jsonResult(map[string]any{
		"file":             note.File,
		"metadata":         note.Metadata,
		"hasAttachments":   note.HasAttachments,
		"imageAttachments": note.ImageAttachments,
		"content":          body,
	})
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, limit := pageArgs(req)
	res, err := s.svc.ListFiles(ctx, page, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) readHierarchyResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      hierarchyURI,
			MIMEType: "text/markdown",
			Text:     HierarchyGuide,
		},
	}, nil
}
