// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Munchie collection tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/munchie/internal/apperr"
	"github.com/starford/munchie/internal/collectionservice"
)

const contractURI = "munchie://library-format"

// Server wraps the MCP server with Munchie tools.
type Server struct {
	mcp *server.MCPServer
	svc *collectionservice.Service
}

// New creates a new MCP server with all Munchie tools registered.
func New(svc *collectionservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Munchie",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List every collection with its model ids."),
	), s.listCollections)

	s.mcp.AddTool(mcp.NewTool("get_collection",
		mcp.WithDescription("Read one collection by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Collection id")),
	), s.getCollection)

	s.mcp.AddTool(mcp.NewTool("create_collection",
		mcp.WithDescription("Create a manual collection. Member models become hidden "+
			"from the main library view once the background reconcile runs."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("description", mcp.Description("Optional description")),
		mcp.WithArray("modelIds", mcp.WithStringItems(), mcp.Description("Model ids to include")),
	), s.createCollection)

	s.mcp.AddTool(mcp.NewTool("scan_folders",
		mcp.WithDescription("Derive collections from the folder tree and merge them into the store. "+
			"Read the library contract via get_library_contract for strategy semantics."),
		mcp.WithString("path", mcp.Description("Folder to scan, relative to the models directory (empty for all)")),
		mcp.WithString("strategy", mcp.Description("smart, strict or top-level"), mcp.Enum("smart", "strict", "top-level")),
		mcp.WithBoolean("clearPrevious", mcp.Description("Drop previously auto-imported collections first")),
	), s.scanFolders)

	s.mcp.AddTool(mcp.NewTool("reconcile_hidden",
		mcp.WithDescription("Align every model's hidden flag with collection membership and report the changes."),
	), s.reconcileHidden)

	s.mcp.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List indexed models, optionally filtered by tag."),
		mcp.WithString("tag", mcp.Description("Tag filter (case-insensitive)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 100)")),
	), s.listModels)

	s.mcp.AddTool(mcp.NewTool("get_library_contract",
		mcp.WithDescription("Returns the sidecar naming and folder scan contract."),
	), s.getLibraryContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Library Contract",
			mcp.WithResourceDescription("How model sidecars and folder collections are laid out."),
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

// jsonResult renders v as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError renders err for the model; tool failures are results, not protocol errors.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %v", err))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cols, err := s.svc.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(cols)
}

func (s *Server) getCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c)
}

func (s *Server) createCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Create(ctx, collectionservice.CreateInput{
		Name:        name,
		Description: req.GetString("description", ""),
		ModelIDs:    req.GetStringSlice("modelIds", nil),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(c)
}

func (s *Server) scanFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scan := collectionservice.ScanRequest{
		Path:     req.GetString("path", ""),
		Strategy: req.GetString("strategy", ""),
	}
	if _, ok := req.GetArguments()["clearPrevious"]; ok {
		clearPrevious := req.GetBool("clearPrevious", false)
		scan.ClearPrevious = &clearPrevious
	}
	res, err := s.svc.Scan(ctx, scan)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"strategy":    res.Strategy,
		"candidates":  len(res.Candidates),
		"tagged":      res.Tagged,
		"errors":      res.Errors,
		"collections": len(res.Collections),
		"created":     res.Candidates,
	})
}

func (s *Server) reconcileHidden(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.ReconcileHidden(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(report)
}

func (s *Server) listModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListModels(ctx, req.GetInt("limit", 0), 0, req.GetString("tag", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"models": items, "total": total})
}

func (s *Server) getLibraryContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LibraryContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     LibraryContract,
		},
	}, nil
}
