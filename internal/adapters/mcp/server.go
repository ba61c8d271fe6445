// Package mcp exposes graph validation and rendering to MCP clients, so an
// agent can check a workflow draft before submitting it to the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arcnem/agentgraph/internal/presentation/mermaid"
	"github.com/arcnem/agentgraph/pkg/graph"
	"github.com/arcnem/agentgraph/pkg/ports"
)

// ValidateResponse is the structured result of the validate_graph tool.
type ValidateResponse struct {
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	Entity string `json:"entity,omitempty"`
}

// Server wraps the validator and catalogs as an MCP server.
type Server struct {
	catalogs  ports.CatalogSource
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server.
func NewServer(catalogs ports.CatalogSource, version string) *Server {
	s := &Server{
		catalogs:  catalogs,
		mcpServer: server.NewMCPServer("agentgraph-mcp", version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	validateTool := mcp.NewTool("validate_graph",
		mcp.WithDescription("Validate a candidate workflow graph against the current model and tool catalogs. Returns the first violated rule, if any."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithString("description", mcp.Description("Workflow description (optional)")),
		mcp.WithString("graph", mcp.Required(), mcp.Description("JSON object with entryNode, nodes, and edges")),
		mcp.WithOutputSchema[ValidateResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("render_graph",
		mcp.WithDescription("Render a valid workflow graph as a Mermaid flowchart."),
		mcp.WithString("graph", mcp.Required(), mcp.Description("JSON object with entryNode, nodes, and edges")),
	), s.handleRender)
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ValidateResponse, error) {
	_, _, err := s.normalize(ctx, args)
	if err != nil {
		var verr *graph.ValidationError
		if errors.As(err, &verr) {
			return ValidateResponse{Valid: false, Error: verr.Msg, Entity: verr.Entity}, nil
		}
		return ValidateResponse{}, err
	}
	return ValidateResponse{Valid: true}, nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	_, g, err := s.normalize(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(mermaid.Render(g)), nil
}

func (s *Server) normalize(ctx context.Context, args map[string]any) (graph.Fields, *graph.Graph, error) {
	rawGraph, _ := args["graph"].(string)
	var in graph.Input
	if err := json.Unmarshal([]byte(rawGraph), &in); err != nil {
		return graph.Fields{}, nil, fmt.Errorf("graph is not valid JSON: %w", err)
	}

	name, _ := args["name"].(string)
	if name == "" {
		// render_graph has no name argument; validation only needs it for
		// the metadata rules.
		name = "untitled"
	}
	description, _ := args["description"].(string)

	fields, err := graph.NormalizeFields(name, description, in.EntryNode)
	if err != nil {
		return graph.Fields{}, nil, err
	}
	cats, err := ports.LoadCatalogs(ctx, s.catalogs)
	if err != nil {
		return graph.Fields{}, nil, fmt.Errorf("loading catalogs: %w", err)
	}
	g, err := graph.Normalize(in, cats)
	if err != nil {
		return graph.Fields{}, nil, err
	}
	return fields, g, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("agentgraph://catalog", "Model and Tool Catalogs",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		cats, err := ports.LoadCatalogs(ctx, s.catalogs)
		if err != nil {
			return nil, fmt.Errorf("loading catalogs: %w", err)
		}
		payload, _ := json.Marshal(map[string]any{"models": cats.Models, "tools": cats.Tools})
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "agentgraph://catalog",
				MIMEType: "application/json",
				Text:     string(payload),
			},
		}, nil
	})
}
