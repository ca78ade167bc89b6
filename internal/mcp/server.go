// Package mcp exposes the epic analysis as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"epicscope/internal/pipeline"
)

// Server holds the state for the MCP server.
type Server struct {
	pipeline  *pipeline.Pipeline
	reportDir string
	charts    bool
	version   string
}

// NewServer creates a new MCP server around a wired pipeline.
func NewServer(p *pipeline.Pipeline, reportDir string, charts bool, version string) *Server {
	return &Server{pipeline: p, reportDir: reportDir, charts: charts, version: version}
}

// Serve registers the tools and blocks until the client disconnects or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{Name: "epicscope", Version: s.version}, nil)
	s.register(server)
	log.Info().Str("version", s.version).Msg("MCP server listening on stdio")
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "analyze_epic",
		Description: "Run the full analysis for a business epic: hierarchy, status durations, scope, backlog evolution, time creep and the qualitative summary. " +
			"Sections that could not be computed are marked failed, missing or absent with their reason; never fill them in yourself.",
	}, s.handleAnalyzeEpic)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "epic_hierarchy",
		Description: "Return the issue tree below an epic with related (non-hierarchical) links and structural anomalies such as cycles and unresolved issues.",
	}, s.handleEpicHierarchy)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "backlog_series",
		Description: "Return the daily backlog of story-type issues (added, completed, open) below an epic. Use 'dense' for one point per day.",
	}, s.handleBacklogSeries)
}

// Response is the envelope of every tool result.
type Response struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

func textResult(resp Response) (*mcp.CallToolResult, any, error) {
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(out)}}}, nil, nil
}
