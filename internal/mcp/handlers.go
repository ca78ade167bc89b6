package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"epicscope/internal/freshness"
	"epicscope/internal/hierarchy"
	"epicscope/internal/pipeline"
	"epicscope/internal/stats"
	"epicscope/internal/summary"
)

type analyzeEpicInput struct {
	EpicKey string `json:"epic_key" jsonschema:"root issue key of the epic, e.g. BE-123"`
	Mode    string `json:"mode,omitempty" jsonschema:"fetch policy: check (default), force or skip"`
	Write   bool   `json:"write,omitempty" jsonschema:"also write the report files to the report directory"`
}

type hierarchyInput struct {
	EpicKey string `json:"epic_key" jsonschema:"root issue key of the epic"`
	Mode    string `json:"mode,omitempty" jsonschema:"fetch policy: check (default), force or skip"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of nodes in breadth-first order, 0 for all"`
}

type backlogInput struct {
	EpicKey string `json:"epic_key" jsonschema:"root issue key of the epic"`
	Mode    string `json:"mode,omitempty" jsonschema:"fetch policy: check (default), force or skip"`
	Dense   bool   `json:"dense,omitempty" jsonschema:"one point per day instead of event days only"`
}

func (s *Server) handleAnalyzeEpic(ctx context.Context, _ *mcp.CallToolRequest, in analyzeEpicInput) (*mcp.CallToolResult, any, error) {
	rep, err := s.run(ctx, in.EpicKey, in.Mode)
	if err != nil {
		return nil, nil, err
	}
	resp := Response{Data: rep.Document, Warnings: documentWarnings(rep.Document)}
	if in.Write {
		paths, err := rep.Write(s.reportDir, s.charts)
		if err != nil {
			resp.Warnings = append(resp.Warnings, "report files incomplete: "+err.Error())
		}
		for _, p := range paths {
			resp.Warnings = append(resp.Warnings, "written: "+p)
		}
	}
	return textResult(resp)
}

func (s *Server) handleEpicHierarchy(ctx context.Context, _ *mcp.CallToolRequest, in hierarchyInput) (*mcp.CallToolResult, any, error) {
	key, mode, err := parseArgs(in.EpicKey, in.Mode)
	if err != nil {
		return nil, nil, err
	}
	tree, err := s.pipeline.Trees.Build(ctx, key, mode)
	if err != nil {
		return nil, nil, err
	}

	data := map[string]any{
		"root":      tree.Nested(in.Limit),
		"nodes":     tree.Len(),
		"related":   tree.Related(),
		"anomalies": tree.Anomalies(),
	}
	var warnings []string
	if in.Limit > 0 && tree.Len() > in.Limit {
		warnings = append(warnings, fmt.Sprintf("tree truncated to %d of %d nodes", in.Limit, tree.Len()))
	}
	warnings = append(warnings, anomalyWarnings(tree)...)
	return textResult(Response{Data: data, Warnings: warnings})
}

func (s *Server) handleBacklogSeries(ctx context.Context, _ *mcp.CallToolRequest, in backlogInput) (*mcp.CallToolResult, any, error) {
	rep, err := s.run(ctx, in.EpicKey, in.Mode)
	if err != nil {
		return nil, nil, err
	}
	sec, _ := rep.Document.Section("backlog")
	if sec.Status != summary.StatusOK {
		return nil, nil, fmt.Errorf("backlog analysis %s: %s", sec.Status, sec.Error)
	}
	if in.Dense {
		rep.Backlog = stats.FillDaily(rep.Backlog, time.Now(), rep.Location)
	}
	return textResult(Response{Data: rep.BacklogRows(), Warnings: anomalyWarnings(rep.Tree)})
}

func (s *Server) run(ctx context.Context, rawKey, rawMode string) (*pipeline.Report, error) {
	key, mode, err := parseArgs(rawKey, rawMode)
	if err != nil {
		return nil, err
	}
	log.Info().Str("epic", key).Str("mode", mode.String()).Msg("Tool call")
	return s.pipeline.Run(ctx, key, mode)
}

func parseArgs(rawKey, rawMode string) (string, freshness.Mode, error) {
	key := strings.ToUpper(strings.TrimSpace(rawKey))
	if key == "" {
		return "", 0, fmt.Errorf("epic_key is required")
	}
	mode, err := freshness.ParseMode(rawMode)
	if err != nil {
		return "", 0, err
	}
	return key, mode, nil
}

func documentWarnings(doc *summary.Document) []string {
	var out []string
	for _, s := range doc.Holes() {
		out = append(out, fmt.Sprintf("section %s is %s: %s", s.Name, s.Status, s.Error))
	}
	for _, a := range doc.Provenance().Anomalies {
		out = append(out, anomalyText(a))
	}
	return out
}

func anomalyWarnings(tree *hierarchy.Tree) []string {
	var out []string
	for _, a := range tree.Anomalies() {
		out = append(out, anomalyText(a))
	}
	return out
}

func anomalyText(a hierarchy.Anomaly) string {
	msg := fmt.Sprintf("%s at %s", a.Kind, a.Key)
	if a.Target != "" {
		msg += " -> " + a.Target
	}
	if a.Detail != "" {
		msg += ": " + a.Detail
	}
	return msg
}
