package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"epicscope/internal/analysis"
	"epicscope/internal/eventlog"
	"epicscope/internal/freshness"
	"epicscope/internal/hierarchy"
	"epicscope/internal/pipeline"
	"epicscope/internal/snapshot"
	"epicscope/internal/stats"
)

type staticTrees struct {
	snaps map[string]*snapshot.IssueSnapshot
}

func (s staticTrees) Build(ctx context.Context, rootKey string, _ freshness.Mode) (*hierarchy.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hierarchy.FromSnapshots(rootKey, s.snaps, hierarchy.DefaultTaxonomy()), nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	created := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	mk := func(key, typ string, links ...string) *snapshot.IssueSnapshot {
		s := &snapshot.IssueSnapshot{
			Key:       key,
			Type:      typ,
			Fields:    map[string]any{snapshot.FieldCreated: created.Format(time.RFC3339)},
			FetchedAt: created,
		}
		for _, l := range links {
			s.Links = append(s.Links, snapshot.Link{LinkType: "issue_in_epic", TargetKey: l})
		}
		return s
	}
	snaps := map[string]*snapshot.IssueSnapshot{
		"E-1": mk("E-1", "Epic", "S-1", "S-2", "S-9"),
		"S-1": mk("S-1", "Story"),
		"S-2": mk("S-2", "Story"),
	}

	opts := stats.DefaultOptions()
	reg := analysis.NewRegistry()
	_ = reg.Register(stats.NewScopeAnalyzer(opts))
	_ = reg.Register(stats.NewBacklogEvolutionAnalyzer(opts))

	p := &pipeline.Pipeline{
		Trees:    staticTrees{snaps: snaps},
		Registry: reg,
		Fields:   eventlog.DefaultFieldMap(),
		Location: time.UTC,
		Now:      func() time.Time { return created.AddDate(0, 0, 3) },
	}
	return NewServer(p, t.TempDir(), false, "test")
}

func decodeResponse(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("expected one content block, got %+v", res)
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return out
}

func TestHandleAnalyzeEpic(t *testing.T) {
	s := testServer(t)
	res, _, err := s.handleAnalyzeEpic(context.Background(), nil, analyzeEpicInput{EpicKey: " e-1 ", Write: true})
	if err != nil {
		t.Fatalf("handleAnalyzeEpic: %v", err)
	}
	out := decodeResponse(t, res)

	data := out["data"].(map[string]any)
	sections := data["sections"].(map[string]any)
	for _, name := range []string{"qualitative", "scope", "backlog"} {
		if _, ok := sections[name]; !ok {
			t.Errorf("section %s missing", name)
		}
	}

	warnings, _ := out["warnings"].([]any)
	var sawQualitative, sawWritten bool
	for _, w := range warnings {
		switch s := w.(string); {
		case len(s) > 19 && s[:19] == "section qualitative":
			sawQualitative = true
		case len(s) > 8 && s[:8] == "written:":
			sawWritten = true
		}
	}
	if !sawQualitative || !sawWritten {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestHandleEpicHierarchy(t *testing.T) {
	s := testServer(t)
	res, _, err := s.handleEpicHierarchy(context.Background(), nil, hierarchyInput{EpicKey: "E-1", Limit: 2})
	if err != nil {
		t.Fatalf("handleEpicHierarchy: %v", err)
	}
	out := decodeResponse(t, res)
	data := out["data"].(map[string]any)
	if data["nodes"].(float64) != 4 {
		t.Errorf("nodes = %v", data["nodes"])
	}
	root := data["root"].(map[string]any)
	if children, _ := root["children"].([]any); len(children) != 1 {
		t.Errorf("limit 2 must keep one child, got %v", root["children"])
	}
	if len(out["warnings"].([]any)) == 0 {
		t.Error("expected truncation and unresolved warnings")
	}
}

func TestHandleBacklogSeries(t *testing.T) {
	s := testServer(t)
	res, _, err := s.handleBacklogSeries(context.Background(), nil, backlogInput{EpicKey: "E-1"})
	if err != nil {
		t.Fatalf("handleBacklogSeries: %v", err)
	}
	rows := decodeResponse(t, res)["data"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected one event day, got %v", rows)
	}
	row := rows[0].(map[string]any)
	if row["date"] != "2025-01-06" || row["added"].(float64) != 2 || row["backlogSize"].(float64) != 2 {
		t.Errorf("unexpected row %v", row)
	}
}

func TestParseArgs(t *testing.T) {
	if _, _, err := parseArgs("  ", ""); err == nil {
		t.Error("empty key must be rejected")
	}
	if _, _, err := parseArgs("E-1", "sometimes"); err == nil {
		t.Error("unknown mode must be rejected")
	}
	key, mode, err := parseArgs("be-7", "force")
	if err != nil || key != "BE-7" || mode != freshness.Force {
		t.Errorf("parseArgs = %s, %v, %v", key, mode, err)
	}
}
