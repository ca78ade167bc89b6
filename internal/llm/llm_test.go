package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"epicscope/internal/hierarchy"
	"epicscope/internal/snapshot"
	"epicscope/internal/stats"
)

func sampleTree() *hierarchy.Tree {
	mk := func(key, typ, summary string, children ...string) *snapshot.IssueSnapshot {
		s := &snapshot.IssueSnapshot{
			Key:       key,
			Type:      typ,
			Fields:    map[string]any{snapshot.FieldCreated: "2025-01-01T00:00:00Z", snapshot.FieldSummary: summary, snapshot.FieldStatus: "Open"},
			FetchedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		}
		for _, c := range children {
			s.Links = append(s.Links, snapshot.Link{LinkType: "realized_by", TargetKey: c, Direction: "outward"})
		}
		return s
	}
	snaps := map[string]*snapshot.IssueSnapshot{
		"BE-1": mk("BE-1", "Business Epic", "Payments", "EP-1", "EP-2"),
		"EP-1": mk("EP-1", "Epic", "Card flow", "ST-1"),
		"EP-2": mk("EP-2", "Epic", "Invoices"),
		"ST-1": mk("ST-1", "Story", "Checkout"),
	}
	return hierarchy.FromSnapshots("BE-1", snaps, hierarchy.DefaultTaxonomy())
}

func TestNewExcerpt(t *testing.T) {
	tree := sampleTree()
	ex := NewExcerpt(tree, nil, 3)

	if ex.EpicKey != "BE-1" || ex.Title != "Payments" {
		t.Errorf("unexpected header: %s %q", ex.EpicKey, ex.Title)
	}
	if len(ex.Nodes) != 3 || ex.Omitted != 1 {
		t.Fatalf("expected 3 nodes and 1 omitted, got %d/%d", len(ex.Nodes), ex.Omitted)
	}
	if ex.Nodes[1].Key != "EP-1" || ex.Nodes[1].Parent != "BE-1" || ex.Nodes[1].Depth != 1 {
		t.Errorf("unexpected node: %+v", ex.Nodes[1])
	}
	if ex.Nodes[0].Parent != "" {
		t.Errorf("root must not have a parent: %+v", ex.Nodes[0])
	}

	full := NewExcerpt(tree, nil, 0)
	if len(full.Nodes) != 4 || full.Omitted != 0 {
		t.Errorf("limit 0 must keep all nodes, got %d", len(full.Nodes))
	}
}

func TestExcerptHash(t *testing.T) {
	tree := sampleTree()
	a := NewExcerpt(tree, nil, 0)
	b := NewExcerpt(tree, nil, 0)
	if a.Hash() != b.Hash() {
		t.Error("equal excerpts must hash equally")
	}
	c := NewExcerpt(tree, []stats.CreepRecord{{Key: "ST-1", Field: "targetDate", Delta: 14, Unit: stats.UnitDays}}, 0)
	if a.Hash() == c.Hash() {
		t.Error("creep records must change the hash")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		err  error
	}{
		{"Plain", `{"a":1}`, `{"a":1}`, nil},
		{"Fenced", "Here you go:\n```json\n{\"a\":1}\n```\nThanks", `{"a":1}`, nil},
		{"Prose", `The result is {"a":{"b":2}} as requested.`, `{"a":{"b":2}}`, nil},
		{"None", "no json here", "", ErrNoJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeQualitative(t *testing.T) {
	schema, err := qualitativeSchema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}

	q, err := decodeQualitative(schema, `{"title":"Payments","summary":"s","goals":["g"],"risks":[],"confidence":"high"}`)
	if err != nil {
		t.Fatalf("valid output rejected: %v", err)
	}
	if q.Title != "Payments" || len(q.Goals) != 1 {
		t.Errorf("unexpected decode: %+v", q)
	}

	if _, err := decodeQualitative(schema, `{"title":"Payments","goals":["g"],"risks":[]}`); !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("missing summary must be rejected, got %v", err)
	}
	if _, err := decodeQualitative(schema, `{"title":1,"summary":"s","goals":[],"risks":[]}`); !errors.Is(err, ErrInvalidOutput) {
		t.Errorf("wrong type must be rejected, got %v", err)
	}
}

type countingSummarizer struct {
	calls int
	err   error
}

func (c *countingSummarizer) Summarize(_ context.Context, ex Excerpt) (*Qualitative, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &Qualitative{Title: ex.Title, Summary: "cached", Goals: []string{}, Risks: []string{}}, nil
}

func TestCachedSummarizer(t *testing.T) {
	dir := t.TempDir()
	next := &countingSummarizer{}
	c := NewCachedSummarizer(next, dir)
	tree := sampleTree()
	ex := NewExcerpt(tree, nil, 0)

	for range 2 {
		q, err := c.Summarize(context.Background(), ex)
		if err != nil {
			t.Fatalf("Summarize: %v", err)
		}
		if q.Title != "Payments" {
			t.Errorf("unexpected title %q", q.Title)
		}
	}
	if next.calls != 1 {
		t.Errorf("unchanged excerpt must hit the cache, got %d calls", next.calls)
	}

	changed := NewExcerpt(tree, nil, 2)
	if _, err := c.Summarize(context.Background(), changed); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("changed excerpt must miss the cache, got %d calls", next.calls)
	}

	failing := NewCachedSummarizer(&countingSummarizer{err: errors.New("boom")}, t.TempDir())
	if _, err := failing.Summarize(context.Background(), ex); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestUsageLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "usage.jsonl")
	l := NewUsageLog(path)
	for _, total := range []int64{10, 20} {
		if err := l.Record(Usage{Task: "summary", Epic: "BE-1", TotalTokens: total}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var u Usage
	if err := json.Unmarshal([]byte(lines[1]), &u); err != nil || u.TotalTokens != 20 {
		t.Errorf("unexpected line %q: %v", lines[1], err)
	}

	var nilLog *UsageLog
	if err := nilLog.Record(Usage{}); err != nil {
		t.Errorf("nil log must discard: %v", err)
	}
}

func TestOpenAI_Summarize(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		content := "```json\n{\"title\":\"Payments\",\"summary\":\"Card and invoice flows.\",\"goals\":[\"Checkout\"],\"risks\":[\"Invoices not started\"]}\n```"
		answer, _ := json.Marshal(content)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":0,"model":"test-model",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` + string(answer) + `}}],` +
			`"usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150}}`))
	}))
	defer srv.Close()

	usagePath := filepath.Join(t.TempDir(), "usage.jsonl")
	o, err := NewOpenAI(Config{APIKey: "k", BaseURL: srv.URL + "/", Model: "test-model", Timeout: 5 * time.Second, UsageLogPath: usagePath})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	q, err := o.Summarize(context.Background(), NewExcerpt(sampleTree(), nil, 0))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if q.Title != "Payments" || len(q.Risks) != 1 {
		t.Errorf("unexpected result: %+v", q)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("request model = %v", gotBody["model"])
	}
	if msgs, _ := gotBody["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected system and user message, got %v", gotBody["messages"])
	}

	data, err := os.ReadFile(usagePath)
	if err != nil || !strings.Contains(string(data), `"total_tokens":150`) {
		t.Errorf("usage not recorded: %s %v", data, err)
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRenderUser(t *testing.T) {
	p, err := LoadPrompts()
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	out, err := p.Summary.RenderUser(NewExcerpt(sampleTree(), nil, 2))
	if err != nil {
		t.Fatalf("RenderUser: %v", err)
	}
	if !strings.Contains(out, "Epic BE-1 (Payments), 2 issues shown, 2 omitted.") {
		t.Errorf("unexpected header in %q", out)
	}
	if !strings.Contains(out, `"key": "EP-1"`) {
		t.Errorf("excerpt body missing: %q", out)
	}
}
