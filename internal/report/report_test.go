package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/llm"
	"epicscope/internal/simulation"
	"epicscope/internal/stats"
	"epicscope/internal/summary"
)

func TestWrite(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	fetched := now.Add(-3 * 24 * time.Hour)
	meta := summary.Provenance{
		EpicKey:      "BE-1",
		RunID:        "run-1",
		Mode:         "check",
		SourceTimes:  map[string]time.Time{"BE-1": fetched},
		OldestSource: &fetched,
		NewestSource: &fetched,
		Unresolved:   []string{"EP-9"},
	}
	results := map[string]analysis.Result{
		"scope":   {Analyzer: "scope", Kind: analysis.KindScope, OK: true, Payload: &stats.ScopeResult{Total: 1200, Stories: 3, Size: stats.SizeSmall, Complexity: stats.ComplexityLow}},
		"backlog": analysis.Failed("backlog", "timeout"),
		"time_creep": {Analyzer: "time_creep", Kind: analysis.KindTimeCreep, OK: true, Payload: &stats.TimeCreepResult{
			Records: []stats.CreepRecord{{Key: "ST-1", Field: "targetDate", FirstValue: "2025-03-31", LastValue: "2025-04-15", Delta: 15, Unit: stats.UnitDays, TransitionCount: 2}},
		}},
		"forecast": {Analyzer: "forecast", Kind: analysis.KindForecast, OK: true, Payload: &simulation.ForecastResult{
			Remaining: 4, WindowDays: 56, Throughput: 0.5,
			Dates: map[string]string{"p50": "2025-03-18", "p85": "2025-03-24", "p95": "2025-03-30"},
		}},
	}
	doc := summary.Merge(meta, []string{"scope", "backlog", "time_creep", "forecast"}, results, &llm.Qualitative{Title: "Payments", Summary: "Cards."}, nil)

	var buf bytes.Buffer
	if err := Write(&buf, doc, now); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Epic BE-1  (run run-1, mode check)",
		"3 days ago",
		"unresolved: EP-9",
		"[qualitative]",
		"Payments",
		"1,200 issues",
		"[backlog] failed: timeout",
		"ST-1 targetDate: 2025-03-31 -> 2025-04-15 (+15 days, 2 changes)",
		"4 open stories at 0.5 per day (last 56 days)",
		"done by 2025-03-18 (50%), 2025-03-24 (85%), 2025-03-30 (95%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
