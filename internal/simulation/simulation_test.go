package simulation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/eventlog"
	"epicscope/internal/hierarchy"
	"epicscope/internal/snapshot"
	"epicscope/internal/stats"

	"github.com/stretchr/testify/require"
)

var simNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(daysAgo int) *time.Time {
	t := simNow.AddDate(0, 0, -daysAgo)
	return &t
}

func TestNewHistogram_Window(t *testing.T) {
	items := []stats.BacklogItem{
		{Key: "S-1", CompletedAt: at(0)},
		{Key: "S-2", CompletedAt: at(0)},
		{Key: "S-3", CompletedAt: at(2)},
		{Key: "S-4", CompletedAt: at(10)},
		{Key: "S-5"},
	}
	h := NewHistogram(items, simNow, 7, time.UTC)

	require.Equal(t, []int{0, 0, 0, 0, 1, 0, 2}, h.Counts)
	require.Equal(t, 3, h.Total())
	require.InDelta(t, 3.0/7.0, h.Mean(), 1e-9)
}

func TestEngine_ConstantThroughput(t *testing.T) {
	h := &Histogram{Counts: []int{1, 1, 1}}
	res := NewEngine(h, 1).Run(5, 200)
	require.Equal(t, Result{P50: 5, P85: 5, P95: 5}, res)
}

func TestEngine_NoThroughput(t *testing.T) {
	h := &Histogram{Counts: []int{0, 0}}
	require.Equal(t, Result{}, NewEngine(h, 1).Run(5, 100))
}

func TestEngine_PercentilesOrdered(t *testing.T) {
	h := &Histogram{Counts: []int{0, 1, 0, 3, 0, 0, 2}}
	res := NewEngine(h, 99).Run(20, 2000)
	require.LessOrEqual(t, res.P50, res.P85)
	require.LessOrEqual(t, res.P85, res.P95)
	require.Greater(t, res.P50, 0)
}

func storySnap(key string, created time.Time, doneAt *time.Time) *snapshot.IssueSnapshot {
	s := &snapshot.IssueSnapshot{
		Key:  key,
		Type: "Story",
		Fields: map[string]any{
			snapshot.FieldCreated: created.Format(time.RFC3339),
			snapshot.FieldStatus:  "To Do",
		},
		FetchedAt: simNow,
	}
	if doneAt != nil {
		s.Fields[snapshot.FieldStatus] = "Done"
		s.ChangeLog = []snapshot.ChangeEntry{
			{Field: "status", From: "To Do", To: "In Progress", Timestamp: created.Add(time.Hour)},
			{Field: "status", From: "In Progress", To: "Done", Timestamp: *doneAt},
		}
	}
	return s
}

func forecastInput(t *testing.T, done []int, open int) analysis.Input {
	t.Helper()
	created := simNow.AddDate(0, 0, -40)
	epic := &snapshot.IssueSnapshot{
		Key:       "E-1",
		Type:      "Epic",
		Fields:    map[string]any{snapshot.FieldCreated: created.Format(time.RFC3339)},
		FetchedAt: simNow,
	}
	snaps := map[string]*snapshot.IssueSnapshot{"E-1": epic}
	n := 0
	add := func(doneAt *time.Time) {
		n++
		key := fmt.Sprintf("S-%d", n)
		snaps[key] = storySnap(key, created, doneAt)
		epic.Links = append(epic.Links, snapshot.Link{LinkType: "issue_in_epic", TargetKey: key})
	}
	for _, d := range done {
		add(at(d))
	}
	for i := 0; i < open; i++ {
		add(nil)
	}

	tree := hierarchy.FromSnapshots("E-1", snaps, hierarchy.DefaultTaxonomy())
	return analysis.Input{Tree: tree, Timelines: eventlog.Build(tree, eventlog.DefaultFieldMap()), Now: simNow}
}

func TestForecastAnalyzer(t *testing.T) {
	a := NewForecastAnalyzer(stats.DefaultOptions())
	a.Seed = 5
	a.Trials = 500

	payload, err := a.Analyze(context.Background(), forecastInput(t, []int{1, 3, 5, 7}, 2))
	require.NoError(t, err)
	res := payload.(*ForecastResult)

	require.Equal(t, 2, res.Remaining)
	require.Equal(t, 4, res.Delivered)
	require.Equal(t, DefaultWindowDays, res.WindowDays)
	require.InDelta(t, 0.07, res.Throughput, 1e-9)
	require.GreaterOrEqual(t, res.Days.P50, 1)
	require.LessOrEqual(t, res.Days.P50, res.Days.P95)
	require.Equal(t, simNow.AddDate(0, 0, res.Days.P50).Format(time.DateOnly), res.Dates["p50"])
}

func TestForecastAnalyzer_NothingOpen(t *testing.T) {
	a := NewForecastAnalyzer(stats.DefaultOptions())
	payload, err := a.Analyze(context.Background(), forecastInput(t, []int{2}, 0))
	require.NoError(t, err)
	res := payload.(*ForecastResult)
	require.Zero(t, res.Remaining)
	require.Empty(t, res.Dates)
}

func TestForecastAnalyzer_NoRecentThroughput(t *testing.T) {
	a := NewForecastAnalyzer(stats.DefaultOptions())
	_, err := a.Analyze(context.Background(), forecastInput(t, nil, 3))
	require.Error(t, err)
	require.Contains(t, err.Error(), "throughput unknown")
}
