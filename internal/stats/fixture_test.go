package stats

import (
	"testing"
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/eventlog"
	"epicscope/internal/hierarchy"
	"epicscope/internal/snapshot"
)

var day0 = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day0.AddDate(0, 0, n) }

type issueFixture struct {
	key, typ string
	created  time.Time
	fields   map[string]any
	links    []string
	changes  []snapshot.ChangeEntry
}

func status(at time.Time, from, to string) snapshot.ChangeEntry {
	return snapshot.ChangeEntry{Field: "status", From: from, To: to, Timestamp: at, Author: "alice"}
}

func change(field string, at time.Time, from, to string) snapshot.ChangeEntry {
	return snapshot.ChangeEntry{Field: field, From: from, To: to, Timestamp: at, Author: "bob"}
}

// buildInput assembles a tree from fixtures (the first one is the root) and derives its timelines.
func buildInput(t *testing.T, now time.Time, fixtures ...issueFixture) analysis.Input {
	t.Helper()
	snaps := make(map[string]*snapshot.IssueSnapshot, len(fixtures))
	for _, s := range fixtures {
		fields := map[string]any{
			snapshot.FieldCreated: s.created.Format(time.RFC3339),
			snapshot.FieldSummary: s.key,
		}
		for k, v := range s.fields {
			fields[k] = v
		}
		snap := &snapshot.IssueSnapshot{
			Key:       s.key,
			Type:      s.typ,
			Fields:    fields,
			ChangeLog: s.changes,
			FetchedAt: now,
		}
		rel := "issue_in_epic"
		if s.typ != "Epic" {
			rel = "subtask"
		}
		for _, target := range s.links {
			snap.Links = append(snap.Links, snapshot.Link{LinkType: rel, TargetKey: target, Direction: "outward"})
		}
		if err := snap.Validate(); err != nil {
			t.Fatalf("fixture %s: %v", s.key, err)
		}
		snaps[s.key] = snap
	}
	tree := hierarchy.FromSnapshots(fixtures[0].key, snaps, hierarchy.DefaultTaxonomy())
	return analysis.Input{
		Tree:      tree,
		Timelines: eventlog.Build(tree, eventlog.DefaultFieldMap()),
		Now:       now,
	}
}
