// Package engine generates synthetic epic hierarchies for local runs without a tracker.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"epicscope/internal/snapshot"
)

type GeneratorConfig struct {
	Scenario     string // "mild", "chaos" or "drift"
	Distribution string // "uniform" or "weibull"
	Prefix       string
	Count        int
	Teams        []string
	Seed         uint64
	Now          time.Time
}

const (
	statusOpen     = "Open"
	statusProgress = "In Progress"
	statusReview   = "In Review"
	statusTest     = "In Test"
	statusDone     = "Done"
)

// Generate returns the epic snapshot followed by its children. Keys are <Prefix>-1 for the
// epic and <Prefix>-2.. for the children.
func Generate(cfg GeneratorConfig) []*snapshot.IssueSnapshot {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "MOCK"
	}
	if len(cfg.Teams) == 0 {
		cfg.Teams = []string{"Falcon", "Otter"}
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	now := cfg.Now.UTC().Truncate(time.Minute)

	// One story arrives roughly every other day; the epic opens a week before the first.
	epicCreated := now.AddDate(0, 0, -2*cfg.Count-7)
	epicKey := fmt.Sprintf("%s-1", cfg.Prefix)
	epic := newSnapshot(epicKey, "Epic", "Synthetic "+cfg.Scenario+" epic", epicCreated, now)
	epic.Fields[snapshot.FieldFixVersions] = []string{}

	var children []*snapshot.IssueSnapshot
	var firstStart time.Time
	for i := 0; i < cfg.Count; i++ {
		key := fmt.Sprintf("%s-%d", cfg.Prefix, i+2)
		typ := "Story"
		if rng.Float64() < 0.15 {
			typ = "Bug"
		}
		created := epicCreated.Add(time.Duration(7*24+i*48) * time.Hour)
		child := newSnapshot(key, typ, fmt.Sprintf("%s %d", typ, i+1), created, now)
		child.Fields["team"] = cfg.Teams[i%len(cfg.Teams)]
		child.Fields[snapshot.FieldStoryPoints] = float64([]int{1, 2, 3, 5, 8}[rng.IntN(5)])

		start := created.Add(time.Duration(24+rng.IntN(96)) * time.Hour)
		days := sampleDuration(cfg, rng, i)
		status := walk(child, rng, cfg.Scenario, start, days, now)
		child.Fields[snapshot.FieldStatus] = status

		if start.Before(now) && (firstStart.IsZero() || start.Before(firstStart)) {
			firstStart = start
		}
		epic.Links = append(epic.Links, snapshot.Link{LinkType: "issue_in_epic", TargetKey: key, Direction: "outward"})
		children = append(children, child)
	}

	epicStatus := statusOpen
	if !firstStart.IsZero() {
		epicStatus = statusProgress
		epic.ChangeLog = append(epic.ChangeLog, change("status", firstStart, statusOpen, statusProgress))
	}
	epic.Fields[snapshot.FieldStatus] = epicStatus
	shiftSchedule(epic, rng, cfg.Scenario, epicCreated, now)
	slices.SortStableFunc(epic.ChangeLog, func(a, b snapshot.ChangeEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return append([]*snapshot.IssueSnapshot{epic}, children...)
}

// Save writes every snapshot to the store.
func Save(ctx context.Context, store snapshot.Store, snaps []*snapshot.IssueSnapshot) error {
	for _, s := range snaps {
		if err := store.Write(ctx, s); err != nil {
			return fmt.Errorf("write %s: %w", s.Key, err)
		}
	}
	return nil
}

func newSnapshot(key, typ, summary string, created, fetched time.Time) *snapshot.IssueSnapshot {
	return &snapshot.IssueSnapshot{
		Key:  key,
		Type: typ,
		Fields: map[string]any{
			snapshot.FieldSummary: summary,
			snapshot.FieldCreated: created.Format(time.RFC3339),
			snapshot.FieldUpdated: fetched.Format(time.RFC3339),
			snapshot.FieldProject: snapshot.ProjectOf(key),
		},
		Links:     []snapshot.Link{},
		FetchedAt: fetched,
	}
}

func change(field string, at time.Time, from, to string) snapshot.ChangeEntry {
	return snapshot.ChangeEntry{Field: field, From: from, To: to, Timestamp: at, Author: "mockgen"}
}

// sampleDuration returns the number of days a child spends between start and done.
func sampleDuration(cfg GeneratorConfig, rng *rand.Rand, i int) float64 {
	k, lambda := 2.5, 9.5
	switch cfg.Scenario {
	case "chaos":
		k = 0.8
		if cfg.Distribution == "weibull" {
			lambda = 12.0
		}
	case "drift":
		ratio := float64(i) / float64(max(cfg.Count, 1))
		k = 2.5 - 1.7*ratio
		lambda = 9.5 + 2.5*ratio
	}

	if cfg.Distribution == "weibull" {
		return weibullSample(rng, k, lambda)
	}
	d := 6.0 + rng.Float64()*5.0
	if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
		d += 10 + rng.Float64()*15
	}
	if cfg.Scenario == "drift" && i > cfg.Count/2 {
		d *= 2.0
	}
	return d
}

// walk appends the status transitions that happened before now and returns the current status.
func walk(s *snapshot.IssueSnapshot, rng *rand.Rand, scenario string, start time.Time, days float64, now time.Time) string {
	steps := []struct {
		to    string
		share float64
	}{
		{statusProgress, 0},
		{statusReview, 0.60},
		{statusTest, 0.85},
		{statusDone, 1},
	}
	total := time.Duration(days * 24 * float64(time.Hour))
	current := statusOpen
	for _, st := range steps {
		at := start.Add(time.Duration(st.share * float64(total)))
		if !at.Before(now) {
			return current
		}
		s.ChangeLog = append(s.ChangeLog, change("status", at, current, st.to))
		current = st.to
	}

	if scenario == "chaos" && rng.Float64() < 0.15 {
		done := start.Add(total)
		reopened := done.Add(24 * time.Hour)
		if reopened.Before(now) {
			s.ChangeLog = append(s.ChangeLog, change("status", reopened, statusDone, statusProgress))
			current = statusProgress
			redone := reopened.Add(48 * time.Hour)
			if redone.Before(now) {
				s.ChangeLog = append(s.ChangeLog, change("status", redone, statusProgress, statusDone))
				current = statusDone
			}
		}
	}
	return current
}

// shiftSchedule gives the epic a fix version and target date history whose slippage depends on the scenario.
func shiftSchedule(epic *snapshot.IssueSnapshot, rng *rand.Rand, scenario string, created, now time.Time) {
	shifts := 0
	switch scenario {
	case "drift":
		shifts = 2
	case "chaos":
		shifts = 1 + rng.IntN(3)
	}

	span := now.Sub(created)
	target := created.AddDate(0, 3, 0)
	pi := 27
	version := fmt.Sprintf("PI %d", pi)
	at := created.Add(time.Hour)
	epic.ChangeLog = append(epic.ChangeLog,
		change("Fix Version", at, "", version),
		change("Target end", at, "", target.Format(time.DateOnly)),
	)

	for i := 1; i <= shifts; i++ {
		at = created.Add(span * time.Duration(i) / time.Duration(shifts+1))
		nextVersion := fmt.Sprintf("PI %d", pi+i)
		nextTarget := target.AddDate(0, 0, 14*i)
		epic.ChangeLog = append(epic.ChangeLog,
			change("Fix Version", at, version, nextVersion),
			change("Target end", at, target.AddDate(0, 0, 14*(i-1)).Format(time.DateOnly), nextTarget.Format(time.DateOnly)),
		)
		version = nextVersion
	}

	epic.Fields[snapshot.FieldFixVersions] = []string{version}
	epic.Fields[snapshot.FieldTargetEnd] = target.AddDate(0, 0, 14*shifts).Format(time.DateOnly)
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}
