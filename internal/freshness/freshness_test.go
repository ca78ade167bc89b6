package freshness

import (
	"context"
	"errors"
	"testing"
	"time"

	"epicscope/internal/snapshot"
)

func validSnapshot(fetched time.Time) *snapshot.IssueSnapshot {
	return &snapshot.IssueSnapshot{
		Key:       "PROJ-1",
		Type:      "Story",
		Fields:    map[string]any{snapshot.FieldCreated: "2025-01-01T00:00:00Z"},
		FetchedAt: fetched,
	}
}

func TestNeedsFetch_DecisionTable(t *testing.T) {
	T := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	invalid := validSnapshot(T)
	invalid.Type = ""

	tests := []struct {
		name   string
		local  *snapshot.IssueSnapshot
		remote time.Time
		mode   Mode
		want   bool
	}{
		{"absent, check", nil, T, CheckStale, true},
		{"remote older", validSnapshot(T), T.Add(-time.Second), CheckStale, false},
		{"remote newer", validSnapshot(T), T.Add(time.Second), CheckStale, true},
		{"equal timestamps", validSnapshot(T), T, CheckStale, false},
		{"invalid local", invalid, T.Add(-time.Hour), CheckStale, true},
		{"force with fresh local", validSnapshot(T), T.Add(-time.Hour), Force, true},
		{"force absent", nil, time.Time{}, Force, true},
		{"skip with stale local", validSnapshot(T), T.Add(time.Hour), Skip, false},
		{"skip absent", nil, T, Skip, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsFetch(tt.local, tt.remote, tt.mode); got != tt.want {
				t.Errorf("NeedsFetch() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeClock struct {
	at    time.Time
	err   error
	calls int
}

func (f *fakeClock) FetchLastUpdated(_ context.Context, _ string) (time.Time, error) {
	f.calls++
	return f.at, f.err
}

func TestChecker_FailsOpenOnRemoteError(t *testing.T) {
	T := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{err: errors.New("connection reset")}
	d := NewChecker(clock).Decide(context.Background(), "PROJ-1", validSnapshot(T), CheckStale)

	if !d.Fetch {
		t.Fatal("expected refetch when remote metadata is unavailable")
	}
	if d.Warning == nil {
		t.Fatal("expected a stale data warning")
	}
	if !errors.Is(d.Warning, clock.err) {
		t.Errorf("warning should wrap the transport error, got %v", d.Warning)
	}
}

func TestChecker_AsksRemoteOnlyWhenNeeded(t *testing.T) {
	T := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{at: T.Add(-time.Hour)}
	c := NewChecker(clock)
	ctx := context.Background()

	if d := c.Decide(ctx, "PROJ-1", nil, CheckStale); !d.Fetch {
		t.Error("absent snapshot must be fetched")
	}
	if d := c.Decide(ctx, "PROJ-1", validSnapshot(T), Force); !d.Fetch {
		t.Error("force must fetch")
	}
	if d := c.Decide(ctx, "PROJ-1", nil, Skip); d.Fetch {
		t.Error("skip must not fetch")
	}
	if clock.calls != 0 {
		t.Errorf("expected no remote calls so far, got %d", clock.calls)
	}

	if d := c.Decide(ctx, "PROJ-1", validSnapshot(T), CheckStale); d.Fetch {
		t.Errorf("up-to-date snapshot should not be fetched (%s)", d.Reason)
	}
	if clock.calls != 1 {
		t.Errorf("expected 1 remote call, got %d", clock.calls)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"force": Force, "SKIP": Skip, "check": CheckStale, "true": Force, "false": Skip} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
