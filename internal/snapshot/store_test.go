package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleSnapshot(key string) *IssueSnapshot {
	return &IssueSnapshot{
		Key:  key,
		Type: "Story",
		Fields: map[string]any{
			FieldSummary: "Checkout flow",
			FieldStatus:  "In Progress",
			FieldCreated: "2025-01-02T10:00:00Z",
		},
		Links: []Link{{LinkType: "blocks", TargetKey: "PROJ-9", Direction: "outward"}},
		ChangeLog: []ChangeEntry{
			{Field: "status", From: "Open", To: "In Progress", Timestamp: time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)},
		},
		FetchedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func storeBackends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sqlStore, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	return map[string]Store{"file": fileStore, "sqlite": sqlStore}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Read(ctx, "PROJ-1")
			require.ErrorIs(t, err, ErrNotExist)

			require.NoError(t, store.Write(ctx, sampleSnapshot("PROJ-1")))

			got, err := store.Read(ctx, "PROJ-1")
			require.NoError(t, err)
			require.Equal(t, "Story", got.Type)
			require.Equal(t, "In Progress", got.Status())
			require.Len(t, got.Links, 1)
			require.Len(t, got.ChangeLog, 1)
			require.True(t, got.FetchedAt.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
			require.NoError(t, got.Validate())

			mod, err := store.Stat(ctx, "PROJ-1")
			require.NoError(t, err)
			require.False(t, mod.IsZero())
		})
	}
}

func TestStore_WriteReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			first := sampleSnapshot("PROJ-2")
			require.NoError(t, store.Write(ctx, first))

			second := sampleSnapshot("PROJ-2")
			second.Links = nil
			second.Fields[FieldStatus] = "Done"
			require.NoError(t, store.Write(ctx, second))

			got, err := store.Read(ctx, "PROJ-2")
			require.NoError(t, err)
			require.Equal(t, "Done", got.Status())
			require.Empty(t, got.Links)

			keys, err := store.Keys(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"PROJ-2"}, keys)
		})
	}
}

func TestStore_RejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", "../etc/passwd", "proj-1", "PROJ", "PROJ-1/2"} {
				_, err := store.Read(ctx, key)
				require.ErrorIs(t, err, ErrBadKey, "key %q", key)
			}
		})
	}
}

func TestFileStore_CorruptRecordIsInvalid(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PROJ-3.json"), []byte("{not json"), 0644))

	_, err = store.Read(context.Background(), "PROJ-3")
	require.True(t, errors.Is(err, ErrInvalid))
}

func TestIssueSnapshot_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *IssueSnapshot)
		valid  bool
	}{
		{"complete", func(s *IssueSnapshot) {}, true},
		{"missing type", func(s *IssueSnapshot) { s.Type = "" }, false},
		{"missing fields", func(s *IssueSnapshot) { s.Fields = nil }, false},
		{"zero fetch time", func(s *IssueSnapshot) { s.FetchedAt = time.Time{} }, false},
		{"malformed created", func(s *IssueSnapshot) { s.Fields[FieldCreated] = "yesterday" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleSnapshot("PROJ-4")
			tt.mutate(s)
			err := s.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestIssueSnapshot_Accessors(t *testing.T) {
	s := sampleSnapshot("CORE-17")
	s.Fields[FieldStoryPoints] = 5.0
	s.Fields[FieldFixVersions] = []any{"PI27", "PI28"}

	if got := s.ProjectKey(); got != "CORE" {
		t.Errorf("expected project CORE, got %s", got)
	}
	if pts, ok := s.FloatField(FieldStoryPoints); !ok || pts != 5 {
		t.Errorf("expected 5 story points, got %v (%v)", pts, ok)
	}
	if v := s.StringsField(FieldFixVersions); len(v) != 2 || v[1] != "PI28" {
		t.Errorf("unexpected fix versions %v", v)
	}
	if _, ok := s.Updated(); ok {
		t.Error("expected no updated timestamp")
	}
}
