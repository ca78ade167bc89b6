package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFailureLog_Record(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed_issues.log")
	fl := NewFailureLog(path)

	if err := fl.Record("PROJ-1", "fetch", "connection reset\nby peer"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := fl.Record("backlog", "analyze", "panic: index out of range"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	cols := strings.Split(lines[0], "\t")
	if len(cols) != 4 || cols[1] != "PROJ-1" || cols[2] != "fetch" || cols[3] != "connection reset by peer" {
		t.Errorf("unexpected line %q", lines[0])
	}
}

func TestFailureLog_NilIsNoop(t *testing.T) {
	var fl *FailureLog
	if err := fl.Record("PROJ-1", "fetch", "x"); err != nil {
		t.Errorf("nil failure log should be a no-op, got %v", err)
	}
}

func TestEnsureWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	if err := ensureWritable(dir); err != nil {
		t.Fatalf("ensureWritable: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Errorf("probe file left behind: %v", err)
	}
}
