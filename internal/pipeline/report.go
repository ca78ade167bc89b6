package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"epicscope/internal/hierarchy"
	"epicscope/internal/stats"
	"epicscope/internal/summary"
	"epicscope/internal/visuals"
)

// Report is everything one run produced.
type Report struct {
	EpicKey  string
	Tree     *hierarchy.Tree
	Document *summary.Document
	// Backlog is the sparse series, nil when the backlog analyzer failed.
	Backlog  []stats.BacklogPoint
	Status   *stats.StatusResult
	Location *time.Location
}

// BacklogRow is one point of the backlog series as written to disk.
type BacklogRow struct {
	Date        string `json:"date"`
	Added       int    `json:"added"`
	Completed   int    `json:"completed"`
	BacklogSize int    `json:"backlogSize"`
}

// BacklogRows is the series in its file form.
func (r *Report) BacklogRows() []BacklogRow {
	rows := make([]BacklogRow, 0, len(r.Backlog))
	for _, p := range r.Backlog {
		rows = append(rows, BacklogRow{Date: p.Day(), Added: p.Added, Completed: p.Completed, BacklogSize: p.BacklogSize})
	}
	return rows
}

// Write stores the summary, the backlog series and, with charts, the Mermaid diagrams in dir.
// It returns the written paths.
func (r *Report) Write(dir string, charts bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	var written []string
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, r.EpicKey+"_"+name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	doc, err := json.MarshalIndent(r.Document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	if err := write("summary.json", doc); err != nil {
		return written, err
	}

	backlog, err := json.MarshalIndent(r.BacklogRows(), "", "  ")
	if err != nil {
		return written, fmt.Errorf("encode backlog: %w", err)
	}
	if err := write("backlog.json", backlog); err != nil {
		return written, err
	}

	if !charts {
		return written, nil
	}
	if err := write("tree.mmd", []byte(visuals.GenerateHierarchyChart(r.Tree)+"\n")); err != nil {
		return written, err
	}
	if chart := visuals.GenerateBacklogChart(stats.FillDaily(r.Backlog, time.Now(), r.Location)); chart != "" {
		if err := write("backlog.mmd", []byte(chart+"\n")); err != nil {
			return written, err
		}
	}
	if chart := visuals.GenerateCodingTimeChart(r.Status); chart != "" {
		if err := write("coding_time.mmd", []byte(chart+"\n")); err != nil {
			return written, err
		}
	}
	return written, nil
}
