// Package report prints a short human-readable digest of a summary document.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"epicscope/internal/llm"
	"epicscope/internal/simulation"
	"epicscope/internal/stats"
	"epicscope/internal/summary"
)

// Write renders doc to w. now anchors relative times.
func Write(w io.Writer, doc *summary.Document, now time.Time) error {
	p := &printer{w: w}
	meta := doc.Provenance()

	p.line("Epic %s  (run %s, mode %s)", meta.EpicKey, meta.RunID, meta.Mode)
	if meta.OldestSource != nil && meta.NewestSource != nil {
		p.line("  data fetched %s to %s, %s snapshots",
			humanize.RelTime(*meta.OldestSource, now, "ago", "from now"),
			humanize.RelTime(*meta.NewestSource, now, "ago", "from now"),
			humanize.Comma(int64(len(meta.SourceTimes))))
	}
	if len(meta.Unresolved) > 0 {
		p.line("  unresolved: %s", strings.Join(meta.Unresolved, ", "))
	}
	if len(meta.Anomalies) > 0 {
		p.line("  %s structural %s", humanize.Comma(int64(len(meta.Anomalies))), plural(len(meta.Anomalies), "anomaly", "anomalies"))
	}

	for _, s := range doc.Sections() {
		p.line("")
		if s.Status != summary.StatusOK {
			reason := s.Error
			if reason == "" {
				reason = "no content"
			}
			p.line("[%s] %s: %s", s.Name, s.Status, reason)
			continue
		}
		p.line("[%s]", s.Name)
		switch d := s.Data.(type) {
		case *llm.Qualitative:
			p.qualitative(d)
		case *stats.ScopeResult:
			p.scope(d)
		case *stats.StatusResult:
			p.status(d, now)
		case *stats.BacklogResult:
			p.backlog(d, now)
		case *stats.TimeCreepResult:
			p.timeCreep(d)
		case *stats.DynamicsResult:
			p.dynamics(d, now)
		case *simulation.ForecastResult:
			p.forecast(d)
		default:
			p.line("  (%T)", d)
		}
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) qualitative(q *llm.Qualitative) {
	p.line("  %s", q.Title)
	p.line("  %s", q.Summary)
	for _, r := range q.Risks {
		p.line("  risk: %s", r)
	}
}

func (p *printer) scope(r *stats.ScopeResult) {
	p.line("  %s issues (%d epics, %d stories, %d bugs), %s story points",
		humanize.Comma(int64(r.Total)), r.Epics, r.Stories, r.Bugs, humanize.Ftoa(r.StoryPoints))
	p.line("  size %s, complexity %s across %d projects, depth %d", r.Size, r.Complexity, len(r.ByProject), r.MaxDepth)
	if r.Attention {
		p.line("  needs attention: large scope over many projects")
	}
}

func (p *printer) status(r *stats.StatusResult, now time.Time) {
	if r.Epic != nil {
		p.line("  epic in %q, %s coding days", r.Epic.CurrentStatus, humanize.Ftoa(r.Epic.CodingDays))
	}
	w := r.CodingWindow
	if w.Start != nil {
		end := "still running"
		if w.End != nil {
			end = "ended " + humanize.RelTime(*w.End, now, "ago", "from now")
		}
		p.line("  coding started %s, %s (%s days), %d/%d stories done",
			humanize.RelTime(*w.Start, now, "ago", "from now"), end, humanize.Ftoa(w.Days), w.FinishedStories, w.Stories)
	}
}

func (p *printer) backlog(r *stats.BacklogResult, now time.Time) {
	p.line("  %d open of %d stories, %d reopens", r.Open, len(r.Items), r.ReopenCount)
	if r.LastCompleted != nil {
		p.line("  last completion %s", humanize.RelTime(*r.LastCompleted, now, "ago", "from now"))
	}
	if len(r.Undated) > 0 {
		p.line("  undated: %s", strings.Join(r.Undated, ", "))
	}
}

func (p *printer) timeCreep(r *stats.TimeCreepResult) {
	if len(r.Records) == 0 {
		p.line("  no target date or version changes")
		return
	}
	for _, rec := range r.Records {
		p.line("  %s %s: %s -> %s (%+g %s, %d changes)", rec.Key, rec.Field, rec.FirstValue, rec.LastValue, rec.Delta, rec.Unit, rec.TransitionCount)
	}
}

func (p *printer) dynamics(r *stats.DynamicsResult, now time.Time) {
	p.line("  %s changes, %s in the last 4 weeks", humanize.Comma(int64(r.TotalEvents)), humanize.Comma(int64(r.RecentEvents)))
	if r.LastActivity != nil {
		p.line("  last activity %s", humanize.RelTime(*r.LastActivity, now, "ago", "from now"))
	}
	for _, c := range r.TopContributors {
		p.line("  %s: %d", c.Name, c.Changes)
	}
}

func (p *printer) forecast(r *simulation.ForecastResult) {
	if r.Remaining == 0 {
		p.line("  nothing left open")
		return
	}
	p.line("  %d open stories at %s per day (last %d days)", r.Remaining, humanize.Ftoa(r.Throughput), r.WindowDays)
	p.line("  done by %s (50%%), %s (85%%), %s (95%%)", r.Dates["p50"], r.Dates["p85"], r.Dates["p95"])
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
