package stats

import (
	"context"
	"sort"
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/hierarchy"
)

// IssueDuration is the status residency of one issue.
type IssueDuration struct {
	Key           string           `json:"key"`
	Type          string           `json:"type"`
	Team          string           `json:"team"`
	CurrentStatus string           `json:"currentStatus,omitempty"`
	StatusSeconds map[string]int64 `json:"statusSeconds"`
	CodingDays    float64          `json:"codingDays"`
	NoActivity    bool             `json:"noActivity,omitempty"`
}

// GroupDuration aggregates IssueDurations of one type or team.
type GroupDuration struct {
	Issues           int                `json:"issues"`
	NoActivity       int                `json:"noActivity"`
	CodingDaysTotal  float64            `json:"codingDaysTotal"`
	CodingDaysMedian float64            `json:"codingDaysMedian"`
	StatusDays       map[string]float64 `json:"statusDays"`

	coding []float64
}

// CodingWindow spans from the first story entering a coding status to the last story completion.
// End is nil while any story is still open.
type CodingWindow struct {
	Start           *time.Time `json:"start,omitempty"`
	End             *time.Time `json:"end,omitempty"`
	Days            float64    `json:"days"`
	Stories         int        `json:"stories"`
	FinishedStories int        `json:"finishedStories"`
}

// StatusResult is the payload of the status duration analyzer.
type StatusResult struct {
	Issues       []IssueDuration           `json:"issues"`
	ByType       map[string]*GroupDuration `json:"byType"`
	ByTeam       map[string]*GroupDuration `json:"byTeam"`
	Epic         *IssueDuration            `json:"epic,omitempty"`
	CodingWindow CodingWindow              `json:"codingWindow"`
}

func (*StatusResult) Kind() analysis.Kind { return analysis.KindStatus }

// StatusDurationAnalyzer measures time in status, coding time and aggregates by type and team.
type StatusDurationAnalyzer struct {
	opts Options
}

func NewStatusDurationAnalyzer(opts Options) *StatusDurationAnalyzer {
	return &StatusDurationAnalyzer{opts: opts}
}

func (a *StatusDurationAnalyzer) Name() string { return string(analysis.KindStatus) }

func (a *StatusDurationAnalyzer) Analyze(ctx context.Context, in analysis.Input) (analysis.Payload, error) {
	res := &StatusResult{
		ByType: make(map[string]*GroupDuration),
		ByTeam: make(map[string]*GroupDuration),
	}

	for _, n := range resolvedNodes(in.Tree) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := a.issueDuration(n, in)
		res.Issues = append(res.Issues, d)
		addToGroup(res.ByType, d.Type, d)
		addToGroup(res.ByTeam, d.Team, d)
		if n.ID == in.Tree.Root().ID {
			epic := d
			res.Epic = &epic
		}
	}
	for _, groups := range []map[string]*GroupDuration{res.ByType, res.ByTeam} {
		for _, g := range groups {
			g.CodingDaysTotal = round2(g.CodingDaysTotal)
			g.CodingDaysMedian = round2(Median(g.coding))
			for s, v := range g.StatusDays {
				g.StatusDays[s] = round2(v)
			}
		}
	}
	res.CodingWindow = a.codingWindow(in)
	return res, nil
}

func (a *StatusDurationAnalyzer) issueDuration(n *hierarchy.Node, in analysis.Input) IssueDuration {
	tl := in.Timelines.Get(n.Key)
	d := IssueDuration{
		Key:           n.Key,
		Type:          n.Type(),
		Team:          a.opts.team(n),
		CurrentStatus: tl.CurrentStatus(),
		StatusSeconds: make(map[string]int64),
	}
	if d.CurrentStatus == "" {
		d.CurrentStatus = n.Snapshot.Status()
	}
	if len(tl.Intervals) == 0 {
		d.NoActivity = true
		return d
	}

	var coding time.Duration
	for _, iv := range tl.Intervals {
		dur := iv.Duration(in.Now)
		d.StatusSeconds[iv.Status] += int64(dur / time.Second)
		if a.opts.CodingStatuses.Has(iv.Status) {
			coding += dur
		}
	}
	d.CodingDays = round2(Days(coding))
	return d
}

func addToGroup(groups map[string]*GroupDuration, key string, d IssueDuration) {
	g, ok := groups[key]
	if !ok {
		g = &GroupDuration{StatusDays: make(map[string]float64)}
		groups[key] = g
	}
	g.Issues++
	if d.NoActivity {
		g.NoActivity++
		return
	}
	g.CodingDaysTotal += d.CodingDays
	g.coding = append(g.coding, d.CodingDays)
	for s, secs := range d.StatusSeconds {
		g.StatusDays[s] += Days(time.Duration(secs) * time.Second)
	}
}

func (a *StatusDurationAnalyzer) codingWindow(in analysis.Input) CodingWindow {
	var w CodingWindow
	var starts, ends []time.Time
	for _, n := range resolvedNodes(in.Tree) {
		if !a.opts.StoryTypes.Has(n.Type()) {
			continue
		}
		w.Stories++
		tl := in.Timelines.Get(n.Key)
		if s, ok := tl.FirstEntry(a.opts.CodingStatuses); ok {
			starts = append(starts, s)
		}
		if e, ok := a.opts.completion(tl); ok {
			w.FinishedStories++
			ends = append(ends, e)
		}
	}
	if len(starts) == 0 {
		return w
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	start := starts[0]
	w.Start = &start

	end := in.Now
	if w.FinishedStories == w.Stories && len(ends) > 0 {
		sort.Slice(ends, func(i, j int) bool { return ends[i].Before(ends[j]) })
		last := ends[len(ends)-1]
		w.End = &last
		end = last
	}
	if end.After(start) {
		w.Days = round1(Days(end.Sub(start)))
	}
	return w
}
