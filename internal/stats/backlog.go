package stats

import (
	"context"
	"sort"
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/eventlog"
	"epicscope/internal/hierarchy"
)

// BacklogPoint is the backlog state at the end of one day.
type BacklogPoint struct {
	Date        time.Time `json:"date"`
	Added       int       `json:"added"`
	Completed   int       `json:"completed"`
	BacklogSize int       `json:"backlogSize"`
}

// Day formats the point's date as YYYY-MM-DD.
func (p BacklogPoint) Day() string { return p.Date.Format(time.DateOnly) }

// BacklogItem is the lifecycle of one story as the series sees it.
type BacklogItem struct {
	Key         string     `json:"key"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Reopens     int        `json:"reopens,omitempty"`
}

// BacklogResult is the payload of the backlog evolution analyzer.
// A story counts as completed at its first completion only; later reopens are counted in ReopenCount.
type BacklogResult struct {
	Series        []BacklogPoint `json:"series"`
	Items         []BacklogItem  `json:"items"`
	Open          int            `json:"open"`
	ReopenCount   int            `json:"reopenCount"`
	Undated       []string       `json:"undated,omitempty"`
	FirstAdded    *time.Time     `json:"firstAdded,omitempty"`
	LastCompleted *time.Time     `json:"lastCompleted,omitempty"`
}

func (*BacklogResult) Kind() analysis.Kind { return analysis.KindBacklog }

// SizeAt counts the items created on or before day d and not completed by then.
func (r *BacklogResult) SizeAt(d time.Time, loc *time.Location) int {
	day := dayOf(d, loc)
	size := 0
	for _, it := range r.Items {
		if dayOf(it.CreatedAt, loc).After(day) {
			continue
		}
		if it.CompletedAt != nil && !dayOf(*it.CompletedAt, loc).After(day) {
			continue
		}
		size++
	}
	return size
}

// BacklogEvolutionAnalyzer reconstructs the daily added/completed/open series of the story backlog.
type BacklogEvolutionAnalyzer struct {
	opts Options
}

func NewBacklogEvolutionAnalyzer(opts Options) *BacklogEvolutionAnalyzer {
	return &BacklogEvolutionAnalyzer{opts: opts}
}

func (a *BacklogEvolutionAnalyzer) Name() string { return string(analysis.KindBacklog) }

func (a *BacklogEvolutionAnalyzer) Analyze(ctx context.Context, in analysis.Input) (analysis.Payload, error) {
	loc := a.opts.location()
	res := &BacklogResult{}
	added := map[time.Time]int{}
	completed := map[time.Time]int{}

	for _, n := range resolvedNodes(in.Tree) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !a.opts.StoryTypes.Has(n.Type()) {
			continue
		}
		item, ok := a.item(n, in.Timelines.Get(n.Key))
		if !ok {
			res.Undated = append(res.Undated, n.Key)
			continue
		}
		res.Items = append(res.Items, item)
		res.ReopenCount += item.Reopens

		added[dayOf(item.CreatedAt, loc)]++
		if item.CompletedAt != nil {
			completed[dayOf(*item.CompletedAt, loc)]++
			if res.LastCompleted == nil || item.CompletedAt.After(*res.LastCompleted) {
				c := *item.CompletedAt
				res.LastCompleted = &c
			}
		} else {
			res.Open++
		}
		if res.FirstAdded == nil || item.CreatedAt.Before(*res.FirstAdded) {
			c := item.CreatedAt
			res.FirstAdded = &c
		}
	}

	days := make([]time.Time, 0, len(added)+len(completed))
	for d := range added {
		days = append(days, d)
	}
	for d := range completed {
		if _, dup := added[d]; !dup {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	size := 0
	for _, d := range days {
		size += added[d] - completed[d]
		res.Series = append(res.Series, BacklogPoint{
			Date:        d,
			Added:       added[d],
			Completed:   completed[d],
			BacklogSize: size,
		})
	}
	return res, nil
}

// item derives created and first-completed times. Without a created date the first transition
// stands in; without either the story is undated.
func (a *BacklogEvolutionAnalyzer) item(n *hierarchy.Node, tl *eventlog.Timeline) (BacklogItem, bool) {
	it := BacklogItem{Key: n.Key}
	created, ok := n.Snapshot.Created()
	if !ok {
		if len(tl.Transitions) == 0 {
			return it, false
		}
		created = tl.Transitions[0].Timestamp
	}
	it.CreatedAt = created

	if done, ok := a.opts.completion(tl); ok {
		if done.Before(created) {
			done = created
		}
		it.CompletedAt = &done
	}
	it.Reopens = a.reopens(tl)
	return it, true
}

// reopens counts moves from a completed status back to an open one.
func (a *BacklogEvolutionAnalyzer) reopens(tl *eventlog.Timeline) int {
	count := 0
	for i := 1; i < len(tl.Intervals); i++ {
		if a.opts.CompletedStatuses.Has(tl.Intervals[i-1].Status) && !a.opts.CompletedStatuses.Has(tl.Intervals[i].Status) {
			count++
		}
	}
	return count
}

// FillDaily expands a sparse series into one point per day from the first point through to,
// carrying the backlog size over days without events.
func FillDaily(series []BacklogPoint, to time.Time, loc *time.Location) []BacklogPoint {
	if len(series) == 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	end := dayOf(to, loc)
	if last := series[len(series)-1].Date; last.After(end) {
		end = last
	}
	out := make([]BacklogPoint, 0, len(series))
	i := 0
	size := 0
	for d := series[0].Date; !d.After(end); d = d.AddDate(0, 0, 1) {
		if i < len(series) && series[i].Date.Equal(d) {
			size = series[i].BacklogSize
			out = append(out, series[i])
			i++
			continue
		}
		out = append(out, BacklogPoint{Date: d, BacklogSize: size})
	}
	return out
}
