package stats

import (
	"context"
	"sort"
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/eventlog"
)

// RecentWindow bounds the recent-activity count of the dynamics analyzer.
const RecentWindow = 28 * 24 * time.Hour

// Contributor is an author with the number of tracked changes they made.
type Contributor struct {
	Name    string `json:"name"`
	Changes int    `json:"changes"`
}

// DynamicsResult is the payload of the dynamics analyzer.
type DynamicsResult struct {
	ByField         map[string]int `json:"byField"`
	TotalEvents     int            `json:"totalEvents"`
	RecentEvents    int            `json:"recentEvents"`
	LastActivity    *time.Time     `json:"lastActivity,omitempty"`
	TopContributors []Contributor  `json:"topContributors"`
	FlagEvents      int            `json:"flagEvents"`
	// LateAdditions counts issues created after the epic first entered a coding status.
	LateAdditions []string `json:"lateAdditions,omitempty"`
}

func (*DynamicsResult) Kind() analysis.Kind { return analysis.KindDynamics }

// DynamicsAnalyzer summarizes who changed what and how recently. It is opt-in.
type DynamicsAnalyzer struct {
	opts Options
}

func NewDynamicsAnalyzer(opts Options) *DynamicsAnalyzer {
	return &DynamicsAnalyzer{opts: opts}
}

func (a *DynamicsAnalyzer) Name() string { return string(analysis.KindDynamics) }

func (a *DynamicsAnalyzer) Analyze(ctx context.Context, in analysis.Input) (analysis.Payload, error) {
	res := &DynamicsResult{ByField: map[string]int{}, TopContributors: []Contributor{}}
	authors := map[string]int{}
	since := in.Now.Add(-RecentWindow)

	root := in.Tree.Root()
	kickoff, started := in.Timelines.Get(root.Key).FirstEntry(a.opts.CodingStatuses)

	for _, n := range resolvedNodes(in.Tree) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, e := range in.Timelines.Get(n.Key).Transitions {
			res.TotalEvents++
			res.ByField[e.Field]++
			if e.Author != "" {
				authors[e.Author]++
			}
			if e.Field == eventlog.FieldFlagged {
				res.FlagEvents++
			}
			if !e.Timestamp.Before(since) {
				res.RecentEvents++
			}
			if res.LastActivity == nil || e.Timestamp.After(*res.LastActivity) {
				ts := e.Timestamp
				res.LastActivity = &ts
			}
		}
		if started && n.ID != root.ID {
			if created, ok := n.Snapshot.Created(); ok && created.After(kickoff) {
				res.LateAdditions = append(res.LateAdditions, n.Key)
			}
		}
	}

	for name, c := range authors {
		res.TopContributors = append(res.TopContributors, Contributor{Name: name, Changes: c})
	}
	sort.Slice(res.TopContributors, func(i, j int) bool {
		ci, cj := res.TopContributors[i], res.TopContributors[j]
		if ci.Changes != cj.Changes {
			return ci.Changes > cj.Changes
		}
		return ci.Name < cj.Name
	})
	if len(res.TopContributors) > 3 {
		res.TopContributors = res.TopContributors[:3]
	}
	return res, nil
}
