package stats

import (
	"context"

	"epicscope/internal/analysis"
	"epicscope/internal/snapshot"
)

// Size classes by number of epics and stories.
const (
	SizeNone      = "none"
	SizeVerySmall = "very_small"
	SizeSmall     = "small"
	SizeNormal    = "normal"
	SizeLarge     = "large"
	SizeVeryLarge = "very_large"
)

// Complexity classes by number of distinct projects involved.
const (
	ComplexityNone     = "none"
	ComplexityIsolated = "isolated"
	ComplexityLow      = "low"
	ComplexityNormal   = "normal"
	ComplexityHigh     = "high"
)

// Bucket is a count with its share of the resolved total.
type Bucket struct {
	Count int     `json:"count"`
	Ratio float64 `json:"ratio"`
}

// ScopeResult is the payload of the scope analyzer.
type ScopeResult struct {
	Total          int               `json:"total"`
	Unresolved     int               `json:"unresolved"`
	ByType         map[string]Bucket `json:"byType"`
	ByProject      map[string]Bucket `json:"byProject"`
	ByTeam         map[string]Bucket `json:"byTeam"`
	Epics          int               `json:"epics"`
	Stories        int               `json:"stories"`
	Bugs           int               `json:"bugs"`
	StoryPoints    float64           `json:"storyPoints"`
	StoriesPerEpic float64           `json:"storiesPerEpic"`
	MaxDepth       int               `json:"maxDepth"`
	Size           string            `json:"size"`
	Complexity     string            `json:"complexity"`
	// Attention is set for large scopes spread over many projects.
	Attention bool `json:"attention"`
}

func (*ScopeResult) Kind() analysis.Kind { return analysis.KindScope }

// ScopeAnalyzer counts the tree by type, project and team.
type ScopeAnalyzer struct {
	opts Options
}

func NewScopeAnalyzer(opts Options) *ScopeAnalyzer {
	return &ScopeAnalyzer{opts: opts}
}

func (a *ScopeAnalyzer) Name() string { return string(analysis.KindScope) }

func (a *ScopeAnalyzer) Analyze(_ context.Context, in analysis.Input) (analysis.Payload, error) {
	res := &ScopeResult{}
	byType := map[string]int{}
	byProject := map[string]int{}
	byTeam := map[string]int{}

	root := in.Tree.Root()
	for _, n := range in.Tree.Nodes() {
		if n.Depth > res.MaxDepth {
			res.MaxDepth = n.Depth
		}
		if n.Unresolved || n.Snapshot == nil {
			res.Unresolved++
			continue
		}
		// The root itself is the subject, not part of its scope.
		if n.ID == root.ID {
			continue
		}
		res.Total++
		typ := n.Type()
		byType[typ]++
		byProject[a.opts.projectName(snapshot.ProjectOf(n.Key))]++
		byTeam[a.opts.team(n)]++

		switch {
		case a.opts.EpicTypes.Has(typ):
			res.Epics++
		case a.opts.StoryTypes.Has(typ):
			res.Stories++
			if sp, ok := n.Snapshot.FloatField(snapshot.FieldStoryPoints); ok {
				res.StoryPoints += sp
			}
		case a.opts.BugTypes.Has(typ):
			res.Bugs++
		}
	}

	res.ByType = buckets(byType, res.Total)
	res.ByProject = buckets(byProject, res.Total)
	res.ByTeam = buckets(byTeam, res.Total)
	if res.Epics > 0 {
		res.StoriesPerEpic = round1(float64(res.Stories) / float64(res.Epics))
	}
	res.Size = SizeClass(res.Epics, res.Stories)
	res.Complexity = ComplexityClass(len(byProject))
	res.Attention = (res.Size == SizeLarge || res.Size == SizeVeryLarge) &&
		(res.Complexity == ComplexityNormal || res.Complexity == ComplexityHigh)
	return res, nil
}

func buckets(counts map[string]int, total int) map[string]Bucket {
	out := make(map[string]Bucket, len(counts))
	for k, c := range counts {
		b := Bucket{Count: c}
		if total > 0 {
			b.Ratio = round2(float64(c) / float64(total))
		}
		out[k] = b
	}
	return out
}

// SizeClass grades a scope; the smaller of the two grades wins.
func SizeClass(epics, stories int) string {
	switch {
	case epics == 0 && stories == 0:
		return SizeNone
	case epics < 2 || stories < 10:
		return SizeVerySmall
	case epics < 5 || stories < 20:
		return SizeSmall
	case epics < 10 || stories < 35:
		return SizeNormal
	case epics < 20 || stories < 70:
		return SizeLarge
	default:
		return SizeVeryLarge
	}
}

func ComplexityClass(projects int) string {
	switch {
	case projects == 0:
		return ComplexityNone
	case projects == 1:
		return ComplexityIsolated
	case projects < 3:
		return ComplexityLow
	case projects < 5:
		return ComplexityNormal
	default:
		return ComplexityHigh
	}
}
