package stats

import (
	"context"
	"slices"

	"epicscope/internal/analysis"
	"epicscope/internal/eventlog"
)

// Units of CreepRecord.Delta.
const (
	UnitDays     = "days"
	UnitQuarters = "quarters"
	UnitSequence = "sequence"
	UnitUnknown  = "unknown"
)

// CreepRecord is the drift of one field of one issue between its first and last recorded value.
type CreepRecord struct {
	Key             string  `json:"key"`
	Type            string  `json:"type"`
	Field           string  `json:"field"`
	FirstValue      string  `json:"firstValue"`
	LastValue       string  `json:"lastValue"`
	Delta           float64 `json:"delta"`
	Unit            string  `json:"unit"`
	TransitionCount int     `json:"transitionCount"`
	LaterShifts     int     `json:"laterShifts"`
	EarlierShifts   int     `json:"earlierShifts"`
	// Cleared is set when the latest change removed the value.
	Cleared bool `json:"cleared,omitempty"`
}

// TimeCreepResult is the payload of the time creep analyzer. It carries raw deltas only.
type TimeCreepResult struct {
	Records []CreepRecord `json:"records"`
	Issues  int           `json:"issues"`
}

func (*TimeCreepResult) Kind() analysis.Kind { return analysis.KindTimeCreep }

// TimeCreepAnalyzer reports target date and fix version drift per issue.
type TimeCreepAnalyzer struct {
	opts Options
}

func NewTimeCreepAnalyzer(opts Options) *TimeCreepAnalyzer {
	return &TimeCreepAnalyzer{opts: opts}
}

func (a *TimeCreepAnalyzer) Name() string { return string(analysis.KindTimeCreep) }

func (a *TimeCreepAnalyzer) Analyze(ctx context.Context, in analysis.Input) (analysis.Payload, error) {
	res := &TimeCreepResult{Records: []CreepRecord{}}
	for _, n := range resolvedNodes(in.Tree) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tl := in.Timelines.Get(n.Key)
		touched := false
		for _, field := range []string{eventlog.FieldTargetDate, eventlog.FieldFixVersion} {
			rec, ok := a.record(tl.FieldEvents(field), field)
			if !ok {
				continue
			}
			rec.Key = n.Key
			rec.Type = n.Type()
			res.Records = append(res.Records, rec)
			touched = true
		}
		if touched {
			res.Issues++
		}
	}
	return res, nil
}

func (a *TimeCreepAnalyzer) record(events []eventlog.TransitionEvent, field string) (CreepRecord, bool) {
	if len(events) == 0 {
		return CreepRecord{}, false
	}
	rec := CreepRecord{
		Field:           field,
		TransitionCount: len(events),
	}

	var values []string
	if field == eventlog.FieldFixVersion {
		values, rec.Cleared = a.versionStates(events)
	} else {
		rec.Cleared = events[len(events)-1].To == ""
		if events[0].From != "" {
			values = append(values, events[0].From)
		}
		for _, e := range events {
			if e.To != "" {
				values = append(values, e.To)
			}
		}
	}
	if len(values) == 0 {
		rec.Unit = UnitUnknown
		return rec, true
	}
	rec.FirstValue = values[0]
	rec.LastValue = values[len(values)-1]

	positions, unit := a.positions(values, field)
	rec.Unit = unit
	if positions == nil {
		return rec, true
	}
	rec.Delta = round1(positions[len(positions)-1] - positions[0])
	for i := 1; i < len(positions); i++ {
		switch {
		case positions[i] > positions[i-1]:
			rec.LaterShifts++
		case positions[i] < positions[i-1]:
			rec.EarlierShifts++
		}
	}
	return rec, true
}

// versionStates replays fix version changes as additions and removals on a set, since an issue can carry
// several versions and a swap is recorded as separate add and remove entries. Changes sharing a timestamp
// are applied together. It returns the representative version after each change that altered it, and
// whether the set ended empty.
func (a *TimeCreepAnalyzer) versionStates(events []eventlog.TransitionEvent) ([]string, bool) {
	// Versions removed before ever being added were present from the start.
	var current []string
	added := map[string]bool{}
	for _, e := range events {
		if e.From != "" && !added[e.From] && !slices.Contains(current, e.From) {
			current = append(current, e.From)
		}
		if e.To != "" {
			added[e.To] = true
		}
	}

	var states []string
	push := func() {
		rep := a.representative(current)
		if rep == "" || (len(states) > 0 && states[len(states)-1] == rep) {
			return
		}
		states = append(states, rep)
	}
	push()

	for i, e := range events {
		if e.From != "" {
			current = slices.DeleteFunc(current, func(v string) bool { return v == e.From })
		}
		if e.To != "" && !slices.Contains(current, e.To) {
			current = append(current, e.To)
		}
		if i == len(events)-1 || !events[i+1].Timestamp.Equal(e.Timestamp) {
			push()
		}
	}
	return states, len(current) == 0
}

// representative is the latest version of the set by ordinal, or the most recently added one when
// some version has no ordinal.
func (a *TimeCreepAnalyzer) representative(set []string) string {
	if len(set) == 0 {
		return ""
	}
	best, bestOrd := "", 0
	for _, v := range set {
		ord, ok := a.opts.Versions.Ordinal(v)
		if !ok {
			return set[len(set)-1]
		}
		if best == "" || ord > bestOrd {
			best, bestOrd = v, ord
		}
	}
	return best
}

// positions places every value on a common axis, or returns nil when a value cannot be placed.
func (a *TimeCreepAnalyzer) positions(values []string, field string) ([]float64, string) {
	out := make([]float64, len(values))
	if field == eventlog.FieldTargetDate {
		for i, v := range values {
			t, ok := ParseTargetDate(v)
			if !ok {
				return nil, UnitUnknown
			}
			out[i] = float64(t.Unix()) / 86400
		}
		return out, UnitDays
	}

	allVersions := true
	for i, v := range values {
		ord, ok := a.opts.Versions.Ordinal(v)
		if !ok {
			allVersions = false
			break
		}
		out[i] = float64(ord)
	}
	if allVersions {
		return out, UnitQuarters
	}

	seen := map[string]int{}
	for i, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = len(seen)
		}
		out[i] = float64(seen[v])
	}
	return out, UnitSequence
}
