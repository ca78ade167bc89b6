package eventlog

import (
	"time"

	"epicscope/internal/hierarchy"
)

// Timeline holds the derived activity of one issue.
type Timeline struct {
	Key         string
	Transitions []TransitionEvent
	Intervals   []StatusInterval
}

// Timelines maps issue keys to timelines. Analyzers treat it as read-only.
type Timelines map[string]*Timeline

// Build derives a timeline for every node of the tree. Stubs get empty timelines.
func Build(tree *hierarchy.Tree, fields FieldMap) Timelines {
	out := make(Timelines, tree.Len())
	for _, n := range tree.Nodes() {
		tr := ExtractTransitions(n, fields)
		out[n.Key] = &Timeline{
			Key:         n.Key,
			Transitions: tr,
			Intervals:   DeriveStatusIntervals(tr),
		}
	}
	return out
}

// Get never returns nil.
func (ts Timelines) Get(key string) *Timeline {
	if tl, ok := ts[key]; ok && tl != nil {
		return tl
	}
	return &Timeline{Key: key}
}

// FieldEvents returns the transitions of one tracked field in order.
func (tl *Timeline) FieldEvents(field string) []TransitionEvent {
	var out []TransitionEvent
	for _, e := range tl.Transitions {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

// FirstEntry returns when the issue first entered any status of set.
func (tl *Timeline) FirstEntry(set StatusSet) (time.Time, bool) {
	for _, iv := range tl.Intervals {
		if set.Has(iv.Status) {
			return iv.EnteredAt, true
		}
	}
	return time.Time{}, false
}

// CurrentStatus is the status of the open interval, or "" without transitions.
func (tl *Timeline) CurrentStatus() string {
	if n := len(tl.Intervals); n > 0 {
		return tl.Intervals[n-1].Status
	}
	return ""
}
