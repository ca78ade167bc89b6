// Package stats holds the analyzers that turn a tree and its timelines into metrics.
package stats

import (
	"time"

	"epicscope/internal/eventlog"
	"epicscope/internal/hierarchy"
	"epicscope/internal/snapshot"
)

// Options carries the tracker conventions shared by the analyzers.
type Options struct {
	StoryTypes        eventlog.StatusSet
	EpicTypes         eventlog.StatusSet
	BugTypes          eventlog.StatusSet
	CompletedStatuses eventlog.StatusSet
	CodingStatuses    eventlog.StatusSet

	// TeamField names the snapshot field used as team dimension; the project key is used when empty or unset.
	TeamField    string
	ProjectNames map[string]string
	Location     *time.Location
	Versions     VersionScheme
}

// DefaultOptions matches the stock Jira workflow names.
func DefaultOptions() Options {
	return Options{
		StoryTypes:        eventlog.NewStatusSet("Story"),
		EpicTypes:         eventlog.NewStatusSet("Epic"),
		BugTypes:          eventlog.NewStatusSet("Bug"),
		CompletedStatuses: eventlog.NewStatusSet("Done", "Resolved", "Closed"),
		CodingStatuses:    eventlog.NewStatusSet("In Progress", "In Review", "In Test"),
		TeamField:         "team",
		Location:          time.UTC,
		Versions:          DefaultVersionScheme(),
	}
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

func (o Options) projectName(key string) string {
	if name, ok := o.ProjectNames[key]; ok && name != "" {
		return name
	}
	return key
}

// team returns the team dimension of a node.
func (o Options) team(n *hierarchy.Node) string {
	if o.TeamField != "" {
		if v := n.Snapshot.StringField(o.TeamField); v != "" {
			return v
		}
	}
	return o.projectName(snapshot.ProjectOf(n.Key))
}

// completion returns the entry time of the first completed-status interval.
func (o Options) completion(tl *eventlog.Timeline) (time.Time, bool) {
	return tl.FirstEntry(o.CompletedStatuses)
}

// resolvedNodes returns the tree's non-stub nodes in breadth-first order.
func resolvedNodes(t *hierarchy.Tree) []*hierarchy.Node {
	var out []*hierarchy.Node
	for _, n := range t.Nodes() {
		if !n.Unresolved && n.Snapshot != nil {
			out = append(out, n)
		}
	}
	return out
}
