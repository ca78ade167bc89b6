// Package visuals renders trees and series as Mermaid diagrams.
package visuals

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"epicscope/internal/hierarchy"
	"epicscope/internal/stats"
)

// maxPoints is roughly where xychart labels start to overlap.
const maxPoints = 60

// Fence wraps a diagram for embedding in Markdown.
func Fence(chart string) string {
	if chart == "" {
		return ""
	}
	return "```mermaid\n" + chart + "\n```"
}

// GenerateHierarchyChart renders the tree as a top-down flowchart. Hierarchical edges are solid,
// related edges dashed and labelled with their reason, unresolved stubs styled apart.
func GenerateHierarchyChart(tree *hierarchy.Tree) string {
	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	sb.WriteString("    classDef unresolved fill:#eee,stroke:#999,stroke-dasharray: 4 2\n")
	sb.WriteString("    classDef root fill:#dbeafe,stroke:#1d4ed8\n")

	for _, n := range tree.Nodes() {
		label := n.Key
		if n.Unresolved {
			label += "<br/>unresolved"
		} else {
			label += "<br/>" + n.Type()
			if st := n.Snapshot.Status(); st != "" {
				label += ": " + st
			}
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", nodeID(n.Key), escape(label)))
	}
	for _, n := range tree.Nodes() {
		if p, ok := tree.Parent(n.ID); ok {
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", nodeID(tree.Node(p).Key), nodeID(n.Key)))
		}
	}

	// Related edges may point outside the tree.
	external := map[string]bool{}
	for _, e := range tree.Related() {
		if _, ok := tree.Lookup(e.To); !ok && !external[e.To] {
			external[e.To] = true
			sb.WriteString(fmt.Sprintf("    %s([\"%s\"])\n", nodeID(e.To), escape(e.To)))
		}
		sb.WriteString(fmt.Sprintf("    %s -.->|%s| %s\n", nodeID(e.From), escape(e.Reason+": "+e.LinkType), nodeID(e.To)))
	}

	sb.WriteString(fmt.Sprintf("    class %s root\n", nodeID(tree.Root().Key)))
	for _, n := range tree.Unresolved() {
		sb.WriteString(fmt.Sprintf("    class %s unresolved\n", nodeID(n.Key)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// GenerateBacklogChart plots daily additions as bars and the open backlog as a line.
func GenerateBacklogChart(series []stats.BacklogPoint) string {
	if len(series) == 0 {
		return ""
	}

	subsampleRate := 1
	if len(series) > maxPoints {
		subsampleRate = int(math.Ceil(float64(len(series)) / maxPoints))
	}

	var labels, added, sizes []string
	maxY := 0
	for i, p := range series {
		if p.BacklogSize > maxY {
			maxY = p.BacklogSize
		}
		if p.Added > maxY {
			maxY = p.Added
		}
		if i%subsampleRate != 0 && i != len(series)-1 {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", p.Date.Format("Jan02")))
		added = append(added, fmt.Sprintf("%d", p.Added))
		sizes = append(sizes, fmt.Sprintf("%d", p.BacklogSize))
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Backlog Evolution (Stories)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Stories\" 0 --> %d\n", maxY+int(math.Max(1, float64(maxY)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(added, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]", strings.Join(sizes, ", ")))
	return sb.String()
}

// GenerateCodingTimeChart shows the median coding days per issue type.
func GenerateCodingTimeChart(res *stats.StatusResult) string {
	if res == nil || len(res.ByType) == 0 {
		return ""
	}
	types := make([]string, 0, len(res.ByType))
	for t := range res.ByType {
		types = append(types, t)
	}
	sort.Strings(types)

	var labels, values []string
	maxVal := 0.0
	for _, t := range types {
		g := res.ByType[t]
		labels = append(labels, fmt.Sprintf("\"%s\"", escape(t)))
		values = append(values, fmt.Sprintf("%.1f", g.CodingDaysMedian))
		if g.CodingDaysMedian > maxVal {
			maxVal = g.CodingDaysMedian
		}
	}

	var sb strings.Builder
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Coding Time by Type (Median Days)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Median Days\" 0 --> %d\n", int(math.Ceil(math.Max(1, maxVal*1.2)))))
	sb.WriteString(fmt.Sprintf("    bar [%s]", strings.Join(values, ", ")))
	return sb.String()
}

// nodeID turns an issue key into a Mermaid identifier.
func nodeID(key string) string {
	return "n_" + strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(key)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
