package hierarchy

import (
	"encoding/json"
	"time"

	"epicscope/internal/snapshot"
)

// NodeID indexes Tree.nodes. The root is always 0.
type NodeID int

// NoParent is the parent of the root.
const NoParent NodeID = -1

// Node is one issue in the hierarchy.
type Node struct {
	ID  NodeID
	Key string
	// Snapshot is nil for unresolved stubs.
	Snapshot   *snapshot.IssueSnapshot
	Unresolved bool
	Error      string
	Depth      int
	// LinkType is the relation through which the parent reached this node.
	LinkType string

	children []NodeID
}

// Type returns the issue type, or "" for stubs.
func (n *Node) Type() string {
	if n.Snapshot == nil {
		return ""
	}
	return n.Snapshot.Type
}

// Edge reasons for related (non-hierarchical) edges.
const (
	ReasonLink      = "link"
	ReasonCycle     = "cycle"
	ReasonDuplicate = "duplicate"
)

// Edge is a related edge between two issue keys.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	LinkType string `json:"linkType"`
	Reason   string `json:"reason"`
}

// AnomalyKind classifies structural problems found while building.
type AnomalyKind string

const (
	AnomalyCycle         AnomalyKind = "cycle"
	AnomalyUnresolved    AnomalyKind = "unresolved"
	AnomalyDuplicate     AnomalyKind = "duplicate_parent"
	AnomalyStaleFallback AnomalyKind = "stale_fallback"
	AnomalyStaleData     AnomalyKind = "stale_data"
	AnomalyWriteFailed   AnomalyKind = "write_failed"
)

// Anomaly is a non-fatal structural problem.
type Anomaly struct {
	Kind   AnomalyKind `json:"kind"`
	Key    string      `json:"key"`
	Target string      `json:"target,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Tree is the issue hierarchy of one run, rooted at the epic. It is not modified after Build returns.
type Tree struct {
	nodes     []*Node
	parent    []NodeID
	index     map[string]NodeID
	related   []Edge
	anomalies []Anomaly
}

func newTree() *Tree {
	return &Tree{index: make(map[string]NodeID)}
}

func (t *Tree) add(key string, parent NodeID, linkType string) NodeID {
	id := NodeID(len(t.nodes))
	depth := 0
	if parent != NoParent {
		depth = t.nodes[parent].Depth + 1
		t.nodes[parent].children = append(t.nodes[parent].children, id)
	}
	t.nodes = append(t.nodes, &Node{ID: id, Key: key, Depth: depth, LinkType: linkType})
	t.parent = append(t.parent, parent)
	t.index[key] = id
	return id
}

// onPath reports whether key is id itself or one of its ancestors.
func (t *Tree) onPath(id NodeID, key string) bool {
	for cur := id; cur != NoParent; cur = t.parent[cur] {
		if t.nodes[cur].Key == key {
			return true
		}
	}
	return false
}

func (t *Tree) Root() *Node { return t.nodes[0] }

func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node with the given id, or nil.
func (t *Tree) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

func (t *Tree) Lookup(key string) (*Node, bool) {
	id, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.nodes[id], true
}

// Parent returns the parent id; ok is false for the root.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	p := t.parent[id]
	return p, p != NoParent
}

// Children returns the node's children in link order.
func (t *Tree) Children(id NodeID) []*Node {
	ids := t.nodes[id].children
	out := make([]*Node, len(ids))
	for i, c := range ids {
		out[i] = t.nodes[c]
	}
	return out
}

// Ancestors returns ancestor ids, nearest first.
func (t *Tree) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := t.parent[id]; p != NoParent; p = t.parent[p] {
		out = append(out, p)
	}
	return out
}

// Nodes returns all nodes in discovery (breadth-first) order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// Walk visits nodes depth-first in pre-order and stops at the first error.
func (t *Tree) Walk(fn func(n *Node) error) error {
	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if err := fn(t.nodes[id]); err != nil {
			return err
		}
		for _, c := range t.nodes[id].children {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(0)
}

func (t *Tree) Related() []Edge {
	out := make([]Edge, len(t.related))
	copy(out, t.related)
	return out
}

func (t *Tree) Anomalies() []Anomaly {
	out := make([]Anomaly, len(t.anomalies))
	copy(out, t.anomalies)
	return out
}

// Unresolved returns stub nodes.
func (t *Tree) Unresolved() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.Unresolved {
			out = append(out, n)
		}
	}
	return out
}

// SourceTimes maps each resolved key to its snapshot's fetch time.
func (t *Tree) SourceTimes() map[string]time.Time {
	out := make(map[string]time.Time, len(t.nodes))
	for _, n := range t.nodes {
		if n.Snapshot != nil {
			out[n.Key] = n.Snapshot.FetchedAt
		}
	}
	return out
}

// NestedNode is the renderer-facing view of a node.
type NestedNode struct {
	Key        string       `json:"key"`
	Type       string       `json:"type,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Status     string       `json:"status,omitempty"`
	LinkType   string       `json:"linkType,omitempty"`
	Unresolved bool         `json:"unresolved,omitempty"`
	Children   []NestedNode `json:"children,omitempty"`
}

// Nested converts the tree into nested form. limit > 0 keeps only the first limit nodes in breadth-first order.
func (t *Tree) Nested(limit int) NestedNode {
	keep := make(map[NodeID]bool)
	for _, n := range t.nodes {
		if limit > 0 && len(keep) >= limit {
			break
		}
		keep[n.ID] = true
	}

	var build func(id NodeID) NestedNode
	build = func(id NodeID) NestedNode {
		n := t.nodes[id]
		out := NestedNode{
			Key:        n.Key,
			Type:       n.Type(),
			LinkType:   n.LinkType,
			Unresolved: n.Unresolved,
		}
		if n.Snapshot != nil {
			out.Summary = n.Snapshot.Summary()
			out.Status = n.Snapshot.Status()
		}
		for _, c := range n.children {
			if keep[c] {
				out.Children = append(out.Children, build(c))
			}
		}
		return out
	}
	return build(0)
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Root      NestedNode `json:"root"`
		Related   []Edge     `json:"related"`
		Anomalies []Anomaly  `json:"anomalies"`
	}{t.Nested(0), t.Related(), t.Anomalies()})
}
