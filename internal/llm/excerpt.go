package llm

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"epicscope/internal/hierarchy"
	"epicscope/internal/stats"
)

// ExcerptNode is the part of an issue the model gets to see.
type ExcerptNode struct {
	Key        string `json:"key"`
	Parent     string `json:"parent,omitempty"`
	Type       string `json:"type,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Status     string `json:"status,omitempty"`
	Depth      int    `json:"depth"`
	Unresolved bool   `json:"unresolved,omitempty"`
}

// Excerpt is the serialized tree and time creep context handed to a Summarizer.
type Excerpt struct {
	EpicKey string              `json:"epic"`
	Title   string              `json:"title"`
	Nodes   []ExcerptNode       `json:"nodes"`
	Omitted int                 `json:"omitted,omitempty"`
	Creep   []stats.CreepRecord `json:"timeCreep,omitempty"`
}

// NewExcerpt takes the first limit nodes in breadth-first order; limit <= 0 keeps all of them.
func NewExcerpt(tree *hierarchy.Tree, creep []stats.CreepRecord, limit int) Excerpt {
	root := tree.Root()
	ex := Excerpt{
		EpicKey: root.Key,
		Title:   root.Snapshot.Summary(),
		Creep:   creep,
	}
	for _, n := range tree.Nodes() {
		if limit > 0 && len(ex.Nodes) >= limit {
			ex.Omitted++
			continue
		}
		en := ExcerptNode{
			Key:        n.Key,
			Type:       n.Type(),
			Summary:    n.Snapshot.Summary(),
			Status:     n.Snapshot.Status(),
			Depth:      n.Depth,
			Unresolved: n.Unresolved,
		}
		if p, ok := tree.Parent(n.ID); ok {
			en.Parent = tree.Node(p).Key
		}
		ex.Nodes = append(ex.Nodes, en)
	}
	return ex
}

// JSON renders the excerpt as sent to the model.
func (ex Excerpt) JSON() ([]byte, error) {
	return json.MarshalIndent(ex, "", "  ")
}

// Hash identifies the excerpt's content. Any change to the tree or creep records changes it.
func (ex Excerpt) Hash() uint64 {
	b, err := json.Marshal(ex)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
