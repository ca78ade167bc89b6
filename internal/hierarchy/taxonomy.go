package hierarchy

import "slices"

// Taxonomy decides which link types carry parent/child semantics.
type Taxonomy struct {
	// Default applies to parent types without an entry in ByType.
	Default []string
	// ByType lists the hierarchical link types per parent issue type.
	ByType map[string][]string
}

// DefaultTaxonomy follows subtasks, epic membership and realization links.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Default: []string{"subtask", "issue_in_epic", "realized_by", "is_parent_of"}}
}

// IsHierarchical reports whether a link of linkType from an issue of parentType leads to a child.
func (t Taxonomy) IsHierarchical(parentType, linkType string) bool {
	if allowed, ok := t.ByType[parentType]; ok {
		return slices.Contains(allowed, linkType)
	}
	return slices.Contains(t.Default, linkType)
}
