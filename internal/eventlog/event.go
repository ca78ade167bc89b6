package eventlog

import (
	"strings"
	"time"
)

// Tracked canonical field names.
const (
	FieldStatus             = "status"
	FieldTargetDate         = "targetDate"
	FieldFixVersion         = "fixVersion"
	FieldResolution         = "resolution"
	FieldAssignee           = "assignee"
	FieldDescription        = "description"
	FieldAcceptanceCriteria = "acceptanceCriteria"
	FieldFlagged            = "flagged"
	FieldStoryPoints        = "storyPoints"
)

// TransitionEvent is one change of a tracked field.
type TransitionEvent struct {
	IssueKey  string    `json:"issueKey"`
	Field     string    `json:"field"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"ts"`
	Author    string    `json:"author,omitempty"`
	// Seq is the entry's position in the raw changelog, the tie-break for equal timestamps.
	Seq int `json:"seq"`
}

// StatusInterval is a period an issue spent in one status. ExitedAt is nil while the issue is still in it.
type StatusInterval struct {
	IssueKey  string     `json:"issueKey"`
	Status    string     `json:"status"`
	EnteredAt time.Time  `json:"enteredAt"`
	ExitedAt  *time.Time `json:"exitedAt,omitempty"`
}

// Open reports whether the issue is still in this status.
func (s StatusInterval) Open() bool { return s.ExitedAt == nil }

// Duration measures the interval, using now for the open one.
func (s StatusInterval) Duration(now time.Time) time.Duration {
	end := now
	if s.ExitedAt != nil {
		end = *s.ExitedAt
	}
	if end.Before(s.EnteredAt) {
		return 0
	}
	return end.Sub(s.EnteredAt)
}

// FieldMap maps raw changelog field names to tracked field names, ignoring case.
type FieldMap map[string]string

// NewFieldMap builds a FieldMap; canonical names map to themselves.
func NewFieldMap(raw map[string]string) FieldMap {
	fm := make(FieldMap, len(raw)*2)
	for from, to := range raw {
		fm[normalizeName(from)] = to
		fm[normalizeName(to)] = to
	}
	return fm
}

// DefaultFieldMap covers the stock Jira field names.
func DefaultFieldMap() FieldMap {
	return NewFieldMap(map[string]string{
		"status":              FieldStatus,
		"resolution":          FieldResolution,
		"Fix Version":         FieldFixVersion,
		"Target end":          FieldTargetDate,
		"duedate":             FieldTargetDate,
		"assignee":            FieldAssignee,
		"description":         FieldDescription,
		"Acceptance Criteria": FieldAcceptanceCriteria,
		"Flagged":             FieldFlagged,
		"Story Points":        FieldStoryPoints,
	})
}

// Canonical returns the tracked name for a raw field, or "" when the field is not tracked.
func (fm FieldMap) Canonical(raw string) string {
	return fm[normalizeName(raw)]
}

// StatusSet is a case-insensitive set of status (or type) names.
type StatusSet map[string]struct{}

func NewStatusSet(names ...string) StatusSet {
	s := make(StatusSet, len(names))
	for _, n := range names {
		s[normalizeName(n)] = struct{}{}
	}
	return s
}

func (s StatusSet) Has(name string) bool {
	_, ok := s[normalizeName(name)]
	return ok
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
