package jira

import (
	"encoding/json"
	"time"
)

// SearchResponse is the top-level container for Jira search results.
type SearchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []IssueDTO `json:"issues"`
}

// IssueDTO represents a single issue as returned by /rest/api/2/issue.
type IssueDTO struct {
	Key       string        `json:"key"`
	Fields    FieldsDTO     `json:"fields"`
	Changelog *ChangelogDTO `json:"changelog,omitempty"`
}

// FieldsDTO contains the system fields we map plus the raw field set for custom fields.
type FieldsDTO struct {
	Summary   string `json:"summary"`
	IssueType struct {
		Name    string `json:"name"`
		Subtask bool   `json:"subtask"`
	} `json:"issuetype"`
	Status struct {
		Name           string `json:"name"`
		StatusCategory struct {
			Key string `json:"key"`
		} `json:"statusCategory"`
	} `json:"status"`
	Resolution *struct {
		Name string `json:"name"`
	} `json:"resolution"`
	ResolutionDate string `json:"resolutiondate"`
	Created        string `json:"created"`
	Updated        string `json:"updated"`
	Project        struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"project"`
	FixVersions []struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"releaseDate,omitempty"`
	} `json:"fixVersions"`
	Assignee *UserDTO   `json:"assignee"`
	Labels   []string   `json:"labels"`
	Parent   *IssueRef  `json:"parent"`
	Subtasks []IssueRef `json:"subtasks"`

	IssueLinks []IssueLinkDTO `json:"issuelinks"`

	// Raw keeps every field, including customfield_* entries.
	Raw map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw map for custom field lookup.
func (f *FieldsDTO) UnmarshalJSON(data []byte) error {
	type plain FieldsDTO
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if err := json.Unmarshal(data, &p.Raw); err != nil {
		return err
	}
	*f = FieldsDTO(p)
	return nil
}

// IssueRef is a minimal reference to another issue.
type IssueRef struct {
	Key string `json:"key"`
}

// UserDTO is a Jira user reference.
type UserDTO struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// IssueLinkDTO is one entry of the issuelinks field. Exactly one of InwardIssue/OutwardIssue is set.
type IssueLinkDTO struct {
	Type struct {
		Name    string `json:"name"`
		Inward  string `json:"inward"`
		Outward string `json:"outward"`
	} `json:"type"`
	InwardIssue  *IssueRef `json:"inwardIssue,omitempty"`
	OutwardIssue *IssueRef `json:"outwardIssue,omitempty"`
}

// ChangelogDTO contains historical transitions.
type ChangelogDTO struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	Histories  []HistoryDTO `json:"histories"`
}

// HistoryDTO is a single entry in the changelog.
type HistoryDTO struct {
	ID      string    `json:"id"`
	Author  *UserDTO  `json:"author,omitempty"`
	Created string    `json:"created"`
	Items   []ItemDTO `json:"items"`
}

// ItemDTO is a single field change within a history entry.
type ItemDTO struct {
	Field      string `json:"field"`
	FieldID    string `json:"fieldId,omitempty"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
	From       string `json:"from"` // ID
	To         string `json:"to"`   // ID
}

var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseTime accepts the strict Jira timestamp format and a few date-only fallbacks.
func ParseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
