package snapshot

import (
	"fmt"
	"strings"
	"time"
)

// Canonical field names written by the transport mapper.
const (
	FieldSummary     = "summary"
	FieldStatus      = "status"
	FieldCreated     = "created"
	FieldUpdated     = "updated"
	FieldResolution  = "resolution"
	FieldFixVersions = "fixVersions"
	FieldTargetEnd   = "targetEnd"
	FieldStoryPoints = "storyPoints"
	FieldAssignee    = "assignee"
	FieldProject     = "project"
)

// Link is a single outgoing relation of an issue, named from the issue's own perspective.
type Link struct {
	LinkType  string `json:"linkType"`
	TargetKey string `json:"targetKey"`
	Direction string `json:"direction,omitempty"` // "inward" | "outward"
}

// ChangeEntry is one raw field change as recorded by the tracker.
type ChangeEntry struct {
	Field     string    `json:"field"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author,omitempty"`
}

// IssueSnapshot is a locally persisted copy of one issue at fetch time.
// It is replaced wholesale on refetch and never partially mutated.
type IssueSnapshot struct {
	Key       string         `json:"key"`
	Type      string         `json:"type"`
	Fields    map[string]any `json:"fields"`
	Links     []Link         `json:"links"`
	ChangeLog []ChangeEntry  `json:"changeLog"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// Validate reports the first structural problem of the snapshot, if any.
func (s *IssueSnapshot) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("%w: nil snapshot", ErrInvalid)
	case s.Key == "":
		return fmt.Errorf("%w: missing key", ErrInvalid)
	case s.Type == "":
		return fmt.Errorf("%w: %s: missing type", ErrInvalid, s.Key)
	case s.Fields == nil:
		return fmt.Errorf("%w: %s: missing fields", ErrInvalid, s.Key)
	case s.FetchedAt.IsZero():
		return fmt.Errorf("%w: %s: missing fetch timestamp", ErrInvalid, s.Key)
	}
	if _, ok := s.Created(); !ok {
		return fmt.Errorf("%w: %s: missing or malformed created timestamp", ErrInvalid, s.Key)
	}
	return nil
}

// StringField returns a string-valued field, or "" when absent or of another type.
func (s *IssueSnapshot) StringField(name string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	switch v := s.Fields[name].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// FloatField returns a numeric field. JSON numbers decode as float64.
func (s *IssueSnapshot) FloatField(name string) (float64, bool) {
	if s == nil || s.Fields == nil {
		return 0, false
	}
	switch v := s.Fields[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// StringsField returns a list-of-strings field such as fix versions.
func (s *IssueSnapshot) StringsField(name string) []string {
	if s == nil || s.Fields == nil {
		return nil
	}
	switch v := s.Fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// TimeField parses an RFC 3339 timestamp field.
func (s *IssueSnapshot) TimeField(name string) (time.Time, bool) {
	raw := s.StringField(name)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *IssueSnapshot) Created() (time.Time, bool) { return s.TimeField(FieldCreated) }
func (s *IssueSnapshot) Updated() (time.Time, bool) { return s.TimeField(FieldUpdated) }
func (s *IssueSnapshot) Status() string             { return s.StringField(FieldStatus) }
func (s *IssueSnapshot) Summary() string            { return s.StringField(FieldSummary) }

// ProjectKey returns the key prefix before the first dash.
func (s *IssueSnapshot) ProjectKey() string {
	if s == nil {
		return ""
	}
	return ProjectOf(s.Key)
}

// ProjectOf extracts the project part of an issue key ("PROJ-12" -> "PROJ").
func ProjectOf(key string) string {
	if i := strings.IndexByte(key, '-'); i > 0 {
		return key[:i]
	}
	return key
}
