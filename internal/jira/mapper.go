package jira

import (
	"encoding/json"
	"strings"
	"time"

	"epicscope/internal/snapshot"
)

// Relation names produced by the mapper, from the mapped issue's point of view.
const (
	RelSubtask     = "subtask"
	RelParent      = "parent"
	RelIssueInEpic = "issue_in_epic"
	RelEpic        = "epic"
	RelRealizedBy  = "realized_by"
	RelRealizes    = "realizes"
)

// MapSnapshot converts a Jira issue (with expanded changelog) into a snapshot.
// childKeys are the epic's children found via JQL; customFields maps field ids to snapshot field names.
func MapSnapshot(item IssueDTO, childKeys []string, cfg Config, fetchedAt time.Time) *snapshot.IssueSnapshot {
	f := item.Fields
	snap := &snapshot.IssueSnapshot{
		Key:       item.Key,
		Type:      f.IssueType.Name,
		Fields:    make(map[string]any),
		FetchedAt: fetchedAt.UTC(),
	}

	setString(snap.Fields, snapshot.FieldSummary, f.Summary)
	setString(snap.Fields, snapshot.FieldStatus, f.Status.Name)
	setString(snap.Fields, "statusCategory", f.Status.StatusCategory.Key)
	setTime(snap.Fields, snapshot.FieldCreated, f.Created)
	setTime(snap.Fields, snapshot.FieldUpdated, f.Updated)
	setTime(snap.Fields, "resolutionDate", f.ResolutionDate)
	setString(snap.Fields, snapshot.FieldProject, f.Project.Key)
	if f.Resolution != nil {
		setString(snap.Fields, snapshot.FieldResolution, f.Resolution.Name)
	}
	if f.Assignee != nil {
		setString(snap.Fields, snapshot.FieldAssignee, f.Assignee.DisplayName)
	}
	if len(f.FixVersions) > 0 {
		versions := make([]any, 0, len(f.FixVersions))
		for _, v := range f.FixVersions {
			versions = append(versions, v.Name)
		}
		snap.Fields[snapshot.FieldFixVersions] = versions
	}
	if len(f.Labels) > 0 {
		labels := make([]any, 0, len(f.Labels))
		for _, l := range f.Labels {
			labels = append(labels, l)
		}
		snap.Fields["labels"] = labels
	}
	for id, name := range cfg.CustomFields {
		if raw, ok := f.Raw[id]; ok {
			if v := normalizeCustomValue(raw); v != nil {
				snap.Fields[name] = v
			}
		}
	}

	snap.Links = mapLinks(item, childKeys, cfg)
	if item.Changelog != nil {
		snap.ChangeLog = mapChangelog(item.Changelog.Histories)
	}
	return snap
}

func mapLinks(item IssueDTO, childKeys []string, cfg Config) []snapshot.Link {
	f := item.Fields
	var links []snapshot.Link

	if f.Parent != nil && f.Parent.Key != "" {
		links = append(links, snapshot.Link{LinkType: RelParent, TargetKey: f.Parent.Key, Direction: "inward"})
	}
	for _, st := range f.Subtasks {
		links = append(links, snapshot.Link{LinkType: RelSubtask, TargetKey: st.Key, Direction: "outward"})
	}
	if cfg.EpicLinkField != "" {
		if raw, ok := f.Raw[cfg.EpicLinkField]; ok {
			if epic, ok := normalizeCustomValue(raw).(string); ok && epic != "" {
				links = append(links, snapshot.Link{LinkType: RelEpic, TargetKey: epic, Direction: "inward"})
			}
		}
	}
	for _, l := range f.IssueLinks {
		switch {
		case l.OutwardIssue != nil:
			links = append(links, snapshot.Link{
				LinkType:  relationName(l.Type.Outward, l.Type.Name),
				TargetKey: l.OutwardIssue.Key,
				Direction: "outward",
			})
		case l.InwardIssue != nil:
			links = append(links, snapshot.Link{
				LinkType:  relationName(l.Type.Inward, l.Type.Name),
				TargetKey: l.InwardIssue.Key,
				Direction: "inward",
			})
		}
	}
	for _, k := range childKeys {
		if k == item.Key {
			continue
		}
		links = append(links, snapshot.Link{LinkType: RelIssueInEpic, TargetKey: k, Direction: "outward"})
	}
	return links
}

// relationName turns link text such as "is realized by" into "realized_by".
func relationName(text, typeName string) string {
	if text == "" {
		text = typeName
	}
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "realized by"):
		return RelRealizedBy
	case strings.HasPrefix(t, "realizes"):
		return RelRealizes
	}
	return strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "_")
}

func mapChangelog(histories []HistoryDTO) []snapshot.ChangeEntry {
	var entries []snapshot.ChangeEntry
	for _, h := range histories {
		ts, err := ParseTime(h.Created)
		if err != nil {
			continue
		}
		author := ""
		if h.Author != nil {
			author = h.Author.DisplayName
			if author == "" {
				author = h.Author.Name
			}
		}
		for _, it := range h.Items {
			entries = append(entries, snapshot.ChangeEntry{
				Field:     it.Field,
				From:      it.FromString,
				To:        it.ToString,
				Timestamp: ts.UTC(),
				Author:    author,
			})
		}
	}
	return entries
}

// normalizeCustomValue flattens Jira custom field shapes (option objects, users, arrays) to plain values.
func normalizeCustomValue(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return nil
	}
	return flatten(v)
}

func flatten(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range []string{"value", "name", "displayName", "key"} {
			if s, ok := val[k].(string); ok {
				return s
			}
		}
		return nil
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if f := flatten(item); f != nil {
				out = append(out, f)
			}
		}
		return out
	case string:
		if t, err := ParseTime(val); err == nil && len(val) > len("2006-01-02") {
			return t.UTC().Format(time.RFC3339)
		}
		return val
	default:
		return val
	}
}

func setString(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}

func setTime(m map[string]any, k, v string) {
	if v == "" {
		return
	}
	if t, err := ParseTime(v); err == nil {
		m[k] = t.UTC().Format(time.RFC3339)
	}
}
