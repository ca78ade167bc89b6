package eventlog

import (
	"sort"

	"epicscope/internal/hierarchy"
	"epicscope/internal/snapshot"
)

// ExtractTransitions turns the node's raw changelog into tracked transition events,
// ordered by timestamp with changelog order kept for equal timestamps.
func ExtractTransitions(node *hierarchy.Node, fields FieldMap) []TransitionEvent {
	if node == nil || node.Snapshot == nil {
		return nil
	}
	return transitionsOf(node.Snapshot, fields)
}

func transitionsOf(snap *snapshot.IssueSnapshot, fields FieldMap) []TransitionEvent {
	var events []TransitionEvent
	for i, entry := range snap.ChangeLog {
		field := fields.Canonical(entry.Field)
		if field == "" {
			continue
		}
		events = append(events, TransitionEvent{
			IssueKey:  snap.Key,
			Field:     field,
			From:      entry.From,
			To:        entry.To,
			Timestamp: entry.Timestamp,
			Author:    entry.Author,
			Seq:       i,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// DeriveStatusIntervals converts status transitions into contiguous intervals.
// Each interval starts at a transition into its status and ends at the next status
// transition; the last one stays open.
func DeriveStatusIntervals(transitions []TransitionEvent) []StatusInterval {
	var status []TransitionEvent
	for _, e := range transitions {
		if e.Field == FieldStatus {
			status = append(status, e)
		}
	}

	intervals := make([]StatusInterval, 0, len(status))
	for i, e := range status {
		iv := StatusInterval{
			IssueKey:  e.IssueKey,
			Status:    e.To,
			EnteredAt: e.Timestamp,
		}
		if i+1 < len(status) {
			exit := status[i+1].Timestamp
			iv.ExitedAt = &exit
		}
		intervals = append(intervals, iv)
	}
	return intervals
}
