package simulation

import (
	"time"

	"epicscope/internal/stats"
)

// Histogram tracks daily story completions over a trailing window.
type Histogram struct {
	Counts []int
	Start  time.Time
	End    time.Time
}

// NewHistogram buckets the first completion of each item into the days of [end-days+1, end].
// Completions outside the window are ignored.
func NewHistogram(items []stats.BacklogItem, end time.Time, days int, loc *time.Location) *Histogram {
	if loc == nil {
		loc = time.UTC
	}
	if days < 1 {
		days = 1
	}
	last := startOfDay(end, loc)
	first := last.AddDate(0, 0, -(days - 1))

	h := &Histogram{Counts: make([]int, days), Start: first, End: last}
	for _, it := range items {
		if it.CompletedAt == nil {
			continue
		}
		d := startOfDay(*it.CompletedAt, loc)
		if d.Before(first) || d.After(last) {
			continue
		}
		// Calendar arithmetic keeps DST days aligned.
		idx := 0
		for c := first; c.Before(d); c = c.AddDate(0, 0, 1) {
			idx++
		}
		h.Counts[idx]++
	}
	return h
}

// Total is the number of completions in the window.
func (h *Histogram) Total() int {
	total := 0
	for _, c := range h.Counts {
		total += c
	}
	return total
}

// Mean is the average daily throughput.
func (h *Histogram) Mean() float64 {
	if len(h.Counts) == 0 {
		return 0
	}
	return float64(h.Total()) / float64(len(h.Counts))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
