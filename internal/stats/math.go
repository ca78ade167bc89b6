package stats

import (
	"math"
	"slices"
	"time"
)

type number interface {
	~int | ~int64 | ~float64
}

// Median returns the median of values, 0 for an empty slice.
func Median[T number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	// Work on a copy to avoid mutating the original
	temp := slices.Clone(values)
	slices.Sort(temp)

	n := len(temp)
	if n%2 == 1 {
		return float64(temp[n/2])
	}
	return (float64(temp[n/2-1]) + float64(temp[n/2])) / 2.0
}

// Days converts a duration to fractional days.
func Days(d time.Duration) float64 {
	return d.Hours() / 24
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// dayOf truncates t to the start of its calendar day in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
