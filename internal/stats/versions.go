package stats

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	piPattern      = regexp.MustCompile(`PI\s?(\d+)`)
	quarterPattern = regexp.MustCompile(`Q([1-4])_(\d{2})`)
)

// VersionScheme maps planning-increment names onto a quarter ordinal.
// AnchorPI is the increment that starts in AnchorQuarter of AnchorYear.
type VersionScheme struct {
	AnchorPI      int
	AnchorYear    int
	AnchorQuarter int
	PIsPerYear    int
}

// DefaultVersionScheme anchors PI27 at 2025 Q1 with four increments per year.
func DefaultVersionScheme() VersionScheme {
	return VersionScheme{AnchorPI: 27, AnchorYear: 2025, AnchorQuarter: 1, PIsPerYear: 4}
}

// Ordinal returns a monotonically increasing quarter number for "PI<n>" and "Q<q>_<yy>" names.
func (v VersionScheme) Ordinal(name string) (int, bool) {
	if m := piPattern.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || v.PIsPerYear <= 0 {
			return 0, false
		}
		base := v.AnchorYear*4 + v.AnchorQuarter - 1
		if v.PIsPerYear == 4 {
			return base + n - v.AnchorPI, true
		}
		// One increment spans 4/PIsPerYear quarters.
		return base + (n-v.AnchorPI)*4/v.PIsPerYear, true
	}
	if m := quarterPattern.FindStringSubmatch(name); m != nil {
		q, _ := strconv.Atoi(m[1])
		yy, _ := strconv.Atoi(m[2])
		return (2000+yy)*4 + q - 1, true
	}
	return 0, false
}

// QuarterStart returns the first day of the quarter an ordinal denotes.
func QuarterStart(ordinal int) time.Time {
	year, q := ordinal/4, ordinal%4
	return time.Date(year, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02",
	"02/Jan/06",
	"2/Jan/06",
	"02/Jan/2006",
	"2/Jan/2006",
}

// ParseTargetDate accepts ISO dates and the "dd/Mon/yy" form Jira writes into changelogs.
// A "label: value" prefix is ignored.
func ParseTargetDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, candidate := range []string{s, strings.TrimSpace(s[strings.LastIndex(s, ":")+1:])} {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
