package stats

import (
	"testing"
	"time"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"Empty", []float64{}, 0},
		{"SingleItem", []float64{5.5}, 5.5},
		{"OddCount", []float64{1.1, 3.3, 2.2, 4.4, 5.5}, 3.3},
		{"EvenCount", []float64{1, 2, 3, 4}, 2.5},
		{"Unsorted", []float64{10.5, 2.5, 8.5, 4.5, 6.5}, 6.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.values); got != tt.expected {
				t.Errorf("Median() = %v, want %v", got, tt.expected)
			}
		})
	}

	ints := []int{10, 2, 8, 4}
	if got := Median(ints); got != 6 {
		t.Errorf("Median(ints) = %v, want 6", got)
	}
	if ints[0] != 10 {
		t.Error("Median must not reorder its input")
	}
}

func TestDayOf(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	ts := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)

	if got := dayOf(ts, time.UTC); !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("UTC day = %v", got)
	}
	// 23:30 UTC is already the next day at UTC+1.
	if got := dayOf(ts, berlin); got.Day() != 2 {
		t.Errorf("expected March 2nd in UTC+1, got %v", got)
	}
}
