// Package simulation forecasts when the open story backlog of an epic drains, by resampling
// recent daily throughput.
package simulation

import (
	"context"
	"fmt"
	"math"
	"time"

	"epicscope/internal/analysis"
	"epicscope/internal/stats"
)

const (
	DefaultWindowDays = 56
	DefaultTrials     = 10000
)

// ForecastResult is the payload of the forecast analyzer.
type ForecastResult struct {
	Remaining  int     `json:"remaining"`
	WindowDays int     `json:"windowDays"`
	Delivered  int     `json:"delivered"`
	Throughput float64 `json:"throughputPerDay"`
	Trials     int     `json:"trials"`
	Days       Result  `json:"days"`
	// Dates are the calendar days on which the backlog drains at each percentile.
	Dates map[string]string `json:"dates,omitempty"`
}

func (*ForecastResult) Kind() analysis.Kind { return analysis.KindForecast }

// ForecastAnalyzer derives the story backlog the same way the backlog analyzer does and
// simulates how many days it takes to drain at historical pace.
type ForecastAnalyzer struct {
	opts       stats.Options
	backlog    *stats.BacklogEvolutionAnalyzer
	WindowDays int
	Trials     int
	Seed       uint64
}

func NewForecastAnalyzer(opts stats.Options) *ForecastAnalyzer {
	return &ForecastAnalyzer{
		opts:       opts,
		backlog:    stats.NewBacklogEvolutionAnalyzer(opts),
		WindowDays: DefaultWindowDays,
		Trials:     DefaultTrials,
		Seed:       uint64(time.Now().UnixNano()),
	}
}

func (a *ForecastAnalyzer) Name() string { return string(analysis.KindForecast) }

func (a *ForecastAnalyzer) Analyze(ctx context.Context, in analysis.Input) (analysis.Payload, error) {
	payload, err := a.backlog.Analyze(ctx, in)
	if err != nil {
		return nil, err
	}
	backlog := payload.(*stats.BacklogResult)

	loc := a.opts.Location
	if loc == nil {
		loc = time.UTC
	}
	h := NewHistogram(backlog.Items, in.Now, a.WindowDays, loc)
	res := &ForecastResult{
		Remaining:  backlog.Open,
		WindowDays: a.WindowDays,
		Delivered:  h.Total(),
		Throughput: math.Round(h.Mean()*100) / 100,
		Trials:     a.Trials,
	}
	if res.Remaining == 0 {
		return res, nil
	}
	if res.Delivered == 0 {
		return nil, fmt.Errorf("no story completed in the last %d days, throughput unknown", a.WindowDays)
	}

	res.Days = NewEngine(h, a.Seed).Run(res.Remaining, a.Trials)
	today := startOfDay(in.Now, loc)
	res.Dates = map[string]string{
		"p50": today.AddDate(0, 0, res.Days.P50).Format(time.DateOnly),
		"p85": today.AddDate(0, 0, res.Days.P85).Format(time.DateOnly),
		"p95": today.AddDate(0, 0, res.Days.P95).Format(time.DateOnly),
	}
	return res, nil
}
