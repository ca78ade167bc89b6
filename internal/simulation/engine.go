package simulation

import (
	"math/rand/v2"
	"slices"
)

// maxTrialDays stops a trial whose sampled days keep delivering nothing.
const maxTrialDays = 10000

// Engine performs the Monte-Carlo simulation.
type Engine struct {
	histogram *Histogram
	rng       *rand.Rand
}

// Result holds the percentiles of the simulation in days from now.
type Result struct {
	P50 int `json:"p50"`
	P85 int `json:"p85"`
	P95 int `json:"p95"`
}

func NewEngine(h *Histogram, seed uint64) *Engine {
	return &Engine{
		histogram: h,
		rng:       rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// Run performs the requested number of trials for a backlog of the given size.
func (e *Engine) Run(backlogSize, trials int) Result {
	if backlogSize <= 0 || trials <= 0 || e.histogram.Total() == 0 {
		return Result{}
	}

	durations := make([]int, trials)
	for i := range durations {
		durations[i] = e.simulateTrial(backlogSize)
	}
	slices.Sort(durations)

	return Result{
		P50: durations[percentileIndex(trials, 0.50)],
		P85: durations[percentileIndex(trials, 0.85)],
		P95: durations[percentileIndex(trials, 0.95)],
	}
}

func (e *Engine) simulateTrial(backlog int) int {
	days := 0
	remaining := backlog
	for remaining > 0 && days < maxTrialDays {
		days++
		// Sample a historical day.
		remaining -= e.histogram.Counts[e.rng.IntN(len(e.histogram.Counts))]
	}
	return days
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}
