// Package analysis runs independent analyzers over one tree and its timelines.
package analysis

import (
	"context"
	"time"

	"epicscope/internal/eventlog"
	"epicscope/internal/hierarchy"
)

// Kind tags the payload variant of a result.
type Kind string

const (
	KindScope     Kind = "scope"
	KindStatus    Kind = "status"
	KindBacklog   Kind = "backlog"
	KindTimeCreep Kind = "time_creep"
	KindDynamics  Kind = "dynamics"
	KindForecast  Kind = "forecast"
)

// Input is shared by all analyzers of a run and must not be modified.
type Input struct {
	Tree      *hierarchy.Tree
	Timelines eventlog.Timelines
	Now       time.Time
}

// Payload is an analyzer-specific result body.
type Payload interface {
	Kind() Kind
}

// Analyzer computes one metric family.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in Input) (Payload, error)
}

// Result is the outcome of one analyzer. A failed result has no payload.
type Result struct {
	Analyzer string        `json:"analyzer"`
	Kind     Kind          `json:"kind,omitempty"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Payload  Payload       `json:"data,omitempty"`
	Elapsed  time.Duration `json:"-"`
}

// Failed builds a failed result.
func Failed(name string, reason string) Result {
	return Result{Analyzer: name, OK: false, Error: reason}
}
