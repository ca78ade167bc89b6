// Package llm is the boundary to the language model that writes the qualitative part of a summary.
package llm

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotConfigured = errors.New("llm: no API key configured")
	ErrNoChoices     = errors.New("llm: response has no choices")
	ErrNoJSON        = errors.New("llm: no JSON object in response")
	ErrInvalidOutput = errors.New("llm: response does not match schema")
)

// Config selects the model endpoint and the local artifacts of qualitative runs.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// MaxContextNodes bounds the number of hierarchy nodes sent to the model.
	MaxContextNodes int
	CacheDir        string
	UsageLogPath    string
}

// Qualitative is the structured narrative produced for one epic. It is placed into the summary as is.
type Qualitative struct {
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	Goals             []string `json:"goals"`
	Risks             []string `json:"risks"`
	Dependencies      []string `json:"dependencies,omitempty"`
	ScheduleNarrative string   `json:"schedule_narrative,omitempty"`
}

// Summarizer produces qualitative content from an excerpt of the hierarchy.
type Summarizer interface {
	Summarize(ctx context.Context, ex Excerpt) (*Qualitative, error)
}
