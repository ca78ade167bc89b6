// Package freshness decides whether a locally stored snapshot must be refetched.
package freshness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"epicscope/internal/snapshot"

	"github.com/rs/zerolog/log"
)

// Mode selects the fetch policy for a run.
type Mode int

const (
	// CheckStale refetches only when the local copy is missing, invalid or older than the remote record.
	CheckStale Mode = iota
	// Force always refetches.
	Force
	// Skip never fetches and works from local snapshots only.
	Skip
)

func (m Mode) String() string {
	switch m {
	case Force:
		return "force"
	case Skip:
		return "skip"
	default:
		return "check"
	}
}

// ParseMode accepts "force", "skip" and "check" (plus the aliases true/false/stale).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "force", "true":
		return Force, nil
	case "skip", "false":
		return Skip, nil
	case "check", "stale", "":
		return CheckStale, nil
	}
	return CheckStale, fmt.Errorf("unknown fetch mode %q (want force, skip or check)", s)
}

// NeedsFetch is the pure freshness decision.
func NeedsFetch(local *snapshot.IssueSnapshot, remoteLastUpdated time.Time, mode Mode) bool {
	switch mode {
	case Force:
		return true
	case Skip:
		return false
	}
	if local == nil {
		return true
	}
	if local.Validate() != nil {
		return true
	}
	return local.FetchedAt.Before(remoteLastUpdated)
}

// StaleDataWarning reports that freshness could not be confirmed and a refetch was chosen instead.
type StaleDataWarning struct {
	Key string
	Err error
}

func (w *StaleDataWarning) Error() string {
	return fmt.Sprintf("freshness of %s unknown, refetching: %v", w.Key, w.Err)
}

func (w *StaleDataWarning) Unwrap() error { return w.Err }

// RemoteClock returns the remote record's last-update time.
type RemoteClock interface {
	FetchLastUpdated(ctx context.Context, key string) (time.Time, error)
}

// Decision is the outcome of Checker.Decide.
type Decision struct {
	Fetch   bool
	Reason  string
	Warning *StaleDataWarning
}

// Checker combines NeedsFetch with the remote metadata lookup.
type Checker struct {
	remote RemoteClock
}

func NewChecker(remote RemoteClock) *Checker {
	return &Checker{remote: remote}
}

// Decide only asks the remote when the answer can change the outcome.
func (c *Checker) Decide(ctx context.Context, key string, local *snapshot.IssueSnapshot, mode Mode) Decision {
	switch mode {
	case Force:
		return Decision{Fetch: true, Reason: "forced"}
	case Skip:
		return Decision{Fetch: false, Reason: "skip mode"}
	}
	if local == nil {
		return Decision{Fetch: true, Reason: "no local snapshot"}
	}
	if err := local.Validate(); err != nil {
		log.Warn().Err(err).Str("issue", key).Msg("Local snapshot is structurally invalid")
		return Decision{Fetch: true, Reason: "invalid local snapshot"}
	}

	remoteUpdated, err := c.remote.FetchLastUpdated(ctx, key)
	if err != nil {
		w := &StaleDataWarning{Key: key, Err: err}
		log.Warn().Err(err).Str("issue", key).Str("phase", "freshness").Msg("Remote metadata unavailable, refetching")
		return Decision{Fetch: true, Reason: "remote metadata unavailable", Warning: w}
	}

	if NeedsFetch(local, remoteUpdated, mode) {
		return Decision{Fetch: true, Reason: "remote is newer"}
	}
	return Decision{Fetch: false, Reason: "up to date"}
}
