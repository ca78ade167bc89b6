package jira

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the issue does not exist or is not visible.
var ErrNotFound = errors.New("issue not found")

// TransportError describes a failed Jira request after retries.
type TransportError struct {
	Op         string
	Key        string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return fmt.Sprintf("%s %s: Jira authentication failed (%d), check token or session cookies", e.Op, e.Key, e.StatusCode)
	case e.StatusCode == 429:
		return fmt.Sprintf("%s %s: Jira rate limit exceeded (429), retry after %s", e.Op, e.Key, e.RetryAfter)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: Jira API returned status %d", e.Op, e.Key, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the request may succeed.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
