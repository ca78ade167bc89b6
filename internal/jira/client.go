package jira

import (
	"context"
	"time"

	"epicscope/internal/snapshot"
)

// Client is the transport boundary used by the hierarchy builder.
type Client interface {
	// FetchIssue returns a fresh snapshot, ErrNotFound or a *TransportError.
	FetchIssue(ctx context.Context, key string) (*snapshot.IssueSnapshot, error)
	// FetchLastUpdated returns the remote record's last-update time.
	FetchLastUpdated(ctx context.Context, key string) (time.Time, error)
}

// Config holds the authentication and connection settings for Jira.
type Config struct {
	BaseURL string

	// Personal Access Token (preferred)
	Token string

	// Data Center Cookies
	XsrfToken  string
	SessionID  string
	RememberMe string

	// Load Balancer Cookies
	GCILB string
	GCLB  string

	// Performance Settings
	RequestDelay time.Duration
	Timeout      time.Duration
	MaxRetries   int

	// EpicTypes are issue types whose children are found by EpicChildrenJQL.
	EpicTypes []string
	// EpicChildrenJQL uses {key} as placeholder for the epic key.
	EpicChildrenJQL string
	// EpicLinkField is the custom field id holding a story's epic key, if any.
	EpicLinkField string
	// CustomFields maps Jira field ids to snapshot field names (e.g. customfield_10020 -> targetEnd).
	CustomFields map[string]string
}

const defaultEpicChildrenJQL = `"Epic Link" = {key} OR parent = {key} ORDER BY key ASC`

// NewClient creates a new Jira client based on the provided configuration.
func NewClient(cfg Config) Client {
	return NewDataCenterClient(cfg)
}
