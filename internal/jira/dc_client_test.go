package jira

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const epicJSON = `{
  "key": "BE-1",
  "fields": {
    "summary": "Checkout revamp",
    "issuetype": {"name": "Epic"},
    "status": {"name": "In Progress", "statusCategory": {"key": "indeterminate"}},
    "created": "2025-01-06T09:00:00.000+0100",
    "updated": "2025-02-01T10:30:00.000+0100",
    "project": {"key": "BE"},
    "fixVersions": [{"name": "PI28"}],
    "customfield_100": "2025-06-30",
    "customfield_200": {"value": "Team Rocket"},
    "issuelinks": [
      {"type": {"name": "Realization", "inward": "is realized by", "outward": "realizes"}, "inwardIssue": {"key": "CORE-7"}},
      {"type": {"name": "Blocks", "inward": "is blocked by", "outward": "blocks"}, "outwardIssue": {"key": "OPS-3"}}
    ]
  },
  "changelog": {
    "total": 1,
    "histories": [
      {"created": "2025-01-10T08:00:00.000+0000", "author": {"displayName": "Ana"},
       "items": [{"field": "status", "fromString": "Funnel", "toString": "In Progress"},
                 {"field": "Target end", "fromString": "", "toString": "2025-06-30"}]}
    ]
  }
}`

func newTestClient(srv *httptest.Server) *dcClient {
	c := newDataCenterClient(Config{
		BaseURL:      srv.URL,
		Token:        "secret",
		CustomFields: map[string]string{"customfield_100": "targetEnd", "customfield_200": "team"},
	})
	c.retryBase = time.Millisecond
	c.now = func() time.Time { return time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchIssue_MapsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/rest/api/2/issue/BE-1"):
			if r.URL.Query().Get("expand") != "changelog" {
				t.Errorf("expected changelog expansion")
			}
			w.Write([]byte(epicJSON))
		case r.URL.Path == "/rest/api/2/search":
			if !strings.Contains(r.URL.Query().Get("jql"), `"Epic Link" = BE-1`) {
				t.Errorf("unexpected jql %q", r.URL.Query().Get("jql"))
			}
			w.Write([]byte(`{"startAt":0,"total":2,"issues":[{"key":"ST-1"},{"key":"ST-2"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	snap, err := newTestClient(srv).FetchIssue(context.Background(), "BE-1")
	if err != nil {
		t.Fatalf("FetchIssue failed: %v", err)
	}

	if snap.Type != "Epic" || snap.Status() != "In Progress" {
		t.Errorf("unexpected type/status %s/%s", snap.Type, snap.Status())
	}
	if created, ok := snap.Created(); !ok || !created.Equal(time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected created %v (%v)", created, ok)
	}
	if snap.StringField("team") != "Team Rocket" || snap.StringField("targetEnd") != "2025-06-30" {
		t.Errorf("custom fields not mapped: %v", snap.Fields)
	}
	if !snap.FetchedAt.Equal(time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected fetchedAt %v", snap.FetchedAt)
	}

	wantLinks := []struct{ typ, key string }{
		{RelRealizedBy, "CORE-7"},
		{"blocks", "OPS-3"},
		{RelIssueInEpic, "ST-1"},
		{RelIssueInEpic, "ST-2"},
	}
	if len(snap.Links) != len(wantLinks) {
		t.Fatalf("expected %d links, got %+v", len(wantLinks), snap.Links)
	}
	for i, w := range wantLinks {
		if snap.Links[i].LinkType != w.typ || snap.Links[i].TargetKey != w.key {
			t.Errorf("link %d: expected %s->%s, got %+v", i, w.typ, w.key, snap.Links[i])
		}
	}

	if len(snap.ChangeLog) != 2 {
		t.Fatalf("expected 2 change entries, got %d", len(snap.ChangeLog))
	}
	if snap.ChangeLog[0].Author != "Ana" || snap.ChangeLog[1].Field != "Target end" {
		t.Errorf("unexpected changelog %+v", snap.ChangeLog)
	}
}

func TestFetchIssue_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(srv).FetchIssue(context.Background(), "GONE-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchLastUpdated_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"fields":{"updated":"2025-02-01T10:30:00.000+0000"}}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv).FetchLastUpdated(context.Background(), "BE-1")
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if !got.Equal(time.Date(2025, 2, 1, 10, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected timestamp %v", got)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestFetchLastUpdated_AuthFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchLastUpdated(context.Background(), "BE-1")
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 transport error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestRelationName(t *testing.T) {
	tests := map[string]string{
		"is realized by": RelRealizedBy,
		"realizes":       RelRealizes,
		"is blocked by":  "is_blocked_by",
		"relates to":     "relates_to",
		"Clones":         "clones",
	}
	for in, want := range tests {
		if got := relationName(in, ""); got != want {
			t.Errorf("relationName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := relationName("", "Duplicate"); got != "duplicate" {
		t.Errorf("expected fallback to type name, got %q", got)
	}
}

func TestBackoff_CapsRetryAfter(t *testing.T) {
	cases := []struct {
		name    string
		attempt int
		err     error
		want    time.Duration
	}{
		{"exponential", 3, errors.New("reset"), 4 * time.Second},
		{"retry after honoured", 1, &TransportError{StatusCode: 429, RetryAfter: 5 * time.Second}, 5 * time.Second},
		{"retry after capped", 1, &TransportError{StatusCode: 429, RetryAfter: time.Hour}, maxRetryWait},
		{"exponential capped", 12, errors.New("reset"), maxRetryWait},
	}
	for _, tc := range cases {
		if got := backoff(time.Second, tc.attempt, tc.err); got != tc.want {
			t.Errorf("%s: backoff = %v, want %v", tc.name, got, tc.want)
		}
	}
}
