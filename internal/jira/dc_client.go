package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"epicscope/internal/snapshot"

	"github.com/rs/zerolog/log"
)

type dcClient struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	retryBase  time.Duration

	throttleMu  sync.Mutex
	lastRequest time.Time
}

func NewDataCenterClient(cfg Config) Client {
	return newDataCenterClient(cfg)
}

func newDataCenterClient(cfg Config) *dcClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.EpicChildrenJQL == "" {
		cfg.EpicChildrenJQL = defaultEpicChildrenJQL
	}
	if len(cfg.EpicTypes) == 0 {
		cfg.EpicTypes = []string{"Epic"}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &dcClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		now:       time.Now,
		retryBase: time.Second,
	}
}

// throttle spaces requests by RequestDelay across all workers.
func (c *dcClient) throttle(ctx context.Context) error {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Trace().Dur("wait", wait).Msg("Throttling Jira request")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *dcClient) authenticateRequest(req *http.Request) {
	// 1. Prioritize Personal Access Token (PAT)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.Token))
		return
	}

	// 2. Fallback to session cookies
	cookies := []struct {
		name  string
		value string
	}{
		{"atlassian.xsrf.token", c.cfg.XsrfToken},
		{"JSESSIONID", c.cfg.SessionID},
		{"seraph.rememberme.cookie", c.cfg.RememberMe},
		{"GCILB", c.cfg.GCILB},
		{"GCLB", c.cfg.GCLB},
	}

	var cookiePairs []string
	for _, cookie := range cookies {
		if cookie.value != "" {
			// Built by hand: net/http's RFC 6265 validation drops GCLB values containing quotes.
			cookiePairs = append(cookiePairs, fmt.Sprintf("%s=%s", cookie.name, cookie.value))
		}
	}

	if len(cookiePairs) > 0 {
		req.Header.Set("Cookie", strings.Join(cookiePairs, "; "))
	}
}

// getJSON performs a GET with retries on network errors, 429 and 5xx.
func (c *dcClient) getJSON(ctx context.Context, op, key, rawURL string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(c.retryBase, attempt, lastErr)
			log.Debug().Str("op", op).Str("issue", key).Int("attempt", attempt).Dur("wait", wait).Msg("Retrying Jira request")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return &TransportError{Op: op, Key: key, Err: ctx.Err()}
			}
		}

		if err := c.throttle(ctx); err != nil {
			return &TransportError{Op: op, Key: key, Err: err}
		}

		err := c.doGet(ctx, op, key, rawURL, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) {
			return err
		}
		var te *TransportError
		if errors.As(err, &te) && !te.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return &TransportError{Op: op, Key: key, Err: ctx.Err()}
		}
		lastErr = err
	}
	return lastErr
}

func (c *dcClient) doGet(ctx context.Context, op, key, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &TransportError{Op: op, Key: key, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	c.authenticateRequest(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		case http.StatusTooManyRequests:
			te := &TransportError{Op: op, Key: key, StatusCode: resp.StatusCode}
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				te.RetryAfter = time.Duration(secs) * time.Second
			}
			return te
		default:
			return &TransportError{Op: op, Key: key, StatusCode: resp.StatusCode}
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Key: key, Err: fmt.Errorf("failed to decode Jira response: %w", err)}
	}
	return nil
}

// maxRetryWait bounds any single wait between attempts, whatever Retry-After asks for.
const maxRetryWait = 30 * time.Second

func backoff(base time.Duration, attempt int, lastErr error) time.Duration {
	wait := base << (attempt - 1)
	var te *TransportError
	if errors.As(lastErr, &te) && te.RetryAfter > 0 {
		wait = te.RetryAfter
	}
	return min(wait, maxRetryWait)
}

func (c *dcClient) FetchIssue(ctx context.Context, key string) (*snapshot.IssueSnapshot, error) {
	params := url.Values{}
	params.Set("fields", "*all")
	params.Set("expand", "changelog")
	issueURL := fmt.Sprintf("%s/rest/api/2/issue/%s?%s", c.cfg.BaseURL, url.PathEscape(key), params.Encode())

	log.Debug().Str("issue", key).Msg("Fetching issue from Jira")
	var dto IssueDTO
	if err := c.getJSON(ctx, "fetch issue", key, issueURL, &dto); err != nil {
		return nil, err
	}

	if dto.Changelog != nil && dto.Changelog.Total > len(dto.Changelog.Histories) {
		log.Warn().Str("issue", key).
			Int("total", dto.Changelog.Total).
			Int("returned", len(dto.Changelog.Histories)).
			Msg("Changelog truncated by Jira")
	}

	var children []string
	if slices.Contains(c.cfg.EpicTypes, dto.Fields.IssueType.Name) {
		var err error
		jql := strings.ReplaceAll(c.cfg.EpicChildrenJQL, "{key}", key)
		children, err = c.searchKeys(ctx, key, jql)
		var te *TransportError
		switch {
		case errors.As(err, &te) && te.StatusCode == http.StatusBadRequest, errors.Is(err, ErrNotFound):
			// The JQL references fields unknown to this instance; keep the issue without epic children.
			log.Error().Err(err).Str("issue", key).Str("jql", jql).Msg("Epic children search rejected by Jira")
			children = nil
		case err != nil:
			return nil, err
		}
	}

	return MapSnapshot(dto, children, c.cfg, c.now()), nil
}

func (c *dcClient) FetchLastUpdated(ctx context.Context, key string) (time.Time, error) {
	issueURL := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=updated", c.cfg.BaseURL, url.PathEscape(key))

	var dto struct {
		Fields struct {
			Updated string `json:"updated"`
		} `json:"fields"`
	}
	if err := c.getJSON(ctx, "fetch last updated", key, issueURL, &dto); err != nil {
		return time.Time{}, err
	}
	t, err := ParseTime(dto.Fields.Updated)
	if err != nil {
		return time.Time{}, &TransportError{Op: "fetch last updated", Key: key, Err: fmt.Errorf("bad updated timestamp %q: %w", dto.Fields.Updated, err)}
	}
	return t, nil
}

// searchKeys pages through a JQL search and returns issue keys in result order.
func (c *dcClient) searchKeys(ctx context.Context, key, jql string) ([]string, error) {
	const pageSize = 100
	var keys []string
	for startAt := 0; ; {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(pageSize))
		params.Set("fields", "issuetype")
		searchURL := fmt.Sprintf("%s/rest/api/2/search?%s", c.cfg.BaseURL, params.Encode())

		log.Debug().Str("issue", key).Str("jql", jql).Int("startAt", startAt).Msg("Searching epic children")
		var page SearchResponse
		if err := c.getJSON(ctx, "search children", key, searchURL, &page); err != nil {
			return nil, err
		}
		for _, is := range page.Issues {
			keys = append(keys, is.Key)
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return keys, nil
		}
	}
}
