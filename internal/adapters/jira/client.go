/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Connection identifies a tracker site and the credentials passed through to it.
type Connection struct {
	BaseURL  string `json:"jiraDomain"`
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
}

func (c Connection) Complete() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.Email) != "" && strings.TrimSpace(c.APIToken) != ""
}

// WithDefaults fills empty fields from def.
func (c Connection) WithDefaults(def Connection) Connection {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(c.Email) == "" {
		c.Email = def.Email
	}
	if strings.TrimSpace(c.APIToken) == "" {
		c.APIToken = def.APIToken
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	return c
}

// APIError is a non-2xx answer from the tracker (or from the relay in front of it).
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira api status=%d body=%s", e.Status, e.Body)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

type Options struct {
	RelayURL       string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Attempts       int
	Backoff        time.Duration
	HTTPClient     *http.Client
}

type Client struct {
	conn     Connection
	relayURL string
	http     *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
}

func NewClient(conn Connection, opts Options, log zerolog.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 300 * time.Millisecond
	}
	return &Client{
		conn:     conn.WithDefaults(Connection{}),
		relayURL: strings.TrimSpace(opts.RelayURL),
		http:     hc,
		limiter:  limiter,
		attempts: attempts,
		backoff:  backoff,
		log:      log,
	}
}

func (c *Client) BaseURL() string { return c.conn.BaseURL }

func (c *Client) apiURL(path string, q url.Values) string {
	base := strings.TrimRight(c.conn.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

// Get performs one authenticated GET and returns the decoded JSON object. With a relay
// configured the request goes through it first and falls back to a direct call.
func (c *Client) Get(ctx context.Context, u string) (map[string]any, error) {
	if c.conn.BaseURL == "" {
		return nil, errors.New("jira: empty baseURL")
	}
	if c.relayURL != "" {
		out, err := c.viaRelay(ctx, u)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn().Err(err).Str("url", u).Msg("relay request failed, trying direct")
	}
	return c.direct(ctx, u)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) direct(ctx context.Context, u string) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		body, err := fetch(ctx, c.http, u, c.conn.Email, c.conn.APIToken)
		if err == nil {
			return decodeObject(body)
		}
		lastErr = err
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(1<<attempt)):
		}
	}
	return nil, lastErr
}

func (c *Client) viaRelay(ctx context.Context, u string) (map[string]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(RelayRequest{URL: u, Email: c.conn.Email, APIToken: c.conn.APIToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("relay: %s", e.Error)
		}
		return nil, fmt.Errorf("relay: status=%d", resp.StatusCode)
	}
	return decodeObject(b)
}

func decodeObject(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("jira: decode response: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// BoardSprints lists one page of a board's sprints (Agile API).
func (c *Client) BoardSprints(ctx context.Context, boardID int64, startAt, max int, state string) (map[string]any, error) {
	if boardID <= 0 {
		return nil, errors.New("jira: invalid board id")
	}
	q := url.Values{}
	q.Set("startAt", strconv.Itoa(startAt))
	if max > 0 {
		q.Set("maxResults", strconv.Itoa(max))
	}
	if strings.TrimSpace(state) != "" {
		q.Set("state", state)
	}
	path := "/rest/agile/1.0/board/" + strconv.FormatInt(boardID, 10) + "/sprint"
	return c.Get(ctx, c.apiURL(path, q))
}

// Sprint fetches a single sprint record.
func (c *Client) Sprint(ctx context.Context, sprintID int64) (map[string]any, error) {
	if sprintID <= 0 {
		return nil, errors.New("jira: invalid sprint id")
	}
	return c.Get(ctx, c.apiURL("/rest/agile/1.0/sprint/"+strconv.FormatInt(sprintID, 10), nil))
}

func (c *Client) SprintIssues(ctx context.Context, sprintID int64, max int) (map[string]any, error) {
	if sprintID <= 0 {
		return nil, errors.New("jira: invalid sprint id")
	}
	q := url.Values{}
	if max > 0 {
		q.Set("maxResults", strconv.Itoa(max))
	}
	path := "/rest/agile/1.0/sprint/" + strconv.FormatInt(sprintID, 10) + "/issue"
	return c.Get(ctx, c.apiURL(path, q))
}

// Issue fetches one issue; fields limits the returned fields ("" means all).
func (c *Client) Issue(ctx context.Context, key, fields string) (map[string]any, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}
	q := url.Values{}
	if fields != "" {
		q.Set("fields", fields)
	}
	return c.Get(ctx, c.apiURL("/rest/api/3/issue/"+url.PathEscape(key), q))
}

// Search runs a JQL query and returns up to max issues with all fields.
func (c *Client) Search(ctx context.Context, jql string, max int) (map[string]any, error) {
	if strings.TrimSpace(jql) == "" {
		return nil, errors.New("jira: empty jql")
	}
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("fields", "*all")
	if max > 0 {
		q.Set("maxResults", strconv.Itoa(max))
	}
	return c.Get(ctx, c.apiURL("/rest/api/3/search/jql", q))
}

func (c *Client) Worklogs(ctx context.Context, key string, startAt, max int) (map[string]any, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}
	q := url.Values{}
	if startAt > 0 {
		q.Set("startAt", strconv.Itoa(startAt))
	}
	if max > 0 {
		q.Set("maxResults", strconv.Itoa(max))
	}
	return c.Get(ctx, c.apiURL("/rest/api/3/issue/"+url.PathEscape(key)+"/worklog", q))
}

func (c *Client) Comments(ctx context.Context, key string, startAt, max int) (map[string]any, error) {
	if key == "" {
		return nil, errors.New("jira: empty issue key")
	}
	q := url.Values{}
	if startAt > 0 {
		q.Set("startAt", strconv.Itoa(startAt))
	}
	if max > 0 {
		q.Set("maxResults", strconv.Itoa(max))
	}
	return c.Get(ctx, c.apiURL("/rest/api/3/issue/"+url.PathEscape(key)+"/comment", q))
}
