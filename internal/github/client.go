// Package github is a minimal REST client for the public activity feeds.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"ghrelay/internal/activity"
	logx "ghrelay/pkg/logx"
)

const (
	DefaultBaseURL  = "https://api.github.com"
	DefaultPageSize = 100
	acceptHeader    = "application/vnd.github.v3+json"
	userAgent       = "ghrelay"
	maxErrorBody    = 512
)

// HTTPClient is the subset of *http.Client used here (allows fakes in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL  string
	Token    string
	PageSize int
	Timeout  time.Duration
}

// Client implements activity.Source and relay.RepoLister.
type Client struct {
	baseURL  string
	token    string
	pageSize int
	http     HTTPClient
	log      logx.Logger
}

// NewClient builds a client. A nil httpClient gets a plain *http.Client with
// cfg.Timeout.
func NewClient(cfg Config, httpClient HTTPClient, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ps := cfg.PageSize
	if ps <= 0 || ps > 100 {
		ps = DefaultPageSize
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{baseURL: base, token: strings.TrimSpace(cfg.Token), pageSize: ps, http: httpClient, log: log}
}

type listOptions struct {
	PerPage int    `url:"per_page,omitempty"`
	Type    string `url:"type,omitempty"`
}

// AccountEvents returns the most recent page of events performed by account.
func (c *Client) AccountEvents(ctx context.Context, account string) ([]activity.Event, error) {
	var raw []rawEvent
	if err := c.get(ctx, "/users/"+url.PathEscape(account)+"/events", listOptions{PerPage: c.pageSize}, &raw); err != nil {
		return nil, fmt.Errorf("account events %s: %w", account, err)
	}
	return convertEvents(raw), nil
}

// RepoEvents returns the most recent page of events in repo ("owner/name").
func (c *Client) RepoEvents(ctx context.Context, repo string) ([]activity.Event, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repo events: invalid repository %q", repo)
	}
	var raw []rawEvent
	path := "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name) + "/events"
	if err := c.get(ctx, path, listOptions{PerPage: c.pageSize}, &raw); err != nil {
		return nil, fmt.Errorf("repo events %s: %w", repo, err)
	}
	return convertEvents(raw), nil
}

// ListRepos returns the full names of the repositories owned by account
// (first page only).
func (c *Client) ListRepos(ctx context.Context, account string) ([]string, error) {
	var raw []rawRepo
	if err := c.get(ctx, "/users/"+url.PathEscape(account)+"/repos", listOptions{PerPage: c.pageSize, Type: "all"}, &raw); err != nil {
		return nil, fmt.Errorf("list repos %s: %w", account, err)
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if r.FullName != "" {
			out = append(out, r.FullName)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, opt any, out any) error {
	u := c.baseURL + path
	if opt != nil {
		v, err := query.Values(opt)
		if err != nil {
			return fmt.Errorf("encode query: %w", err)
		}
		if q := v.Encode(); q != "" {
			u += "?" + q
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	remaining := rateRemaining(resp.Header)
	c.log.Debug("github request",
		logx.String("path", path),
		logx.Int("status", resp.StatusCode),
		logx.Int("rate_remaining", remaining),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode:         resp.StatusCode,
			RateLimitRemaining: remaining,
			Path:               path,
			Message:            apiMessage(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is a non-200 response.
type APIError struct {
	StatusCode int
	// RateLimitRemaining is X-RateLimit-Remaining, or -1 when absent.
	RateLimitRemaining int
	Path               string
	Message            string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("github api %s: status %d", e.Path, e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// RateLimited reports a 403/429 with no remaining quota.
func (e *APIError) RateLimited() bool {
	return (e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests) && e.RateLimitRemaining == 0
}

func (e *APIError) LogFields() []logx.Field {
	return []logx.Field{
		logx.Int("status", e.StatusCode),
		logx.Int("rate_remaining", e.RateLimitRemaining),
		logx.Bool("rate_limited", e.RateLimited()),
	}
}

func rateRemaining(h http.Header) int {
	v := strings.TrimSpace(h.Get("X-RateLimit-Remaining"))
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}

func apiMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &m) == nil && m.Message != "" {
		return m.Message
	}
	return strings.TrimSpace(string(body))
}
