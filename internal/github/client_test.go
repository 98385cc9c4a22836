package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ghrelay/internal/activity"
	logx "ghrelay/pkg/logx"
)

const eventsJSON = `[
  {
    "id": "101",
    "type": "PushEvent",
    "created_at": "2024-05-01T10:00:00Z",
    "actor": {"login": "octo"},
    "repo": {"name": "octo/hello"},
    "payload": {"ref": "refs/heads/main", "size": 2,
      "commits": [{"sha": "a1", "message": "first"}, {"sha": "b2", "message": "second"}]}
  },
  {
    "id": "102",
    "type": "IssueCommentEvent",
    "created_at": "2024-05-01T09:00:00Z",
    "actor": {"login": "octo"},
    "repo": {"name": "octo/hello"},
    "payload": {"action": "created",
      "issue": {"number": 7, "title": "bug", "html_url": "https://github.com/octo/hello/issues/7"},
      "comment": {"body": "hi", "html_url": "https://github.com/octo/hello/issues/7#c1"}}
  }
]`

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "tok"}, srv.Client(), logx.Nop())
}

func TestAccountEventsRequestAndDecode(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octo/events" {
			t.Errorf("path=%q", r.URL.Path)
		}
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Errorf("per_page=%q", got)
		}
		if got := r.Header.Get("Authorization"); got != "token tok" {
			t.Errorf("authorization=%q", got)
		}
		if got := r.Header.Get("Accept"); got != acceptHeader {
			t.Errorf("accept=%q", got)
		}
		w.Header().Set("X-RateLimit-Remaining", "4999")
		_, _ = w.Write([]byte(eventsJSON))
	})

	evs, err := c.AccountEvents(context.Background(), "octo")
	if err != nil {
		t.Fatalf("AccountEvents: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("len=%d", len(evs))
	}
	push := evs[0]
	if push.Kind() != activity.KindPush || push.Payload.Size != 2 || len(push.Payload.Commits) != 2 {
		t.Fatalf("push=%+v", push)
	}
	if !push.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at=%v", push.CreatedAt)
	}
	if push.Actor.URL != "https://github.com/octo" || push.Repo.URL != "https://github.com/octo/hello" {
		t.Fatalf("urls actor=%q repo=%q", push.Actor.URL, push.Repo.URL)
	}
	cm := evs[1]
	if cm.Payload.Issue == nil || cm.Payload.Issue.Number != 7 || cm.Payload.Comment == nil || cm.Payload.Comment.Body != "hi" {
		t.Fatalf("comment=%+v", cm.Payload)
	}
}

func TestRepoEventsPath(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/hello/events" {
			t.Errorf("path=%q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[]`))
	})
	evs, err := c.RepoEvents(context.Background(), "octo/hello")
	if err != nil {
		t.Fatalf("RepoEvents: %v", err)
	}
	if len(evs) != 0 {
		t.Fatalf("len=%d", len(evs))
	}

	if _, err := c.RepoEvents(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for invalid repo")
	}
}

func TestListRepos(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octo/repos" || r.URL.Query().Get("type") != "all" {
			t.Errorf("url=%q", r.URL.String())
		}
		_, _ = w.Write([]byte(`[{"full_name":"octo/a"},{"full_name":"octo/b"},{"full_name":""}]`))
	})
	repos, err := c.ListRepos(context.Background(), "octo")
	if err != nil {
		t.Fatalf("ListRepos: %v", err)
	}
	if len(repos) != 2 || repos[0] != "octo/a" || repos[1] != "octo/b" {
		t.Fatalf("repos=%v", repos)
	}
}

func TestAPIErrorCarriesStatusAndRateLimit(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	})

	_, err := c.AccountEvents(context.Background(), "octo")
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if ae.StatusCode != http.StatusForbidden || ae.RateLimitRemaining != 0 || !ae.RateLimited() {
		t.Fatalf("apiError=%+v", ae)
	}
	if ae.Message != "API rate limit exceeded" {
		t.Fatalf("message=%q", ae.Message)
	}
	if len(activity.ErrorFields(err)) == 0 {
		t.Fatalf("expected log fields through the wrapped error")
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.RepoEvents(context.Background(), "octo/missing")
	var ae *APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if ae.RateLimitRemaining != -1 {
		t.Fatalf("rate remaining=%d, want -1", ae.RateLimitRemaining)
	}
}
