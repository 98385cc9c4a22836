package render

import (
	"strings"
	"testing"
	"time"

	"ghrelay/internal/activity"
)

func baseEvent(tag string) activity.Event {
	return activity.Event{
		ID:        "1",
		Type:      tag,
		CreatedAt: time.Date(2024, 5, 1, 14, 5, 9, 0, time.UTC),
		Actor:     activity.Actor{Login: "octo", URL: "https://github.com/octo"},
		Repo:      activity.Repo{Name: "octo/hello", URL: "https://github.com/octo/hello"},
	}
}

func TestFormatPreamble(t *testing.T) {
	t.Parallel()

	f := NewFormatter(WithLocation(time.UTC))
	got := f.Format(baseEvent("WatchEvent"))
	want := "[+] *GitHub Activity*\n\n" +
		"[>] User: [octo](https://github.com/octo)\n" +
		"[#] Repository: [octo/hello](https://github.com/octo/hello)\n" +
		"[@] Time: 5/1/2024, 2:05:09 PM\n\n" +
		"[*] *Starred the repository*"
	if got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestFormatBodies(t *testing.T) {
	t.Parallel()

	f := NewFormatter(WithLocation(time.UTC))
	long := strings.Repeat("x", 150)

	cases := []struct {
		name  string
		event func() activity.Event
		want  string
	}{
		{
			name: "push",
			event: func() activity.Event {
				e := baseEvent("PushEvent")
				e.Payload.Ref = "refs/heads/feature/login"
				e.Payload.Commits = []activity.Commit{{Message: "fix bug"}, {Message: "second"}}
				return e
			},
			want: "[~] *Push Event*\nBranch: `login`\nCommits: 2\n\nLatest commit:\n_fix bug_",
		},
		{
			name: "push without commit list",
			event: func() activity.Event {
				e := baseEvent("PushEvent")
				e.Payload.Ref = "refs/heads/main"
				e.Payload.Size = 3
				return e
			},
			want: "[~] *Push Event*\nBranch: `main`\nCommits: 3\n",
		},
		{
			name: "create without ref",
			event: func() activity.Event {
				e := baseEvent("CreateEvent")
				e.Payload.RefType = "repository"
				return e
			},
			want: "[+] *Create Event*\nType: repository\n",
		},
		{
			name: "delete",
			event: func() activity.Event {
				e := baseEvent("DeleteEvent")
				e.Payload.RefType = "branch"
				e.Payload.Ref = "old"
				return e
			},
			want: "[-] *Delete Event*\nType: branch\nName: `old`",
		},
		{
			name: "issues",
			event: func() activity.Event {
				e := baseEvent("IssuesEvent")
				e.Payload.Action = "opened"
				e.Payload.Issue = &activity.Item{Number: 7, Title: "Crash", URL: "u"}
				return e
			},
			want: "[!] *Issue opened*\nTitle: [Crash](u)\n#7",
		},
		{
			name: "issue comment truncated",
			event: func() activity.Event {
				e := baseEvent("IssueCommentEvent")
				e.Payload.Issue = &activity.Item{Number: 7, URL: "u"}
				e.Payload.Comment = &activity.Comment{Body: long}
				return e
			},
			want: "[*] *Comment on Issue*\nIssue: [#7](u)\nComment: _" + strings.Repeat("x", 100) + "..._",
		},
		{
			name: "pull request",
			event: func() activity.Event {
				e := baseEvent("PullRequestEvent")
				e.Payload.Action = "closed"
				e.Payload.PullRequest = &activity.Item{Number: 3, Title: "Add", URL: "p"}
				return e
			},
			want: "[<>] *Pull Request closed*\nTitle: [Add](p)\n#3",
		},
		{
			name: "review",
			event: func() activity.Event {
				e := baseEvent("PullRequestReviewEvent")
				e.Payload.Action = "created"
				e.Payload.PullRequest = &activity.Item{Number: 3, URL: "p"}
				e.Payload.Review = &activity.Review{State: "approved"}
				return e
			},
			want: "[?] *PR Review created*\nPR: [#3](p)\nState: approved",
		},
		{
			name: "review comment",
			event: func() activity.Event {
				e := baseEvent("PullRequestReviewCommentEvent")
				e.Payload.PullRequest = &activity.Item{Number: 3, URL: "p"}
				return e
			},
			want: "[*] *Comment on PR*\nPR: [#3](p)",
		},
		{
			name: "fork",
			event: func() activity.Event {
				e := baseEvent("ForkEvent")
				e.Payload.Forkee = &activity.Repo{Name: "me/hello", URL: "f"}
				return e
			},
			want: "[Y] *Forked the repository*\nFork: [me/hello](f)",
		},
		{
			name: "release",
			event: func() activity.Event {
				e := baseEvent("ReleaseEvent")
				e.Payload.Action = "published"
				e.Payload.Release = &activity.Release{TagName: "v1", Name: "One", URL: "r"}
				return e
			},
			want: "[^] *Release published*\nTag: [v1](r)\nName: One",
		},
		{
			name:  "unknown",
			event: func() activity.Event { return baseEvent("FooEvent") },
			want:  "[.] *Foo*",
		},
		{
			name:  "missing payload",
			event: func() activity.Event { return baseEvent("IssuesEvent") },
			want:  "[!] *Issue *\nTitle: \n#",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := f.Format(tc.event())
			if !strings.HasSuffix(got, "\n\n"+tc.want) {
				t.Fatalf("body mismatch\ngot:  %q\nwant suffix: %q", got, tc.want)
			}
		})
	}
}

func TestFormatEscapesUserText(t *testing.T) {
	t.Parallel()

	e := baseEvent("PushEvent")
	e.Payload.Ref = "refs/heads/main"
	e.Payload.Commits = []activity.Commit{{Message: "snake_case *bold*"}}

	plain := NewFormatter(WithLocation(time.UTC)).Format(e)
	if !strings.Contains(plain, "_snake_case *bold*_") {
		t.Fatalf("unescaped output changed: %q", plain)
	}
	escaped := NewFormatter(WithLocation(time.UTC), WithEscapedUserText(true)).Format(e)
	if !strings.Contains(escaped, `_snake\_case \*bold\*_`) {
		t.Fatalf("escaped output: %q", escaped)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	if got := TruncateRunes("héllo", 2, "..."); got != "hé..." {
		t.Fatalf("got %q", got)
	}
	if got := TruncateRunes("abc", 3, "..."); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
