// Package activity models activity events, merges feeds from several sources
// and decides which events are new relative to a watermark.
package activity

import (
	"strings"
	"time"
)

// Event is one unit of recorded activity (push, issue action, ...).
// Events are immutable once fetched.
type Event struct {
	ID        string
	Type      string // raw tag, e.g. "PushEvent"; the set is open
	CreatedAt time.Time
	Actor     Actor
	Repo      Repo
	Payload   Payload
}

// Kind classifies the tag; unknown tags map to KindOther.
func (e Event) Kind() Kind { return KindOf(e.Type) }

type Actor struct {
	Login string
	URL   string // profile page
}

type Repo struct {
	Name string // owner/name
	URL  string
}

// Payload is the union of the fields used by the known event types.
// Absent fields stay zero.
type Payload struct {
	Action  string
	Ref     string
	RefType string
	Size    int // push: number of commits reported by the feed
	Commits []Commit

	Issue       *Item
	PullRequest *Item
	Comment     *Comment
	Review      *Review
	Release     *Release
	Forkee      *Repo
}

type Commit struct {
	SHA     string
	Message string
}

// Item is an issue or pull request reference.
type Item struct {
	Number int
	Title  string
	URL    string
}

type Comment struct {
	Body string
	URL  string
}

type Review struct {
	State string
}

type Release struct {
	TagName string
	Name    string
	URL     string
}

// Kind enumerates the event tags with a dedicated rendering.
type Kind int

const (
	KindOther Kind = iota
	KindPush
	KindCreate
	KindDelete
	KindIssues
	KindIssueComment
	KindPullRequest
	KindPullRequestReview
	KindPullRequestReviewComment
	KindWatch
	KindFork
	KindRelease
)

var kindByTag = map[string]Kind{
	"PushEvent":                     KindPush,
	"CreateEvent":                   KindCreate,
	"DeleteEvent":                   KindDelete,
	"IssuesEvent":                   KindIssues,
	"IssueCommentEvent":             KindIssueComment,
	"PullRequestEvent":              KindPullRequest,
	"PullRequestReviewEvent":        KindPullRequestReview,
	"PullRequestReviewCommentEvent": KindPullRequestReviewComment,
	"WatchEvent":                    KindWatch,
	"ForkEvent":                     KindFork,
	"ReleaseEvent":                  KindRelease,
}

// KindOf maps a raw tag to its Kind.
func KindOf(tag string) Kind {
	if k, ok := kindByTag[tag]; ok {
		return k
	}
	return KindOther
}

// DisplayName strips the conventional "Event" suffix ("FooEvent" -> "Foo").
func DisplayName(tag string) string {
	if name := strings.TrimSuffix(tag, "Event"); name != "" {
		return name
	}
	return tag
}
