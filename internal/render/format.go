// Package render turns activity events into Telegram Markdown text and packs
// the result into length-bounded message blocks.
package render

import (
	"strconv"
	"strings"
	"time"

	"ghrelay/internal/activity"
)

// DefaultTimeLayout mimics an en-US locale timestamp ("5/1/2024, 10:00:00 AM").
const DefaultTimeLayout = "1/2/2006, 3:04:05 PM"

const commentPreviewRunes = 100

// Formatter renders one event. It is pure and safe for concurrent use.
type Formatter struct {
	loc    *time.Location
	layout string
	escape bool
}

type FormatterOption func(*Formatter)

// WithLocation sets the zone used for the event timestamp (default local).
func WithLocation(loc *time.Location) FormatterOption {
	return func(f *Formatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

func WithTimeLayout(layout string) FormatterOption {
	return func(f *Formatter) {
		if strings.TrimSpace(layout) != "" {
			f.layout = layout
		}
	}
}

// WithEscapedUserText escapes Markdown control characters in titles, comment
// bodies, commit messages and names.
func WithEscapedUserText(on bool) FormatterOption {
	return func(f *Formatter) { f.escape = on }
}

func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{loc: time.Local, layout: DefaultTimeLayout}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Formatter) text(s string) string {
	if f.escape {
		return EscapeMarkdown(s)
	}
	return s
}

// Format renders the fixed preamble followed by the type-specific body.
func (f *Formatter) Format(e activity.Event) string {
	var b strings.Builder
	b.WriteString("[+] *GitHub Activity*\n\n")
	b.WriteString("[>] User: " + Link(f.text(e.Actor.Login), e.Actor.URL) + "\n")
	b.WriteString("[#] Repository: " + Link(f.text(e.Repo.Name), e.Repo.URL) + "\n")
	b.WriteString("[@] Time: " + f.timestamp(e.CreatedAt) + "\n\n")
	f.body(&b, e)
	return b.String()
}

func (f *Formatter) timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc).Format(f.layout)
}

func (f *Formatter) body(b *strings.Builder, e activity.Event) {
	p := e.Payload
	switch e.Kind() {
	case activity.KindPush:
		b.WriteString("[~] *Push Event*\n")
		b.WriteString("Branch: `" + LastSegment(p.Ref) + "`\n")
		b.WriteString("Commits: " + strconv.Itoa(commitCount(p)) + "\n")
		if len(p.Commits) > 0 {
			b.WriteString("\nLatest commit:\n_" + f.text(p.Commits[0].Message) + "_")
		}

	case activity.KindCreate:
		b.WriteString("[+] *Create Event*\n")
		b.WriteString("Type: " + p.RefType + "\n")
		if p.Ref != "" {
			b.WriteString("Name: `" + p.Ref + "`")
		}

	case activity.KindDelete:
		b.WriteString("[-] *Delete Event*\n")
		b.WriteString("Type: " + p.RefType + "\n")
		b.WriteString("Name: `" + p.Ref + "`")

	case activity.KindIssues:
		it := item(p.Issue)
		b.WriteString("[!] *Issue " + p.Action + "*\n")
		b.WriteString("Title: " + Link(f.text(it.Title), it.URL) + "\n")
		b.WriteString("#" + number(it))

	case activity.KindIssueComment:
		it := item(p.Issue)
		body := ""
		if p.Comment != nil {
			body = p.Comment.Body
		}
		b.WriteString("[*] *Comment on Issue*\n")
		b.WriteString("Issue: " + Link("#"+number(it), it.URL) + "\n")
		b.WriteString("Comment: _" + f.text(TruncateRunes(body, commentPreviewRunes, "...")) + "_")

	case activity.KindPullRequest:
		pr := item(p.PullRequest)
		b.WriteString("[<>] *Pull Request " + p.Action + "*\n")
		b.WriteString("Title: " + Link(f.text(pr.Title), pr.URL) + "\n")
		b.WriteString("#" + number(pr))

	case activity.KindPullRequestReview:
		pr := item(p.PullRequest)
		state := ""
		if p.Review != nil {
			state = p.Review.State
		}
		b.WriteString("[?] *PR Review " + p.Action + "*\n")
		b.WriteString("PR: " + Link("#"+number(pr), pr.URL) + "\n")
		b.WriteString("State: " + state)

	case activity.KindPullRequestReviewComment:
		pr := item(p.PullRequest)
		b.WriteString("[*] *Comment on PR*\n")
		b.WriteString("PR: " + Link("#"+number(pr), pr.URL))

	case activity.KindWatch:
		b.WriteString("[*] *Starred the repository*")

	case activity.KindFork:
		var fork activity.Repo
		if p.Forkee != nil {
			fork = *p.Forkee
		}
		b.WriteString("[Y] *Forked the repository*\n")
		b.WriteString("Fork: " + Link(f.text(fork.Name), fork.URL))

	case activity.KindRelease:
		var rel activity.Release
		if p.Release != nil {
			rel = *p.Release
		}
		b.WriteString("[^] *Release " + p.Action + "*\n")
		b.WriteString("Tag: " + Link(f.text(rel.TagName), rel.URL) + "\n")
		b.WriteString("Name: " + f.text(rel.Name))

	default: // KindOther
		b.WriteString("[.] *" + activity.DisplayName(e.Type) + "*")
	}
}

// commitCount prefers the listed commits; newer feeds may omit the list and
// only report size.
func commitCount(p activity.Payload) int {
	if n := len(p.Commits); n > 0 {
		return n
	}
	return p.Size
}

func item(it *activity.Item) activity.Item {
	if it == nil {
		return activity.Item{}
	}
	return *it
}

func number(it activity.Item) string {
	if it.Number == 0 {
		return ""
	}
	return strconv.Itoa(it.Number)
}
