package github

import (
	"time"

	"ghrelay/internal/activity"
)

const webBase = "https://github.com/"

type rawEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Actor     struct {
		Login        string `json:"login"`
		DisplayLogin string `json:"display_login"`
	} `json:"actor"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload rawPayload `json:"payload"`
}

type rawPayload struct {
	Action  string `json:"action"`
	Ref     string `json:"ref"`
	RefType string `json:"ref_type"`
	Size    int    `json:"size"`
	Commits []struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
	} `json:"commits"`
	Issue       *rawItem `json:"issue"`
	PullRequest *rawItem `json:"pull_request"`
	Comment     *struct {
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
	} `json:"comment"`
	Review *struct {
		State string `json:"state"`
	} `json:"review"`
	Release *struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
		HTMLURL string `json:"html_url"`
	} `json:"release"`
	Forkee *struct {
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
	} `json:"forkee"`
}

type rawItem struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

type rawRepo struct {
	FullName string `json:"full_name"`
}

func convertEvents(raw []rawEvent) []activity.Event {
	out := make([]activity.Event, 0, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		out = append(out, convertEvent(r))
	}
	return out
}

func convertEvent(r rawEvent) activity.Event {
	login := r.Actor.Login
	if login == "" {
		login = r.Actor.DisplayLogin
	}
	e := activity.Event{
		ID:        r.ID,
		Type:      r.Type,
		CreatedAt: r.CreatedAt,
		Actor:     activity.Actor{Login: login, URL: webURL(login)},
		Repo:      activity.Repo{Name: r.Repo.Name, URL: webURL(r.Repo.Name)},
	}

	p := r.Payload
	e.Payload = activity.Payload{
		Action:  p.Action,
		Ref:     p.Ref,
		RefType: p.RefType,
		Size:    p.Size,
	}
	for _, c := range p.Commits {
		e.Payload.Commits = append(e.Payload.Commits, activity.Commit{SHA: c.SHA, Message: c.Message})
	}
	if p.Issue != nil {
		e.Payload.Issue = &activity.Item{Number: p.Issue.Number, Title: p.Issue.Title, URL: p.Issue.HTMLURL}
	}
	if p.PullRequest != nil {
		e.Payload.PullRequest = &activity.Item{Number: p.PullRequest.Number, Title: p.PullRequest.Title, URL: p.PullRequest.HTMLURL}
	}
	if p.Comment != nil {
		e.Payload.Comment = &activity.Comment{Body: p.Comment.Body, URL: p.Comment.HTMLURL}
	}
	if p.Review != nil {
		e.Payload.Review = &activity.Review{State: p.Review.State}
	}
	if p.Release != nil {
		e.Payload.Release = &activity.Release{TagName: p.Release.TagName, Name: p.Release.Name, URL: p.Release.HTMLURL}
	}
	if p.Forkee != nil {
		e.Payload.Forkee = &activity.Repo{Name: p.Forkee.FullName, URL: p.Forkee.HTMLURL}
	}
	return e
}

func webURL(path string) string {
	if path == "" {
		return ""
	}
	return webBase + path
}
