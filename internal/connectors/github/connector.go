package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

const perPage = 100

// eventKinds maps the GitHub issue-event names we care about. Anything
// outside the map (milestoned, renamed, cross-referenced and friends) is
// skipped at the source.
var eventKinds = map[string]domain.EventKind{
	"labeled":    domain.EventLabeled,
	"unlabeled":  domain.EventUnlabeled,
	"assigned":   domain.EventAssigned,
	"unassigned": domain.EventUnassigned,
	"closed":     domain.EventClosed,
	"reopened":   domain.EventReopened,
}

type Connector struct {
	client *gh.Client
	repos  []string
	log    zerolog.Logger
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger) *Connector {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GithubToken})
	return &Connector{
		client: gh.NewClient(oauth2.NewClient(ctx, ts)),
		repos:  cfg.GithubRepos,
		log:    log.With().Str("connector", "github").Logger(),
	}
}

func (c *Connector) Name() string { return "github" }

// Fetch lists issues and pull requests updated inside the window and pulls
// the complete event history of each. Histories are returned whole, even the
// parts outside the window: the timeline reconstruction needs every
// transition since the entity opened.
func (c *Connector) Fetch(ctx context.Context, window domain.Window) ([]domain.RawEvent, error) {
	var out []domain.RawEvent
	for _, full := range c.repos {
		owner, name, err := splitRepo(full)
		if err != nil {
			return nil, err
		}
		events, err := c.fetchRepo(ctx, owner, name, window)
		if err != nil {
			return nil, fmt.Errorf("repo %s: %w", full, err)
		}
		out = append(out, events...)
	}
	return out, nil
}

func (c *Connector) fetchRepo(ctx context.Context, owner, name string, window domain.Window) ([]domain.RawEvent, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Since:       window.From,
		Sort:        "updated",
		Direction:   "asc",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}
	var out []domain.RawEvent
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}
		for _, is := range issues {
			events, err := c.fetchEntity(ctx, owner, name, is)
			if err != nil {
				return nil, err
			}
			out = append(out, events...)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Connector) fetchEntity(ctx context.Context, owner, name string, is *gh.Issue) ([]domain.RawEvent, error) {
	repo := owner + "/" + name
	sub := domain.Subject{
		Kind:     domain.EntityIssue,
		Repo:     repo,
		Number:   is.GetNumber(),
		Title:    is.GetTitle(),
		URL:      is.GetHTMLURL(),
		OpenedAt: is.GetCreatedAt().Time,
	}
	if is.IsPullRequest() {
		sub.Kind = domain.EntityPullRequest
	}
	id := fmt.Sprintf("%s#%d", repo, sub.Number)

	base := func(kind domain.EventKind) domain.RawEvent {
		return domain.RawEvent{
			EntityID: id,
			Subject:  sub,
			Kind:     kind,
			Source:   "github",
			Payload:  map[string]string{},
		}
	}

	out, err := c.issueEvents(ctx, owner, name, sub.Number, base)
	if err != nil {
		return nil, err
	}
	comments, err := c.comments(ctx, owner, name, sub.Number, base)
	if err != nil {
		return nil, err
	}
	out = append(out, comments...)

	if sub.Kind == domain.EntityPullRequest {
		reviews, err := c.reviews(ctx, owner, name, sub.Number, base)
		if err != nil {
			return nil, err
		}
		out = append(out, reviews...)
		commits, err := c.commits(ctx, owner, name, sub.Number, base)
		if err != nil {
			return nil, err
		}
		out = append(out, commits...)
	}
	c.log.Debug().Str("entity", id).Int("events", len(out)).Msg("entity fetched")
	return out, nil
}

func (c *Connector) issueEvents(ctx context.Context, owner, name string, number int, base func(domain.EventKind) domain.RawEvent) ([]domain.RawEvent, error) {
	opts := &gh.ListOptions{PerPage: perPage}
	var out []domain.RawEvent
	for {
		events, resp, err := c.client.Issues.ListIssueEvents(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("issue events #%d: %w", number, err)
		}
		for _, e := range events {
			kind, ok := eventKinds[e.GetEvent()]
			if !ok {
				continue
			}
			ev := base(kind)
			ev.Actor = e.GetActor().GetLogin()
			ev.OccurredAt = e.GetCreatedAt().Time
			switch kind {
			case domain.EventLabeled, domain.EventUnlabeled:
				ev.Payload["label"] = e.GetLabel().GetName()
			case domain.EventAssigned, domain.EventUnassigned:
				ev.Payload["assignee"] = e.GetAssignee().GetLogin()
			}
			out = append(out, ev)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Connector) comments(ctx context.Context, owner, name string, number int, base func(domain.EventKind) domain.RawEvent) ([]domain.RawEvent, error) {
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	var out []domain.RawEvent
	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("comments #%d: %w", number, err)
		}
		for _, cm := range comments {
			ev := base(domain.EventCommented)
			ev.Actor = cm.GetUser().GetLogin()
			ev.OccurredAt = cm.GetCreatedAt().Time
			ev.Payload["body"] = cm.GetBody()
			out = append(out, ev)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Connector) reviews(ctx context.Context, owner, name string, number int, base func(domain.EventKind) domain.RawEvent) ([]domain.RawEvent, error) {
	opts := &gh.ListOptions{PerPage: perPage}
	var out []domain.RawEvent
	for {
		reviews, resp, err := c.client.PullRequests.ListReviews(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("reviews #%d: %w", number, err)
		}
		for _, rv := range reviews {
			// PENDING reviews have no submission time and are not activity yet.
			if rv.GetState() == "PENDING" {
				continue
			}
			ev := base(domain.EventReviewed)
			ev.Actor = rv.GetUser().GetLogin()
			ev.OccurredAt = rv.GetSubmittedAt().Time
			ev.Payload["state"] = rv.GetState()
			out = append(out, ev)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Connector) commits(ctx context.Context, owner, name string, number int, base func(domain.EventKind) domain.RawEvent) ([]domain.RawEvent, error) {
	opts := &gh.ListOptions{PerPage: perPage}
	var out []domain.RawEvent
	for {
		commits, resp, err := c.client.PullRequests.ListCommits(ctx, owner, name, number, opts)
		if err != nil {
			return nil, fmt.Errorf("commits #%d: %w", number, err)
		}
		for _, cm := range commits {
			ev := base(domain.EventCommitted)
			ev.Actor = cm.GetAuthor().GetLogin()
			if ev.Actor == "" {
				ev.Actor = cm.GetCommit().GetAuthor().GetName()
			}
			ev.OccurredAt = cm.GetCommit().GetAuthor().GetDate().Time
			ev.Payload["sha"] = cm.GetSHA()
			ev.Payload["message"] = cm.GetCommit().GetMessage()
			out = append(out, ev)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func splitRepo(full string) (owner, name string, err error) {
	parts := strings.SplitN(strings.TrimSpace(full), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github: repo %q must be owner/name", full)
	}
	return parts[0], parts[1], nil
}
