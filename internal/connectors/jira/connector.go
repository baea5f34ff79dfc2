package jira

import (
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

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

// jiraTime is the timestamp layout Jira's REST API emits.
const jiraTime = "2006-01-02T15:04:05.000-0700"

const pageSize = 100

type Connector struct {
	baseURL  string
	token    string
	user     string
	pass     string
	projects []string
	apiVer   string
	http     *http.Client
	limiter  *rate.Limiter
	log      zerolog.Logger
}

func New(cfg config.Config, log zerolog.Logger) *Connector {
	rps := cfg.JiraRPS
	if rps <= 0 {
		rps = 4
	}
	return &Connector{
		baseURL:  strings.TrimRight(cfg.JiraBaseURL, "/"),
		token:    cfg.JiraPAT,
		user:     cfg.JiraUsername,
		pass:     cfg.JiraPassword,
		projects: cfg.JiraProjects,
		apiVer:   cfg.JiraAPIVersion,
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		log:      log.With().Str("connector", "jira").Logger(),
	}
}

func (c *Connector) Name() string { return "jira" }

// Fetch searches for issues updated inside the window and pulls the full
// changelog and comment history of each. Histories are returned whole so the
// timeline reconstruction sees every transition since the issue was created.
func (c *Connector) Fetch(ctx context.Context, window domain.Window) ([]domain.RawEvent, error) {
	keys, err := c.searchUpdated(ctx, window)
	if err != nil {
		return nil, err
	}
	var out []domain.RawEvent
	for _, key := range keys {
		events, err := c.fetchIssue(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("issue %s: %w", key, err)
		}
		out = append(out, events...)
	}
	return out, nil
}

type searchResult struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []struct {
		Key string `json:"key"`
	} `json:"issues"`
}

func (c *Connector) searchUpdated(ctx context.Context, window domain.Window) ([]string, error) {
	jql := fmt.Sprintf(`updated >= "%s" AND updated < "%s"`,
		window.From.UTC().Format("2006-01-02 15:04"),
		window.To.UTC().Format("2006-01-02 15:04"))
	if len(c.projects) > 0 {
		jql = fmt.Sprintf("project IN (%s) AND %s", strings.Join(c.projects, ","), jql)
	}

	var keys []string
	startAt := 0
	for {
		q := url.Values{}
		q.Set("jql", jql)
		q.Set("fields", "key")
		q.Set("startAt", fmt.Sprint(startAt))
		q.Set("maxResults", fmt.Sprint(pageSize))
		var page searchResult
		if err := c.getJSON(ctx, c.apiPath("/search"), q, &page); err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		for _, is := range page.Issues {
			keys = append(keys, is.Key)
		}
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}
	c.log.Debug().Int("issues", len(keys)).Msg("window search done")
	return keys, nil
}

type issueResult struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string    `json:"summary"`
		Created jiraStamp `json:"created"`
		Project struct {
			Key string `json:"key"`
		} `json:"project"`
	} `json:"fields"`
	Changelog struct {
		Histories []struct {
			Author struct {
				DisplayName string `json:"displayName"`
				Name        string `json:"name"`
			} `json:"author"`
			Created jiraStamp `json:"created"`
			Items   []struct {
				Field      string `json:"field"`
				FromString string `json:"fromString"`
				ToString   string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
}

type commentsResult struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Comments   []struct {
		Author struct {
			DisplayName string `json:"displayName"`
			Name        string `json:"name"`
		} `json:"author"`
		Created jiraStamp `json:"created"`
		Body    string    `json:"body"`
	} `json:"comments"`
}

func (c *Connector) fetchIssue(ctx context.Context, key string) ([]domain.RawEvent, error) {
	q := url.Values{}
	q.Set("fields", "summary,created,project")
	q.Set("expand", "changelog")
	var is issueResult
	if err := c.getJSON(ctx, c.apiPath("/issue/"+url.PathEscape(key)), q, &is); err != nil {
		return nil, err
	}

	sub := domain.Subject{
		Kind:     domain.EntityIssue,
		Repo:     is.Fields.Project.Key,
		Number:   keyNumber(key),
		Title:    is.Fields.Summary,
		URL:      c.baseURL + "/browse/" + key,
		OpenedAt: is.Fields.Created.Time,
	}
	base := func(kind domain.EventKind) domain.RawEvent {
		return domain.RawEvent{
			EntityID: key,
			Subject:  sub,
			Kind:     kind,
			Source:   "jira",
			Payload:  map[string]string{},
		}
	}

	var out []domain.RawEvent
	for _, h := range is.Changelog.Histories {
		actor := h.Author.DisplayName
		if actor == "" {
			actor = h.Author.Name
		}
		for _, item := range h.Items {
			var ev domain.RawEvent
			switch strings.ToLower(item.Field) {
			case "status":
				ev = base(domain.EventStatusChanged)
				ev.Payload["from"] = item.FromString
				ev.Payload["to"] = item.ToString
			case "labels":
				if item.ToString != "" {
					ev = base(domain.EventLabeled)
					ev.Payload["label"] = item.ToString
				} else {
					ev = base(domain.EventUnlabeled)
					ev.Payload["label"] = item.FromString
				}
			case "assignee":
				if item.ToString != "" {
					ev = base(domain.EventAssigned)
					ev.Payload["assignee"] = item.ToString
				} else {
					ev = base(domain.EventUnassigned)
					ev.Payload["assignee"] = item.FromString
				}
			case "resolution":
				if item.ToString != "" {
					ev = base(domain.EventClosed)
				} else {
					ev = base(domain.EventReopened)
				}
			default:
				continue
			}
			ev.Actor = actor
			ev.OccurredAt = h.Created.Time
			out = append(out, ev)
		}
	}

	comments, err := c.fetchComments(ctx, key, base)
	if err != nil {
		return nil, err
	}
	return append(out, comments...), nil
}

func (c *Connector) fetchComments(ctx context.Context, key string, base func(domain.EventKind) domain.RawEvent) ([]domain.RawEvent, error) {
	var out []domain.RawEvent
	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", fmt.Sprint(startAt))
		q.Set("maxResults", fmt.Sprint(pageSize))
		var page commentsResult
		if err := c.getJSON(ctx, c.apiPath("/issue/"+url.PathEscape(key)+"/comment"), q, &page); err != nil {
			return nil, fmt.Errorf("comments: %w", err)
		}
		for _, cm := range page.Comments {
			ev := base(domain.EventCommented)
			ev.Actor = cm.Author.DisplayName
			if ev.Actor == "" {
				ev.Actor = cm.Author.Name
			}
			ev.OccurredAt = cm.Created.Time
			ev.Payload["body"] = cm.Body
			out = append(out, ev)
		}
		startAt += len(page.Comments)
		if len(page.Comments) == 0 || startAt >= page.Total {
			break
		}
	}
	return out, nil
}

func (c *Connector) apiPath(suffix string) string {
	ver := c.apiVer
	if ver == "" {
		ver = "2"
	}
	return "/rest/api/" + ver + suffix
}

// getJSON issues one paced GET with up to three attempts. 429 and 5xx
// responses are retried with exponential backoff; other non-2xx responses
// fail immediately.
func (c *Connector) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	if c.baseURL == "" {
		return errors.New("jira: empty base url")
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		} else if c.user != "" && c.pass != "" {
			req.SetBasicAuth(c.user, c.pass)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			err = func() error {
				defer resp.Body.Close()
				if resp.StatusCode >= 300 {
					b, _ := io.ReadAll(resp.Body)
					return fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
				}
				return json.NewDecoder(resp.Body).Decode(out)
			}()
			if err == nil {
				return nil
			}
			if resp.StatusCode != 429 && resp.StatusCode < 500 {
				return err
			}
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return lastErr
}

// keyNumber extracts the numeric part of an issue key like "PROJ-123".
func keyNumber(key string) int {
	i := strings.LastIndexByte(key, '-')
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// jiraStamp parses Jira's millisecond-offset timestamp format.
type jiraStamp struct {
	time.Time
}

func (s *jiraStamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	t, err := time.Parse(jiraTime, raw)
	if err != nil {
		return err
	}
	s.Time = t.UTC()
	return nil
}
