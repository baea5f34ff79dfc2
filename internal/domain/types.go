package domain

import "time"

// EntityKind distinguishes the two tracked units of work.
type EntityKind string

const (
	EntityIssue       EntityKind = "issue"
	EntityPullRequest EntityKind = "pull_request"
)

// EventKind is the closed set of raw event types a connector may emit.
// Unknown kinds coming off the wire are dropped during processing.
type EventKind string

const (
	EventStatusChanged EventKind = "status-changed"
	EventLabeled       EventKind = "labeled"
	EventUnlabeled     EventKind = "unlabeled"
	EventAssigned      EventKind = "assigned"
	EventUnassigned    EventKind = "unassigned"
	EventClosed        EventKind = "closed"
	EventReopened      EventKind = "reopened"
	EventCommented     EventKind = "commented"
	EventReviewed      EventKind = "reviewed"
	EventCommitted     EventKind = "committed"
)

// Subject identifies the entity a raw event belongs to.
type Subject struct {
	Kind     EntityKind
	Repo     string
	Number   int
	Title    string
	URL      string
	OpenedAt time.Time
}

// RawEvent is one atomic occurrence sourced from a connector. It lives only
// inside a single sync invocation. Payload keys are kind-specific:
// status-changed: from, to; labeled/unlabeled: label; assigned/unassigned:
// assignee; commented: body; reviewed: state; committed: sha, message.
type RawEvent struct {
	EntityID   string
	Subject    Subject
	Kind       EventKind
	Actor      string
	OccurredAt time.Time
	Payload    map[string]string

	// Source is the connector name, carried for error attribution.
	Source string
}

// ActivityKind tags a normalized ActivityRecord.
type ActivityKind string

const (
	ActivityStatusChange ActivityKind = "status_change"
	ActivityLabeled      ActivityKind = "labeled"
	ActivityUnlabeled    ActivityKind = "unlabeled"
	ActivityAssigned     ActivityKind = "assigned"
	ActivityUnassigned   ActivityKind = "unassigned"
	ActivityClosed       ActivityKind = "closed"
	ActivityReopened     ActivityKind = "reopened"
	ActivityComment      ActivityKind = "comment"
	ActivityReview       ActivityKind = "review"
	ActivityCommit       ActivityKind = "commit"
)

// ActivityRecord is the normalized, storage-ready unit. DedupKey is its
// identity: it never changes across repeated ingestion of the same logical
// event, while Title, Description and Metadata may be refreshed in place.
type ActivityRecord struct {
	Kind        ActivityKind
	Author      string
	OccurredAt  time.Time
	Repository  string
	Number      int
	Title       string
	URL         string
	Description string
	Metadata    map[string]string
	DedupKey    string
}

// Window is the half-open sync range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window. The upper bound is
// exclusive so back-to-back windows never both claim the same event.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}
