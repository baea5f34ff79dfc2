package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/piotr-liszka/open-dev-activity/internal/domain"
	"github.com/piotr-liszka/open-dev-activity/internal/timeline"
)

// Input is one entity's processed data handed to the normalizer. Reviews
// carry the entity's complete review list, not the windowed one: the
// request-changes state depends on reviews outside the sync window.
type Input struct {
	Subject  domain.Subject
	Timeline timeline.Result
	Comments []domain.RawEvent
	Reviews  []domain.RawEvent
	Commits  []domain.RawEvent
}

// allowedMeta is the documented metadata key set per record kind. Keys
// outside the set are stripped at this boundary so downstream consumers
// can stay exhaustive over the tagged union.
var allowedMeta = map[domain.ActivityKind][]string{
	domain.ActivityStatusChange: {"from", "to", "working_ms"},
	domain.ActivityLabeled:      {"label"},
	domain.ActivityUnlabeled:    {"label"},
	domain.ActivityAssigned:     {"assignee"},
	domain.ActivityUnassigned:   {"assignee"},
	domain.ActivityClosed:       {},
	domain.ActivityReopened:     {},
	domain.ActivityComment:      {"body"},
	domain.ActivityReview:       {"state", "request_changes_active"},
	domain.ActivityCommit:       {"sha", "message"},
}

var historyActivityKinds = map[domain.EventKind]domain.ActivityKind{
	domain.EventStatusChanged: domain.ActivityStatusChange,
	domain.EventLabeled:       domain.ActivityLabeled,
	domain.EventUnlabeled:     domain.ActivityUnlabeled,
	domain.EventAssigned:      domain.ActivityAssigned,
	domain.EventUnassigned:    domain.ActivityUnassigned,
	domain.EventClosed:        domain.ActivityClosed,
	domain.EventReopened:      domain.ActivityReopened,
}

// Records maps an entity's history, comments, reviews and commits to
// normalized ActivityRecords. Only occurrences inside the half-open
// [window.From, window.To) are emitted, so chained back-to-back windows
// never both claim an event landing exactly on the boundary. Output is
// ascending by occurrence time; callers wanting another order reorder
// themselves. Pure mapping, no side effects.
func Records(in Input, window domain.Window) []domain.ActivityRecord {
	var out []domain.ActivityRecord

	statusIdx := 0
	for _, item := range in.Timeline.History {
		var closed *timeline.StatusInterval
		if item.Category == timeline.CategoryStatus && statusIdx < len(in.Timeline.Intervals) {
			closed = &in.Timeline.Intervals[statusIdx]
			statusIdx++
		}
		if !window.Contains(item.When) {
			continue
		}
		kind := historyActivityKinds[item.Kind]
		rec := domain.ActivityRecord{
			Kind:        kind,
			Author:      item.Actor,
			OccurredAt:  item.When,
			Description: historyDescription(item),
			Metadata:    map[string]string{},
		}
		switch kind {
		case domain.ActivityStatusChange:
			rec.Metadata["from"] = item.From
			rec.Metadata["to"] = item.Value
			if closed != nil {
				rec.Metadata["working_ms"] = fmt.Sprintf("%d", closed.Working.Milliseconds())
			}
		case domain.ActivityLabeled, domain.ActivityUnlabeled:
			rec.Metadata["label"] = item.Value
		case domain.ActivityAssigned, domain.ActivityUnassigned:
			rec.Metadata["assignee"] = item.Value
		}
		out = append(out, finish(rec, in.Subject))
	}

	for _, ev := range in.Comments {
		if ev.Kind != domain.EventCommented || !window.Contains(ev.OccurredAt) {
			continue
		}
		out = append(out, finish(domain.ActivityRecord{
			Kind:        domain.ActivityComment,
			Author:      ev.Actor,
			OccurredAt:  ev.OccurredAt,
			Description: truncate(ev.Payload["body"], 140),
			Metadata:    map[string]string{"body": ev.Payload["body"]},
		}, in.Subject))
	}

	blocking := requestChangesActive(in.Reviews)
	for _, ev := range in.Reviews {
		if ev.Kind != domain.EventReviewed || !window.Contains(ev.OccurredAt) {
			continue
		}
		state := strings.ToLower(ev.Payload["state"])
		out = append(out, finish(domain.ActivityRecord{
			Kind:        domain.ActivityReview,
			Author:      ev.Actor,
			OccurredAt:  ev.OccurredAt,
			Description: "submitted review: " + state,
			Metadata: map[string]string{
				"state":                  state,
				"request_changes_active": fmt.Sprintf("%t", blocking),
			},
		}, in.Subject))
	}

	for _, ev := range in.Commits {
		if ev.Kind != domain.EventCommitted || !window.Contains(ev.OccurredAt) {
			continue
		}
		out = append(out, finish(domain.ActivityRecord{
			Kind:        domain.ActivityCommit,
			Author:      ev.Actor,
			OccurredAt:  ev.OccurredAt,
			Description: truncate(firstLine(ev.Payload["message"]), 140),
			Metadata:    map[string]string{"sha": ev.Payload["sha"], "message": ev.Payload["message"]},
		}, in.Subject))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out
}

// requestChangesActive reports whether any reviewer's most recent review
// still requests changes. A later approval or plain comment from the same
// reviewer clears that reviewer's block; one blocking reviewer is enough.
func requestChangesActive(reviews []domain.RawEvent) bool {
	latest := map[string]domain.RawEvent{}
	for _, ev := range reviews {
		if ev.Kind != domain.EventReviewed || ev.Actor == "" {
			continue
		}
		prev, ok := latest[ev.Actor]
		if !ok || !ev.OccurredAt.Before(prev.OccurredAt) {
			latest[ev.Actor] = ev
		}
	}
	for _, ev := range latest {
		if strings.EqualFold(ev.Payload["state"], "changes_requested") {
			return true
		}
	}
	return false
}

// finish stamps subject fields, strips undocumented metadata keys and
// assigns the dedup key.
func finish(rec domain.ActivityRecord, sub domain.Subject) domain.ActivityRecord {
	rec.Repository = sub.Repo
	rec.Number = sub.Number
	rec.Title = sub.Title
	rec.URL = sub.URL
	rec.Metadata = filterMeta(rec.Kind, rec.Metadata)
	rec.DedupKey = Key(rec)
	return rec
}

func filterMeta(kind domain.ActivityKind, m map[string]string) map[string]string {
	allowed := allowedMeta[kind]
	out := make(map[string]string, len(allowed))
	for _, k := range allowed {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

func historyDescription(item timeline.HistoryItem) string {
	switch item.Category {
	case timeline.CategoryStatus:
		if item.From != "" {
			return fmt.Sprintf("moved from %s to %s", item.From, item.Value)
		}
		return "moved to " + item.Value
	case timeline.CategoryState:
		return item.Action
	default:
		if item.Value != "" {
			return item.Action + " " + item.Value
		}
		return item.Action
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
