package timeline

import (
	"sort"
	"time"

	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

// Category groups history items by what changed on the entity.
type Category string

const (
	CategoryStatus     Category = "status"
	CategoryLabel      Category = "label"
	CategoryAssignment Category = "assignment"
	CategoryState      Category = "state"
)

// StatusInitial is the sentinel status an entity holds from openedAt until
// its first recorded transition, when the transition carries no previous
// value.
const StatusInitial = "Open"

// HistoryItem is one entry of an entity's ordered causal history.
type HistoryItem struct {
	Kind     domain.EventKind
	Category Category
	Action   string
	Actor    string
	From     string
	Value    string
	When     time.Time
}

// StatusInterval is a maximal range during which the entity held one
// status. Intervals are contiguous and non-overlapping; the last one is
// closed at the caller's asOf cutoff and its duration is recomputed on
// every run, never cached.
type StatusInterval struct {
	Status    string
	StartedAt time.Time
	EndedAt   time.Time
	Working   time.Duration
}

// Result is the processed view of one entity's raw events.
type Result struct {
	History   []HistoryItem
	Intervals []StatusInterval
	// ByStatus sums working time across all intervals of each status; a
	// status entered twice accumulates both visits.
	ByStatus map[string]time.Duration
	// Dropped counts malformed or unknown events skipped during mapping.
	Dropped int
}

type kindSpec struct {
	category Category
	action   string
	valueKey string
}

// historyKinds maps raw event kinds to history categories. Comment, review
// and commit events are separate activity streams handled by the
// normalizer, so they are intentionally absent here.
var historyKinds = map[domain.EventKind]kindSpec{
	domain.EventStatusChanged: {CategoryStatus, "moved to", "to"},
	domain.EventLabeled:       {CategoryLabel, "added label", "label"},
	domain.EventUnlabeled:     {CategoryLabel, "removed label", "label"},
	domain.EventAssigned:      {CategoryAssignment, "assigned", "assignee"},
	domain.EventUnassigned:    {CategoryAssignment, "unassigned", "assignee"},
	domain.EventClosed:        {CategoryState, "closed", ""},
	domain.EventReopened:      {CategoryState, "reopened", ""},
}

func isActivityStream(k domain.EventKind) bool {
	switch k {
	case domain.EventCommented, domain.EventReviewed, domain.EventCommitted:
		return true
	}
	return false
}

// Process turns one entity's unordered raw events into an ordered history
// and the status intervals they imply, attributing working time to the
// status active during each interval.
//
// Events are stably sorted by occurrence time, so simultaneous events keep
// their arrival order: deterministic, but not a claim of event-time
// precision below the source clock's resolution. Malformed events (missing
// actor or timestamp) and unknown kinds are dropped without affecting their
// neighbors.
func Process(entityID string, events []domain.RawEvent, openedAt, asOf time.Time, cal Calendar) Result {
	sorted := make([]domain.RawEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})

	res := Result{ByStatus: map[string]time.Duration{}}
	for _, ev := range sorted {
		if isActivityStream(ev.Kind) {
			continue
		}
		spec, ok := historyKinds[ev.Kind]
		if !ok {
			res.Dropped++
			continue
		}
		if ev.Actor == "" || ev.OccurredAt.IsZero() {
			res.Dropped++
			continue
		}
		item := HistoryItem{
			Kind:     ev.Kind,
			Category: spec.category,
			Action:   spec.action,
			Actor:    ev.Actor,
			When:     ev.OccurredAt,
		}
		if spec.valueKey != "" {
			item.Value = ev.Payload[spec.valueKey]
		}
		if spec.category == CategoryStatus {
			item.From = ev.Payload["from"]
		}
		res.History = append(res.History, item)
	}

	res.Intervals = statusIntervals(res.History, openedAt, asOf, cal)
	for _, iv := range res.Intervals {
		res.ByStatus[iv.Status] += iv.Working
	}
	return res
}

// statusIntervals walks the status subsequence chronologically. The first
// interval is anchored at openedAt; its status is the first transition's
// previous value when known, otherwise the Initial sentinel. The final
// open interval is closed at asOf with a freshly computed duration.
func statusIntervals(history []HistoryItem, openedAt, asOf time.Time, cal Calendar) []StatusInterval {
	current := StatusInitial
	startedAt := openedAt
	var out []StatusInterval
	for _, item := range history {
		if item.Category != CategoryStatus {
			continue
		}
		if len(out) == 0 && item.From != "" {
			current = item.From
		}
		out = append(out, StatusInterval{
			Status:    current,
			StartedAt: startedAt,
			EndedAt:   item.When,
			Working:   WorkingDuration(startedAt, item.When, cal),
		})
		current = item.Value
		startedAt = item.When
	}
	// asOf before the last transition (clock skew or caller error)
	// contributes zero, never a negative duration.
	out = append(out, StatusInterval{
		Status:    current,
		StartedAt: startedAt,
		EndedAt:   asOf,
		Working:   WorkingDuration(startedAt, asOf, cal),
	})
	return out
}
