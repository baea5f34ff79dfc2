package timeline

import (
	"testing"
	"time"

	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

func statusEvent(actor, from, to string, at time.Time) domain.RawEvent {
	return domain.RawEvent{
		EntityID:   "acme/widgets#42",
		Kind:       domain.EventStatusChanged,
		Actor:      actor,
		OccurredAt: at,
		Payload:    map[string]string{"from": from, "to": to},
	}
}

func TestProcess_OrdersOutOfOrderEvents(t *testing.T) {
	cal := testCalendar(t)
	opened := ts(t, "2026-08-24T09:00:00Z")
	asOf := ts(t, "2026-08-28T17:00:00Z")
	events := []domain.RawEvent{
		statusEvent("bob", "In Progress", "In Review", ts(t, "2026-08-26T09:00:00Z")),
		statusEvent("alice", "", "In Progress", ts(t, "2026-08-25T09:00:00Z")),
	}
	res := Process("acme/widgets#42", events, opened, asOf, cal)
	if len(res.History) != 2 {
		t.Fatalf("want 2 history items, got %d", len(res.History))
	}
	if res.History[0].Actor != "alice" || res.History[1].Actor != "bob" {
		t.Fatalf("history not chronological: %+v", res.History)
	}
	want := []string{"Open", "In Progress", "In Review"}
	if len(res.Intervals) != len(want) {
		t.Fatalf("want %d intervals, got %d", len(want), len(res.Intervals))
	}
	for i, iv := range res.Intervals {
		if iv.Status != want[i] {
			t.Fatalf("interval %d: want status %s, got %s", i, want[i], iv.Status)
		}
	}
}

func TestProcess_ConservationLaw(t *testing.T) {
	cal := testCalendar(t)
	opened := ts(t, "2026-08-24T09:00:00Z")
	asOf := ts(t, "2026-08-28T17:00:00Z")
	events := []domain.RawEvent{
		statusEvent("alice", "Open", "In Progress", ts(t, "2026-08-24T13:00:00Z")),
		statusEvent("alice", "In Progress", "In Review", ts(t, "2026-08-26T11:00:00Z")),
		statusEvent("bob", "In Review", "In Progress", ts(t, "2026-08-27T10:00:00Z")),
		statusEvent("alice", "In Progress", "Done", ts(t, "2026-08-28T15:00:00Z")),
	}
	res := Process("acme/widgets#42", events, opened, asOf, cal)

	var sum time.Duration
	for _, iv := range res.Intervals {
		sum += iv.Working
	}
	if total := WorkingDuration(opened, asOf, cal); sum != total {
		t.Fatalf("conservation: intervals sum %v != elapsed %v", sum, total)
	}

	// "In Progress" was entered twice; its total is the sum of both visits.
	first := WorkingDuration(ts(t, "2026-08-24T13:00:00Z"), ts(t, "2026-08-26T11:00:00Z"), cal)
	second := WorkingDuration(ts(t, "2026-08-27T10:00:00Z"), ts(t, "2026-08-28T15:00:00Z"), cal)
	if got := res.ByStatus["In Progress"]; got != first+second {
		t.Fatalf("recurring status: want %v, got %v", first+second, got)
	}
}

func TestProcess_InitialStatusFromFirstTransition(t *testing.T) {
	cal := testCalendar(t)
	opened := ts(t, "2026-08-24T09:00:00Z")
	asOf := ts(t, "2026-08-26T17:00:00Z")
	events := []domain.RawEvent{
		statusEvent("alice", "Backlog", "In Progress", ts(t, "2026-08-25T09:00:00Z")),
	}
	res := Process("acme/widgets#42", events, opened, asOf, cal)
	if res.Intervals[0].Status != "Backlog" {
		t.Fatalf("want first interval Backlog, got %s", res.Intervals[0].Status)
	}
	if !res.Intervals[0].StartedAt.Equal(opened) {
		t.Fatalf("first interval must anchor at openedAt, got %v", res.Intervals[0].StartedAt)
	}
}

func TestProcess_MalformedAndUnknownEventsIsolated(t *testing.T) {
	cal := testCalendar(t)
	opened := ts(t, "2026-08-24T09:00:00Z")
	asOf := ts(t, "2026-08-28T17:00:00Z")
	valid := []domain.RawEvent{
		statusEvent("alice", "Open", "In Progress", ts(t, "2026-08-25T09:00:00Z")),
		statusEvent("bob", "In Progress", "Done", ts(t, "2026-08-27T09:00:00Z")),
	}
	noisy := append([]domain.RawEvent{
		{EntityID: "acme/widgets#42", Kind: "milestone-shuffled", Actor: "eve", OccurredAt: ts(t, "2026-08-25T10:00:00Z")},
		{EntityID: "acme/widgets#42", Kind: domain.EventStatusChanged, OccurredAt: ts(t, "2026-08-26T09:00:00Z")}, // no actor
		{EntityID: "acme/widgets#42", Kind: domain.EventLabeled, Actor: "eve"},                                    // no timestamp
	}, valid...)

	clean := Process("acme/widgets#42", valid, opened, asOf, cal)
	dirty := Process("acme/widgets#42", noisy, opened, asOf, cal)

	if dirty.Dropped != 3 {
		t.Fatalf("want 3 dropped, got %d", dirty.Dropped)
	}
	if len(dirty.History) != len(clean.History) {
		t.Fatalf("noise changed history size: %d vs %d", len(dirty.History), len(clean.History))
	}
	for i := range clean.History {
		if clean.History[i] != dirty.History[i] {
			t.Fatalf("noise changed history item %d: %+v vs %+v", i, clean.History[i], dirty.History[i])
		}
	}
	for status, d := range clean.ByStatus {
		if dirty.ByStatus[status] != d {
			t.Fatalf("noise changed %s duration: %v vs %v", status, dirty.ByStatus[status], d)
		}
	}
}

func TestProcess_SimultaneousEventsKeepArrivalOrder(t *testing.T) {
	cal := testCalendar(t)
	opened := ts(t, "2026-08-24T09:00:00Z")
	asOf := ts(t, "2026-08-26T17:00:00Z")
	at := ts(t, "2026-08-25T12:00:00Z")
	events := []domain.RawEvent{
		statusEvent("alice", "Open", "In Progress", at),
		statusEvent("bob", "In Progress", "Blocked", at),
	}
	res := Process("acme/widgets#42", events, opened, asOf, cal)
	last := res.Intervals[len(res.Intervals)-1]
	if last.Status != "Blocked" {
		t.Fatalf("arrival order tie-break: want Blocked active, got %s", last.Status)
	}
	// The zero-width interval between the two transitions must not count.
	if res.ByStatus["In Progress"] != 0 {
		t.Fatalf("zero-width interval: want 0, got %v", res.ByStatus["In Progress"])
	}
}

func TestProcess_AsOfBeforeLastTransition(t *testing.T) {
	cal := testCalendar(t)
	opened := ts(t, "2026-08-24T09:00:00Z")
	events := []domain.RawEvent{
		statusEvent("alice", "Open", "Done", ts(t, "2026-08-26T12:00:00Z")),
	}
	// asOf earlier than the transition: final contribution is zero.
	res := Process("acme/widgets#42", events, opened, ts(t, "2026-08-25T12:00:00Z"), cal)
	if res.ByStatus["Done"] != 0 {
		t.Fatalf("skewed asOf: want 0 for Done, got %v", res.ByStatus["Done"])
	}
}

func TestProcess_CommentsAreNotHistory(t *testing.T) {
	cal := testCalendar(t)
	opened := ts(t, "2026-08-24T09:00:00Z")
	asOf := ts(t, "2026-08-26T17:00:00Z")
	events := []domain.RawEvent{
		{EntityID: "e", Kind: domain.EventCommented, Actor: "alice", OccurredAt: ts(t, "2026-08-25T10:00:00Z"), Payload: map[string]string{"body": "looks good"}},
	}
	res := Process("e", events, opened, asOf, cal)
	if len(res.History) != 0 || res.Dropped != 0 {
		t.Fatalf("comments must be ignored, not dropped: %+v", res)
	}
}
