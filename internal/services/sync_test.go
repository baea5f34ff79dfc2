package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/connectors"
	"github.com/piotr-liszka/open-dev-activity/internal/domain"
	"github.com/piotr-liszka/open-dev-activity/internal/timeline"
)

type fakeConnector struct {
	name   string
	events []domain.RawEvent
	err    error
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Fetch(ctx context.Context, w domain.Window) ([]domain.RawEvent, error) {
	return f.events, f.err
}

type fakeStore struct {
	started  bool
	finished bool
	success  bool
	upserted []domain.ActivityRecord
	upsertFn func([]domain.ActivityRecord) (int, error)
}

func (f *fakeStore) UpsertActivities(ctx context.Context, recs []domain.ActivityRecord) (int, error) {
	f.upserted = recs
	if f.upsertFn != nil {
		return f.upsertFn(recs)
	}
	return len(recs), nil
}

func (f *fakeStore) StartSyncRun(ctx context.Context, id string, w domain.Window) error {
	f.started = true
	return nil
}

func (f *fakeStore) FinishSyncRun(ctx context.Context, id string, collected, persisted, dropped int, success bool, errStr string) error {
	f.finished = true
	f.success = success
	return nil
}

func testService(t *testing.T, store *fakeStore, sources ...*fakeConnector) *Service {
	t.Helper()
	cal, err := timeline.NewCalendar(config.DefaultCalendar())
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	cfg := config.Config{MaxConcurrency: 2}
	conns := make([]connectors.Connector, len(sources))
	for i, src := range sources {
		conns[i] = src
	}
	svc := New(cfg, zerolog.Nop(), store, cal, conns...)
	svc.now = func() time.Time { return time.Date(2026, 8, 28, 17, 0, 0, 0, time.UTC) }
	return svc
}

func window(t *testing.T) domain.Window {
	t.Helper()
	return domain.Window{
		From: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
	}
}

func sampleEvents() []domain.RawEvent {
	sub := domain.Subject{
		Kind:     domain.EntityIssue,
		Repo:     "acme/widgets",
		Number:   7,
		Title:    "Fix cache stampede",
		OpenedAt: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
	}
	return []domain.RawEvent{
		{
			EntityID: "acme/widgets#7", Subject: sub, Kind: domain.EventStatusChanged,
			Actor: "alice", OccurredAt: time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
			Payload: map[string]string{"from": "Open", "to": "In Progress"}, Source: "github",
		},
		{
			EntityID: "acme/widgets#7", Subject: sub, Kind: domain.EventCommented,
			Actor: "bob", OccurredAt: time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC),
			Payload: map[string]string{"body": "on it"}, Source: "github",
		},
	}
}

func TestSync_HappyPath(t *testing.T) {
	store := &fakeStore{}
	svc := testService(t, store, &fakeConnector{name: "github", events: sampleEvents()})

	sum, err := svc.Sync(context.Background(), window(t))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if sum.Collected != 2 || sum.Persisted != 2 {
		t.Fatalf("summary counts: %+v", sum)
	}
	if !store.finished || !store.success {
		t.Fatalf("run not recorded as successful")
	}
	if len(store.upserted) != 2 {
		t.Fatalf("want 2 records upserted, got %d", len(store.upserted))
	}
	for _, r := range store.upserted {
		if r.DedupKey == "" || r.Repository != "acme/widgets" {
			t.Fatalf("record not normalized: %+v", r)
		}
	}
}

func TestSync_FailingSourceIsolated(t *testing.T) {
	store := &fakeStore{}
	svc := testService(t, store,
		&fakeConnector{name: "github", events: sampleEvents()},
		&fakeConnector{name: "jira", err: errors.New("boom")},
	)

	sum, err := svc.Sync(context.Background(), window(t))
	if err != nil {
		t.Fatalf("one healthy source must carry the run: %v", err)
	}
	if len(sum.Sources) != 2 {
		t.Fatalf("want 2 source statuses, got %d", len(sum.Sources))
	}
	var failed, ok int
	for _, st := range sum.Sources {
		if st.Error != "" {
			failed++
		} else {
			ok++
		}
	}
	if failed != 1 || ok != 1 {
		t.Fatalf("source statuses: %+v", sum.Sources)
	}
	if sum.Persisted != 2 {
		t.Fatalf("healthy source records must persist, got %d", sum.Persisted)
	}
}

func TestSync_AllSourcesFailed(t *testing.T) {
	store := &fakeStore{}
	svc := testService(t, store,
		&fakeConnector{name: "github", err: errors.New("rate limited")},
		&fakeConnector{name: "jira", err: errors.New("down")},
	)

	sum, err := svc.Sync(context.Background(), window(t))
	if err == nil {
		t.Fatalf("want error when every source failed")
	}
	if store.success {
		t.Fatalf("run must be recorded as failed")
	}
	if len(sum.Sources) != 2 {
		t.Fatalf("summary must still carry source statuses: %+v", sum)
	}
}

func TestSync_UpsertFailureSurfaced(t *testing.T) {
	store := &fakeStore{upsertFn: func(recs []domain.ActivityRecord) (int, error) {
		return 1, errors.New("chunk failed")
	}}
	svc := testService(t, store, &fakeConnector{name: "github", events: sampleEvents()})

	sum, err := svc.Sync(context.Background(), window(t))
	if err == nil {
		t.Fatalf("want upsert error surfaced")
	}
	if sum.Persisted != 1 {
		t.Fatalf("partial commit count must survive: %+v", sum)
	}
}

func TestSync_UnsetConcurrencyRunsSerially(t *testing.T) {
	store := &fakeStore{}
	svc := testService(t, store,
		&fakeConnector{name: "github", events: sampleEvents()},
		&fakeConnector{name: "jira"},
	)
	svc.cfg.MaxConcurrency = 0

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.Sync(context.Background(), window(t)); err != nil {
			t.Errorf("sync: %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sync stalled with MaxConcurrency 0")
	}
	if len(store.upserted) != 2 {
		t.Fatalf("want 2 records upserted, got %d", len(store.upserted))
	}
}

func TestSync_RecordsAscendingAcrossEntities(t *testing.T) {
	events := sampleEvents()
	other := domain.Subject{
		Kind: domain.EntityIssue, Repo: "acme/gears", Number: 3,
		OpenedAt: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
	}
	events = append(events, domain.RawEvent{
		EntityID: "acme/gears#3", Subject: other, Kind: domain.EventCommented,
		Actor: "carol", OccurredAt: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		Payload: map[string]string{"body": "between the others"}, Source: "github",
	})
	store := &fakeStore{}
	svc := testService(t, store, &fakeConnector{name: "github", events: events})

	if _, err := svc.Sync(context.Background(), window(t)); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for i := 1; i < len(store.upserted); i++ {
		if store.upserted[i].OccurredAt.Before(store.upserted[i-1].OccurredAt) {
			t.Fatalf("upserted records not ascending at %d", i)
		}
	}
}
