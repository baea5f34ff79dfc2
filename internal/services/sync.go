package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/connectors"
	"github.com/piotr-liszka/open-dev-activity/internal/domain"
	"github.com/piotr-liszka/open-dev-activity/internal/normalize"
	"github.com/piotr-liszka/open-dev-activity/internal/timeline"
)

// Store is the slice of the repository the sync pipeline needs.
type Store interface {
	UpsertActivities(ctx context.Context, recs []domain.ActivityRecord) (int, error)
	StartSyncRun(ctx context.Context, id string, window domain.Window) error
	FinishSyncRun(ctx context.Context, id string, collected, persisted, dropped int, success bool, errStr string) error
}

// SourceStatus is the per-connector outcome of one run.
type SourceStatus struct {
	Name   string `json:"name"`
	Events int    `json:"events"`
	Error  string `json:"error,omitempty"`
}

// Summary describes one sync run end to end. It is produced even when the
// run fails partway; whatever happened is in here.
type Summary struct {
	RunID     string         `json:"run_id"`
	Window    domain.Window  `json:"window"`
	Collected int            `json:"collected"`
	Persisted int            `json:"persisted"`
	Dropped   int            `json:"dropped"`
	Sources   []SourceStatus `json:"sources"`
	Elapsed   time.Duration  `json:"elapsed"`
}

type Service struct {
	cfg      config.Config
	log      zerolog.Logger
	store    Store
	sources  []connectors.Connector
	calendar timeline.Calendar
	now      func() time.Time
}

func New(cfg config.Config, log zerolog.Logger, store Store, cal timeline.Calendar, sources ...connectors.Connector) *Service {
	return &Service{
		cfg:      cfg,
		log:      log,
		store:    store,
		sources:  sources,
		calendar: cal,
		now:      time.Now,
	}
}

// Sync runs one full pipeline pass over the window: fan out to the
// connectors, rebuild each touched entity's timeline, normalize, upsert.
// A failing source is isolated; the run errors only when every source
// failed or persistence itself fails. The summary is returned in both
// cases.
func (s *Service) Sync(ctx context.Context, window domain.Window) (Summary, error) {
	started := s.now()
	sum := Summary{RunID: uuid.NewString(), Window: window}
	if err := s.store.StartSyncRun(ctx, sum.RunID, window); err != nil {
		return sum, fmt.Errorf("start run: %w", err)
	}
	s.log.Info().Str("run", sum.RunID).
		Time("from", window.From).Time("to", window.To).
		Int("sources", len(s.sources)).Msg("sync started")

	events, statuses := s.collect(ctx, window)
	sum.Sources = statuses
	sum.Collected = len(events)

	failed := 0
	for _, st := range statuses {
		if st.Error != "" {
			failed++
		}
	}
	if len(s.sources) > 0 && failed == len(s.sources) {
		err := fmt.Errorf("all %d sources failed", failed)
		s.finish(ctx, &sum, started, err)
		return sum, err
	}

	recs, dropped := s.normalizeAll(events, window)
	sum.Dropped = dropped

	persisted, err := s.store.UpsertActivities(ctx, recs)
	sum.Persisted = persisted
	if err != nil {
		err = fmt.Errorf("upsert: %w", err)
		s.finish(ctx, &sum, started, err)
		return sum, err
	}

	s.finish(ctx, &sum, started, nil)
	return sum, nil
}

// collect fans out to every connector with bounded concurrency. Errors are
// captured per source, never propagated through the group: one broken
// upstream must not cancel the others mid-flight.
func (s *Service) collect(ctx context.Context, window domain.Window) ([]domain.RawEvent, []SourceStatus) {
	statuses := make([]SourceStatus, len(s.sources))
	results := make([][]domain.RawEvent, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	// SetLimit(0) would block every Go call; an unset or nonsense value
	// degrades to serial fetching instead.
	limit := s.cfg.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	var mu sync.Mutex
	for i, src := range s.sources {
		g.Go(func() error {
			events, err := src.Fetch(gctx, window)
			mu.Lock()
			defer mu.Unlock()
			statuses[i] = SourceStatus{Name: src.Name(), Events: len(events)}
			if err != nil {
				serr := &connectors.SourceError{Source: src.Name(), Err: err}
				statuses[i].Error = serr.Error()
				s.log.Error().Err(serr).Str("source", src.Name()).Msg("source fetch failed")
				return nil
			}
			results[i] = events
			return nil
		})
	}
	g.Wait()

	var all []domain.RawEvent
	for _, events := range results {
		all = append(all, events...)
	}
	return all, statuses
}

// normalizeAll groups raw events by entity, rebuilds each timeline as of
// now, and maps everything to windowed activity records in one ascending
// stream.
func (s *Service) normalizeAll(events []domain.RawEvent, window domain.Window) ([]domain.ActivityRecord, int) {
	type entity struct {
		subject  domain.Subject
		history  []domain.RawEvent
		comments []domain.RawEvent
		reviews  []domain.RawEvent
		commits  []domain.RawEvent
	}
	byID := map[string]*entity{}
	var order []string
	for _, ev := range events {
		e, ok := byID[ev.EntityID]
		if !ok {
			e = &entity{subject: ev.Subject}
			byID[ev.EntityID] = e
			order = append(order, ev.EntityID)
		}
		switch ev.Kind {
		case domain.EventCommented:
			e.comments = append(e.comments, ev)
		case domain.EventReviewed:
			e.reviews = append(e.reviews, ev)
		case domain.EventCommitted:
			e.commits = append(e.commits, ev)
		default:
			e.history = append(e.history, ev)
		}
	}

	asOf := s.now().UTC()
	var out []domain.ActivityRecord
	dropped := 0
	for _, id := range order {
		e := byID[id]
		res := timeline.Process(id, e.history, e.subject.OpenedAt, asOf, s.calendar)
		dropped += res.Dropped
		out = append(out, normalize.Records(normalize.Input{
			Subject:  e.subject,
			Timeline: res,
			Comments: e.comments,
			Reviews:  e.reviews,
			Commits:  e.commits,
		}, window)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, dropped
}

func (s *Service) finish(ctx context.Context, sum *Summary, started time.Time, runErr error) {
	sum.Elapsed = s.now().Sub(started)
	errStr := ""
	if runErr != nil {
		errStr = runErr.Error()
	}
	if err := s.store.FinishSyncRun(ctx, sum.RunID, sum.Collected, sum.Persisted, sum.Dropped, runErr == nil, errStr); err != nil {
		s.log.Error().Err(err).Str("run", sum.RunID).Msg("finish run failed")
	}
	evt := s.log.Info()
	if runErr != nil {
		evt = s.log.Error().Err(runErr)
	}
	evt.Str("run", sum.RunID).
		Int("collected", sum.Collected).
		Int("persisted", sum.Persisted).
		Int("dropped", sum.Dropped).
		Dur("elapsed", sum.Elapsed).
		Msg("sync finished")
}
