package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/domain"
	"github.com/piotr-liszka/open-dev-activity/internal/repo"
	"github.com/piotr-liszka/open-dev-activity/internal/services"
)

// fallbackSpan is the window used when no successful run exists yet.
const fallbackSpan = 15 * time.Minute

// lockKey serializes sync runs across replicas sharing one database.
const lockKey int64 = 727274

type syncer interface {
	Sync(ctx context.Context, window domain.Window) (services.Summary, error)
}

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  syncer
	repo *repo.Repository
	c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc syncer, r *repo.Repository) (*Cron, error) {
	loc, _ := time.LoadLocation(cfg.TZ)
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
	if _, err := c.AddFunc(cfg.SyncCron, cr.sync); err != nil {
		return nil, fmt.Errorf("cron schedule %q: %w", cfg.SyncCron, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

func (cr *Cron) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Msg("cron: sync already running elsewhere")
		return
	}
	defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()

	window := cr.nextWindow(ctx)
	if _, err := cr.svc.Sync(ctx, window); err != nil {
		cr.log.Error().Err(err).Msg("cron: sync failed")
	}
}

// nextWindow chains the new window onto the last successful run so no event
// falls between runs. SyncOverlap widens the lower bound to re-cover
// upstream clock skew; the upsert makes the overlap harmless.
func (cr *Cron) nextWindow(ctx context.Context) domain.Window {
	now := time.Now().UTC()
	from := now.Add(-fallbackSpan)
	if last, err := cr.repo.LastSuccessfulWindowEnd(ctx); err != nil {
		cr.log.Error().Err(err).Msg("cron: last run lookup failed")
	} else if last != nil && last.Before(now) {
		from = *last
	}
	if cr.cfg.SyncOverlap > 0 {
		from = from.Add(-cr.cfg.SyncOverlap)
	}
	return domain.Window{From: from, To: now}
}
