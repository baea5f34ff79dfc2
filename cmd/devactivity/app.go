package main

import (
	"context"
	"fmt"

	"github.com/piotr-liszka/open-dev-activity/internal/connectors"
	"github.com/piotr-liszka/open-dev-activity/internal/connectors/github"
	"github.com/piotr-liszka/open-dev-activity/internal/connectors/jira"
	"github.com/piotr-liszka/open-dev-activity/internal/repo"
	"github.com/piotr-liszka/open-dev-activity/internal/services"
	"github.com/piotr-liszka/open-dev-activity/internal/timeline"
)

type app struct {
	db   *repo.DB
	repo *repo.Repository
	svc  *services.Service
}

// newApp wires the shared dependency graph: database, calendar, every
// configured connector and the sync service on top of them.
func newApp(ctx context.Context) (*app, error) {
	db := repo.MustOpen(ctx, cfg, log)
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	repository := repo.NewRepository(db, log)

	cal, err := timeline.NewCalendar(cfg.Calendar)
	if err != nil {
		db.Close()
		return nil, err
	}

	var sources []connectors.Connector
	if cfg.GithubToken != "" && len(cfg.GithubRepos) > 0 {
		sources = append(sources, github.New(ctx, cfg, log))
	}
	if cfg.JiraBaseURL != "" {
		sources = append(sources, jira.New(cfg, log))
	}
	if len(sources) == 0 {
		log.Warn().Msg("no connectors configured; set GITHUB_TOKEN+GITHUB_REPOS or JIRA_BASE_URL")
	}

	svc := services.New(cfg, log, repository, cal, sources...)
	return &app{db: db, repo: repository, svc: svc}, nil
}

func (a *app) close() { a.db.Close() }
