package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/domain"
)

// upsertChunk bounds how many records go into one batch. A failing chunk
// poisons only its own records; earlier chunks stay committed.
const upsertChunk = 100

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

// Migrate creates the schema when absent. The unique index on dedup_key is
// what makes re-ingestion idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS activities (
    id          BIGSERIAL PRIMARY KEY,
    dedup_key   TEXT NOT NULL UNIQUE,
    kind        TEXT NOT NULL,
    author      TEXT NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    repository  TEXT NOT NULL,
    number      INT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    metadata    JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS activities_author_idx ON activities(author, occurred_at);
CREATE INDEX IF NOT EXISTS activities_repo_idx ON activities(repository, occurred_at);

CREATE TABLE IF NOT EXISTS sync_runs (
    id           UUID PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ,
    window_from  TIMESTAMPTZ NOT NULL,
    window_to    TIMESTAMPTZ NOT NULL,
    collected    INT NOT NULL DEFAULT 0,
    persisted    INT NOT NULL DEFAULT 0,
    dropped      INT NOT NULL DEFAULT 0,
    success      BOOLEAN NOT NULL DEFAULT false,
    error        TEXT NOT NULL DEFAULT ''
);`
	_, err := d.Pool.Exec(ctx, schema)
	return err
}

type Repository struct {
	db  *DB
	log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository {
	return &Repository{db: d, log: log}
}

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

// ChunkError reports the record range of a failed upsert chunk. Records
// outside [From, To) were either committed or never attempted.
type ChunkError struct {
	From, To int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("upsert chunk [%d,%d): %v", e.From, e.To, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// UpsertActivities writes records in chunks, keyed on dedup_key. A conflict
// refreshes the mutable fields (title, description, metadata) and bumps
// updated_at; identity fields never change on conflict. Returns how many
// records were committed before the first failing chunk.
func (r *Repository) UpsertActivities(ctx context.Context, recs []domain.ActivityRecord) (int, error) {
	const q = `
        INSERT INTO activities(dedup_key, kind, author, occurred_at, repository, number,
            title, url, description, metadata)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT(dedup_key) DO UPDATE SET
            title=EXCLUDED.title,
            url=EXCLUDED.url,
            description=EXCLUDED.description,
            metadata=EXCLUDED.metadata,
            updated_at=now()`

	committed := 0
	for start := 0; start < len(recs); start += upsertChunk {
		end := start + upsertChunk
		if end > len(recs) {
			end = len(recs)
		}
		batch := &pgx.Batch{}
		for _, rec := range recs[start:end] {
			meta, err := json.Marshal(rec.Metadata)
			if err != nil {
				return committed, &ChunkError{From: start, To: end, Err: err}
			}
			batch.Queue(q, rec.DedupKey, rec.Kind, rec.Author, rec.OccurredAt, rec.Repository,
				rec.Number, rec.Title, rec.URL, rec.Description, meta)
		}
		if err := r.sendBatch(ctx, batch, end-start); err != nil {
			return committed, &ChunkError{From: start, To: end, Err: err}
		}
		committed = end
	}
	return committed, nil
}

func (r *Repository) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

type StoredActivity struct {
	ID          int64             `json:"id"`
	DedupKey    string            `json:"dedup_key"`
	Kind        string            `json:"kind"`
	Author      string            `json:"author"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Repository  string            `json:"repository"`
	Number      int               `json:"number"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type Filter struct {
	Author     string
	Repository string
	Kind       string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// ListActivities returns stored records matching the filter, newest first.
func (r *Repository) ListActivities(ctx context.Context, f Filter) ([]StoredActivity, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Author != "" {
		add("author = $%d", f.Author)
	}
	if f.Repository != "" {
		add("repository = $%d", f.Repository)
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.From != nil {
		add("occurred_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("occurred_at < $%d", *f.To)
	}
	q := `SELECT id, dedup_key, kind, author, occurred_at, repository, number,
        title, url, description, metadata FROM activities`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredActivity
	for rows.Next() {
		var a StoredActivity
		var meta []byte
		if err := rows.Scan(&a.ID, &a.DedupKey, &a.Kind, &a.Author, &a.OccurredAt, &a.Repository,
			&a.Number, &a.Title, &a.URL, &a.Description, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("activity %d metadata: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type SyncRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	WindowFrom time.Time  `json:"window_from"`
	WindowTo   time.Time  `json:"window_to"`
	Collected  int        `json:"collected"`
	Persisted  int        `json:"persisted"`
	Dropped    int        `json:"dropped"`
	Success    bool       `json:"success"`
	Error      string     `json:"error"`
}

func (r *Repository) StartSyncRun(ctx context.Context, id string, window domain.Window) error {
	const q = `INSERT INTO sync_runs(id, started_at, window_from, window_to) VALUES($1, now(), $2, $3)`
	_, err := r.db.Pool.Exec(ctx, q, id, window.From, window.To)
	return err
}

func (r *Repository) FinishSyncRun(ctx context.Context, id string, collected, persisted, dropped int, success bool, errStr string) error {
	const q = `UPDATE sync_runs SET finished_at=now(), collected=$2, persisted=$3, dropped=$4,
        success=$5, error=$6 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, collected, persisted, dropped, success, errStr)
	return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*SyncRun, error) {
	const q = `SELECT id, started_at, finished_at, window_from, window_to,
        collected, persisted, dropped, success, error
        FROM sync_runs ORDER BY started_at DESC LIMIT 1`
	row := r.db.Pool.QueryRow(ctx, q)
	sr := &SyncRun{}
	if err := row.Scan(&sr.ID, &sr.StartedAt, &sr.FinishedAt, &sr.WindowFrom, &sr.WindowTo,
		&sr.Collected, &sr.Persisted, &sr.Dropped, &sr.Success, &sr.Error); err != nil {
		return nil, err
	}
	return sr, nil
}

// LastSuccessfulWindowEnd returns the window_to of the newest successful
// run, for chaining the next incremental window.
func (r *Repository) LastSuccessfulWindowEnd(ctx context.Context) (*time.Time, error) {
	const q = `SELECT window_to FROM sync_runs WHERE success ORDER BY started_at DESC LIMIT 1`
	var t time.Time
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
