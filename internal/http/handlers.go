package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/domain"
	"github.com/piotr-liszka/open-dev-activity/internal/repo"
	"github.com/piotr-liszka/open-dev-activity/internal/services"
)

type syncService interface {
	Sync(ctx context.Context, window domain.Window) (services.Summary, error)
}

type activityStore interface {
	ListActivities(ctx context.Context, f repo.Filter) ([]repo.StoredActivity, error)
	GetLastRun(ctx context.Context) (*repo.SyncRun, error)
}

type Handlers struct {
	cfg   config.Config
	log   zerolog.Logger
	svc   syncService
	store activityStore
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc syncService, store activityStore) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc, store: store}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.store.GetLastRun(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lr)
}

// SyncNow triggers a sync detached from the request context so a closed
// client connection cannot cancel a half-finished run. Window bounds come
// from optional from/to query params, defaulting to the last hour.
func (h *Handlers) SyncNow(c *gin.Context) {
	now := time.Now().UTC()
	window := domain.Window{From: now.Add(-time.Hour), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
			return
		}
		window.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
			return
		}
		window.To = t
	}
	if !window.To.After(window.From) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window must satisfy from < to"})
		return
	}
	go func() { _, _ = h.svc.Sync(context.Background(), window) }()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "from": window.From, "to": window.To})
}

func (h *Handlers) Activities(c *gin.Context) {
	f := repo.Filter{
		Author:     c.Query("author"),
		Repository: c.Query("repo"),
		Kind:       c.Query("kind"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
			return
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
			return
		}
		f.To = &t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}
	out, err := h.store.ListActivities(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "activities": out})
}
