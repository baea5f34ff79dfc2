package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc syncService, store activityStore) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc, store)

	r.GET("/healthz", h.Healthz)
	r.GET("/activities", h.Activities)
	r.GET("/admin/last-run", h.LastRun)
	r.POST("/admin/sync", h.SyncNow)

	return r
}
