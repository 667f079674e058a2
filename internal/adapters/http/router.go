// Package http exposes the local control and diagnostics API.
package http

import (
	"context"
	"net/http"

	"github.com/dkeye/VoicePeer/internal/app/session"
	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Session is the controller surface driven by the API.
type Session interface {
	StartSession(ctx context.Context, token string) error
	Destroy() error
	ToggleMute() (bool, error)
	TogglePttMode() (bool, error)
	SetPttActive(active bool) error
	SetPanningModel(m domain.PanningModel) error
	SetDirectionalMode(mode domain.DirectionalMode) error
	SetSourcePosition(id string, pos domain.Vec3) error
	StartDebugFile(path string) error
	StartDebugMic() error
	StopDebug() error
	Snapshot() (session.Snapshot, error)
}

// ViewSource returns the last observed UI state.
type ViewSource interface {
	View() session.View
}

type RouterConfig struct {
	Mode string
	// Token is used by join requests that carry none.
	Token string
	// DebugFile is played by file debug requests that name no path.
	DebugFile string
	Gatherer  prometheus.Gatherer
}

func SetupRouter(cfg RouterConfig, s Session, views ViewSource) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &handlers{cfg: cfg, s: s, views: views}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/state", h.state)

	sess := api.Group("/session")
	sess.POST("/join", h.join)
	sess.POST("/leave", h.leave)
	sess.POST("/mute", h.mute)
	sess.POST("/ptt", h.ptt)
	sess.PUT("/ptt/active", h.pttActive)

	spatial := api.Group("/spatial")
	spatial.PUT("/panning", h.panning)
	spatial.PUT("/mode", h.mode)
	spatial.PUT("/peers/:id/position", h.position)

	debug := api.Group("/debug")
	debug.POST("/file", h.debugFile)
	debug.POST("/mic", h.debugMic)
	debug.DELETE("", h.debugStop)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
