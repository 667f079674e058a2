package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/VoicePeer/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	cfg   RouterConfig
	s     Session
	views ViewSource
}

type joinRequest struct {
	Token string `json:"token"`
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type panningRequest struct {
	Model string `json:"model" binding:"required"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type fileRequest struct {
	Path string `json:"path"`
}

// statusFor maps controller errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMissingCredential), errors.Is(err, domain.ErrUnknownStage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCaptureDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSignalingFailure):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func (h *handlers) state(c *gin.Context) {
	snap, err := h.s.Snapshot()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": h.views.View(), "session": snap})
}

func (h *handlers) join(c *gin.Context) {
	var req joinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body")
			return
		}
	}
	token := req.Token
	if token == "" {
		token = h.cfg.Token
	}
	if err := h.s.StartSession(c.Request.Context(), token); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.views.View())
}

func (h *handlers) leave(c *gin.Context) {
	if err := h.s.Destroy(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) mute(c *gin.Context) {
	muted, err := h.s.ToggleMute()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted})
}

func (h *handlers) ptt(c *gin.Context) {
	enabled, err := h.s.TogglePttMode()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (h *handlers) pttActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "missing active")
		return
	}
	if err := h.s.SetPttActive(*req.Active); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) panning(c *gin.Context) {
	var req panningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "missing model")
		return
	}
	model, err := domain.ParsePanningModel(req.Model)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.s.SetPanningModel(model); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) mode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "missing mode")
		return
	}
	mode, err := domain.ParseDirectionalMode(req.Mode)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.s.SetDirectionalMode(mode); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) position(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid position")
		return
	}
	if err := h.s.SetSourcePosition(c.Param("id"), domain.Vec3{X: req.X, Y: req.Y, Z: req.Z}); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) debugFile(c *gin.Context) {
	var req fileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid body")
			return
		}
	}
	path := req.Path
	if path == "" {
		path = h.cfg.DebugFile
	}
	if err := h.s.StartDebugFile(path); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) debugMic(c *gin.Context) {
	if err := h.s.StartDebugMic(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) debugStop(c *gin.Context) {
	if err := h.s.StopDebug(); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
