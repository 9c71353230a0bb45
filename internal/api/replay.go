package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"switchyard/internal/logger"
	"switchyard/internal/replay"
)

type ReplayEngine interface {
	RegisterConfig(ctx context.Context, cfg replay.Config) (replay.Config, error)
	RemoveConfig(ctx context.Context, id string) error
	GetConfig(ctx context.Context, id string) (*replay.Config, error)
	ListConfigs(ctx context.Context) ([]replay.Config, error)
	Checkpoints(ctx context.Context, configID string) ([]replay.Checkpoint, error)
	StartReplay(ctx context.Context, configID string, opts replay.StartOptions) (string, error)
	PauseReplay(id string) error
	ResumeReplay(id string) error
	StopReplay(id string) error
	GetSession(ctx context.Context, id string) (*replay.Session, error)
	ListSessions() []replay.Session
}

type ReplayHandler struct {
	BaseHandler
	Engine ReplayEngine
}

func NewReplayHandler(engine ReplayEngine, log logger.Logger) *ReplayHandler {
	return &ReplayHandler{BaseHandler: BaseHandler{Logger: log}, Engine: engine}
}

func (h *ReplayHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	configs := v1.Group("/replay/configs")
	{
		configs.GET("", h.ListConfigs)
		configs.POST("", h.CreateConfig)
		configs.GET("/:id", h.GetConfig)
		configs.PUT("/:id", h.UpdateConfig)
		configs.DELETE("/:id", h.DeleteConfig)
		configs.GET("/:id/checkpoints", h.ListCheckpoints)
		configs.POST("/:id/sessions", h.StartSession)
	}

	sessions := v1.Group("/replay/sessions")
	{
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/errors", h.GetSessionErrors)
		sessions.POST("/:id/pause", h.PauseSession)
		sessions.POST("/:id/resume", h.ResumeSession)
		sessions.POST("/:id/stop", h.StopSession)
	}
}

// StartSessionResponse carries the id of a session that was accepted.
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ListConfigs godoc
// @Summary      List replay configs
// @Tags         replay
// @Produce      json
// @Success      200  {array}   replay.Config
// @Failure      500  {object}  map[string]interface{}
// @Router       /replay/configs [get]
func (h *ReplayHandler) ListConfigs(c *gin.Context) {
	configs, err := h.Engine.ListConfigs(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if configs == nil {
		configs = []replay.Config{}
	}
	c.JSON(http.StatusOK, configs)
}

// CreateConfig godoc
// @Summary      Register a replay config
// @Description  Validates the config and stores it, replacing a config with the same id
// @Tags         replay
// @Accept       json
// @Produce      json
// @Param        config  body      replay.Config  true  "Replay config"
// @Success      201     {object}  replay.Config
// @Failure      400     {object}  map[string]interface{}
// @Failure      422     {object}  map[string]interface{}
// @Router       /replay/configs [post]
func (h *ReplayHandler) CreateConfig(c *gin.Context) {
	var cfg replay.Config
	if !h.bindJSON(c, &cfg) {
		return
	}

	saved, err := h.Engine.RegisterConfig(c.Request.Context(), cfg)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// GetConfig godoc
// @Summary      Get a replay config
// @Tags         replay
// @Produce      json
// @Param        id   path      string  true  "Config ID"
// @Success      200  {object}  replay.Config
// @Failure      404  {object}  map[string]interface{}
// @Router       /replay/configs/{id} [get]
func (h *ReplayHandler) GetConfig(c *gin.Context) {
	cfg, err := h.Engine.GetConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig godoc
// @Summary      Replace a replay config
// @Tags         replay
// @Accept       json
// @Produce      json
// @Param        id      path      string         true  "Config ID"
// @Param        config  body      replay.Config  true  "Replay config"
// @Success      200     {object}  replay.Config
// @Failure      400     {object}  map[string]interface{}
// @Failure      422     {object}  map[string]interface{}
// @Router       /replay/configs/{id} [put]
func (h *ReplayHandler) UpdateConfig(c *gin.Context) {
	var cfg replay.Config
	if !h.bindJSON(c, &cfg) {
		return
	}
	cfg.ID = c.Param("id")

	saved, err := h.Engine.RegisterConfig(c.Request.Context(), cfg)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeleteConfig godoc
// @Summary      Delete a replay config
// @Tags         replay
// @Param        id   path  string  true  "Config ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /replay/configs/{id} [delete]
func (h *ReplayHandler) DeleteConfig(c *gin.Context) {
	if err := h.Engine.RemoveConfig(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListCheckpoints godoc
// @Summary      List stored checkpoints of a replay config, newest first
// @Tags         replay
// @Produce      json
// @Param        id   path      string  true  "Config ID"
// @Success      200  {array}   replay.Checkpoint
// @Router       /replay/configs/{id}/checkpoints [get]
func (h *ReplayHandler) ListCheckpoints(c *gin.Context) {
	cps, err := h.Engine.Checkpoints(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if cps == nil {
		cps = []replay.Checkpoint{}
	}
	c.JSON(http.StatusOK, cps)
}

// StartSession godoc
// @Summary      Start a replay session
// @Description  The session runs in the background; poll the session resource for progress
// @Tags         replay
// @Accept       json
// @Produce      json
// @Param        id       path      string               true   "Config ID"
// @Param        options  body      replay.StartOptions  false  "Session options"
// @Success      202      {object}  StartSessionResponse
// @Failure      404      {object}  map[string]interface{}
// @Failure      422      {object}  map[string]interface{}
// @Router       /replay/configs/{id}/sessions [post]
func (h *ReplayHandler) StartSession(c *gin.Context) {
	var opts replay.StartOptions
	if c.Request.ContentLength != 0 {
		if !h.bindJSON(c, &opts) {
			return
		}
	}

	id, err := h.Engine.StartReplay(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Location", "/api/v1/replay/sessions/"+id)
	c.JSON(http.StatusAccepted, StartSessionResponse{SessionID: id})
}

// ListSessions godoc
// @Summary      List sessions known to this instance
// @Tags         replay
// @Produce      json
// @Success      200  {array}  replay.Session
// @Router       /replay/sessions [get]
func (h *ReplayHandler) ListSessions(c *gin.Context) {
	sessions := h.Engine.ListSessions()
	if sessions == nil {
		sessions = []replay.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession godoc
// @Summary      Get a replay session
// @Tags         replay
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  replay.Session
// @Failure      404  {object}  map[string]interface{}
// @Router       /replay/sessions/{id} [get]
func (h *ReplayHandler) GetSession(c *gin.Context) {
	s, err := h.Engine.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetSessionErrors godoc
// @Summary      List the delivery errors recorded by a session
// @Tags         replay
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {array}   replay.EventError
// @Failure      404  {object}  map[string]interface{}
// @Router       /replay/sessions/{id}/errors [get]
func (h *ReplayHandler) GetSessionErrors(c *gin.Context) {
	s, err := h.Engine.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	errs := s.Errors
	if errs == nil {
		errs = []replay.EventError{}
	}
	c.JSON(http.StatusOK, errs)
}

// PauseSession godoc
// @Summary      Pause a running session at the next batch boundary
// @Tags         replay
// @Param        id   path  string  true  "Session ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /replay/sessions/{id}/pause [post]
func (h *ReplayHandler) PauseSession(c *gin.Context) {
	h.transition(c, h.Engine.PauseReplay)
}

// ResumeSession godoc
// @Summary      Resume a paused session
// @Tags         replay
// @Param        id   path  string  true  "Session ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /replay/sessions/{id}/resume [post]
func (h *ReplayHandler) ResumeSession(c *gin.Context) {
	h.transition(c, h.Engine.ResumeReplay)
}

// StopSession godoc
// @Summary      Stop a session
// @Description  The batch in flight settles before the session ends as cancelled
// @Tags         replay
// @Param        id   path  string  true  "Session ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /replay/sessions/{id}/stop [post]
func (h *ReplayHandler) StopSession(c *gin.Context) {
	h.transition(c, h.Engine.StopReplay)
}

func (h *ReplayHandler) transition(c *gin.Context, op func(id string) error) {
	if err := op(c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
