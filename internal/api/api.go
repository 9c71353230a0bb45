// Package api exposes the routing, replay and recovery engines over HTTP.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"switchyard/internal/logger"
	"switchyard/pkg/errors"
)

// Registrar is implemented by every handler group.
type Registrar interface {
	RegisterRoutes(v1 *gin.RouterGroup)
}

// Mount registers the handler groups under /api/v1.
func Mount(router *gin.Engine, groups ...Registrar) {
	v1 := router.Group("/api/v1")
	for _, g := range groups {
		g.RegisterRoutes(v1)
	}
}

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

// bindJSON decodes the body into v, answering 400 itself when that fails.
func (h *BaseHandler) bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithMessage("invalid request body").WithCause(err)))
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}
