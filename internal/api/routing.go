package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"switchyard/internal/logger"
	"switchyard/internal/routing"
	"switchyard/pkg/models"
)

type EventRouter interface {
	AddRoutingTable(ctx context.Context, table routing.RoutingTable) error
	RemoveRoutingTable(ctx context.Context, id string) error
	AddFilter(ctx context.Context, filter routing.EventFilter) error
	RemoveFilter(ctx context.Context, id string) error
	Tables() []routing.RoutingTable
	Filters() []routing.EventFilter
	RouteEvent(ctx context.Context, ev models.Event, tableID string) (routing.RoutingResult, error)
	TestRule(ctx context.Context, rule routing.RouteRule, ev models.Event) (bool, error)
	TestFilter(ctx context.Context, filter routing.EventFilter, ev models.Event) (routing.FilterResult, error)
	GetMetrics() routing.Metrics
}

type RoutingHandler struct {
	BaseHandler
	Router EventRouter
}

func NewRoutingHandler(router EventRouter, log logger.Logger) *RoutingHandler {
	return &RoutingHandler{BaseHandler: BaseHandler{Logger: log}, Router: router}
}

func (h *RoutingHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	r := v1.Group("/routing")
	{
		r.GET("/tables", h.ListTables)
		r.PUT("/tables", h.PutTable)
		r.DELETE("/tables/:id", h.DeleteTable)
		r.GET("/filters", h.ListFilters)
		r.PUT("/filters", h.PutFilter)
		r.DELETE("/filters/:id", h.DeleteFilter)
		r.POST("/route", h.Route)
		r.POST("/test/rule", h.TestRule)
		r.POST("/test/filter", h.TestFilter)
		r.GET("/metrics", h.Metrics)
	}
}

type TestRuleRequest struct {
	Rule  routing.RouteRule `json:"rule"`
	Event models.Event      `json:"event"`
}

type TestRuleResponse struct {
	Matched bool `json:"matched"`
}

type TestFilterRequest struct {
	Filter routing.EventFilter `json:"filter"`
	Event  models.Event        `json:"event"`
}

// ListTables godoc
// @Summary      List routing tables
// @Tags         routing
// @Produce      json
// @Success      200  {array}  routing.RoutingTable
// @Router       /routing/tables [get]
func (h *RoutingHandler) ListTables(c *gin.Context) {
	tables := h.Router.Tables()
	if tables == nil {
		tables = []routing.RoutingTable{}
	}
	c.JSON(http.StatusOK, tables)
}

// PutTable godoc
// @Summary      Add or replace a routing table
// @Description  Tables added here are replaced when the definitions file is reloaded
// @Tags         routing
// @Accept       json
// @Param        table  body  routing.RoutingTable  true  "Routing table"
// @Success      204  "No Content"
// @Failure      400  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]interface{}
// @Router       /routing/tables [put]
func (h *RoutingHandler) PutTable(c *gin.Context) {
	var table routing.RoutingTable
	if !h.bindJSON(c, &table) {
		return
	}
	if err := h.Router.AddRoutingTable(c.Request.Context(), table); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteTable godoc
// @Summary      Remove a routing table
// @Tags         routing
// @Param        id   path  string  true  "Table ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Router       /routing/tables/{id} [delete]
func (h *RoutingHandler) DeleteTable(c *gin.Context) {
	if err := h.Router.RemoveRoutingTable(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListFilters godoc
// @Summary      List global filters in evaluation order
// @Tags         routing
// @Produce      json
// @Success      200  {array}  routing.EventFilter
// @Router       /routing/filters [get]
func (h *RoutingHandler) ListFilters(c *gin.Context) {
	filters := h.Router.Filters()
	if filters == nil {
		filters = []routing.EventFilter{}
	}
	c.JSON(http.StatusOK, filters)
}

// PutFilter godoc
// @Summary      Add or replace a global filter
// @Tags         routing
// @Accept       json
// @Param        filter  body  routing.EventFilter  true  "Filter"
// @Success      204  "No Content"
// @Failure      400  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]interface{}
// @Router       /routing/filters [put]
func (h *RoutingHandler) PutFilter(c *gin.Context) {
	var filter routing.EventFilter
	if !h.bindJSON(c, &filter) {
		return
	}
	if err := h.Router.AddFilter(c.Request.Context(), filter); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteFilter godoc
// @Summary      Remove a global filter
// @Tags         routing
// @Param        id   path  string  true  "Filter ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Router       /routing/filters/{id} [delete]
func (h *RoutingHandler) DeleteFilter(c *gin.Context) {
	if err := h.Router.RemoveFilter(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Route godoc
// @Summary      Compute the routing decision for an event without delivering it
// @Tags         routing
// @Accept       json
// @Produce      json
// @Param        table  query     string        false  "Restrict evaluation to one table"
// @Param        event  body      models.Event  true   "Event"
// @Success      200    {object}  routing.RoutingResult
// @Failure      400    {object}  map[string]interface{}
// @Failure      404    {object}  map[string]interface{}
// @Router       /routing/route [post]
func (h *RoutingHandler) Route(c *gin.Context) {
	var ev models.Event
	if !h.bindJSON(c, &ev) {
		return
	}
	res, err := h.Router.RouteEvent(c.Request.Context(), ev, c.Query("table"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// TestRule godoc
// @Summary      Evaluate an unregistered rule against an event
// @Tags         routing
// @Accept       json
// @Produce      json
// @Param        request  body      TestRuleRequest  true  "Rule and event"
// @Success      200      {object}  TestRuleResponse
// @Failure      422      {object}  map[string]interface{}
// @Router       /routing/test/rule [post]
func (h *RoutingHandler) TestRule(c *gin.Context) {
	var req TestRuleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	matched, err := h.Router.TestRule(c.Request.Context(), req.Rule, req.Event)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, TestRuleResponse{Matched: matched})
}

// TestFilter godoc
// @Summary      Run an unregistered filter against an event
// @Tags         routing
// @Accept       json
// @Produce      json
// @Param        request  body      TestFilterRequest  true  "Filter and event"
// @Success      200      {object}  routing.FilterResult
// @Failure      422      {object}  map[string]interface{}
// @Router       /routing/test/filter [post]
func (h *RoutingHandler) TestFilter(c *gin.Context) {
	var req TestFilterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	res, err := h.Router.TestFilter(c.Request.Context(), req.Filter, req.Event)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Metrics godoc
// @Summary      Routing counters of this instance
// @Tags         routing
// @Produce      json
// @Success      200  {object}  routing.Metrics
// @Router       /routing/metrics [get]
func (h *RoutingHandler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.Router.GetMetrics())
}
