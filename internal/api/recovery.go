package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"switchyard/internal/constants"
	"switchyard/internal/logger"
	"switchyard/internal/recovery"
	"switchyard/pkg/errors"
)

type RecoveryExecutor interface {
	RegisterPlan(ctx context.Context, p recovery.Plan) (recovery.Plan, error)
	RemovePlan(ctx context.Context, id string) error
	GetPlan(ctx context.Context, id string) (*recovery.Plan, error)
	ListPlans(ctx context.Context) ([]recovery.Plan, error)
	ExecuteRecoveryPlan(ctx context.Context, planID string) (*recovery.Execution, error)
	GetExecution(ctx context.Context, id string) (*recovery.Execution, error)
	ListExecutions(ctx context.Context, planID string, limit int) ([]recovery.Execution, error)
}

type RecoveryHandler struct {
	BaseHandler
	Executor RecoveryExecutor
}

func NewRecoveryHandler(executor RecoveryExecutor, log logger.Logger) *RecoveryHandler {
	return &RecoveryHandler{BaseHandler: BaseHandler{Logger: log}, Executor: executor}
}

func (h *RecoveryHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	plans := v1.Group("/recovery/plans")
	{
		plans.GET("", h.ListPlans)
		plans.POST("", h.CreatePlan)
		plans.GET("/:id", h.GetPlan)
		plans.PUT("/:id", h.UpdatePlan)
		plans.DELETE("/:id", h.DeletePlan)
		plans.POST("/:id/execute", h.ExecutePlan)
	}

	executions := v1.Group("/recovery/executions")
	{
		executions.GET("", h.ListExecutions)
		executions.GET("/:id", h.GetExecution)
	}
}

// ExecutionFailure is returned when a plan ran and failed: the record shows which step
// ended the run.
type ExecutionFailure struct {
	Error     string              `json:"error"`
	ErrorCode string              `json:"error_code"`
	Execution *recovery.Execution `json:"execution"`
}

// ListPlans godoc
// @Summary      List recovery plans
// @Tags         recovery
// @Produce      json
// @Success      200  {array}   recovery.Plan
// @Failure      500  {object}  map[string]interface{}
// @Router       /recovery/plans [get]
func (h *RecoveryHandler) ListPlans(c *gin.Context) {
	plans, err := h.Executor.ListPlans(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if plans == nil {
		plans = []recovery.Plan{}
	}
	c.JSON(http.StatusOK, plans)
}

// CreatePlan godoc
// @Summary      Register a recovery plan
// @Description  Validates step dependencies and expressions, then stores the plan
// @Tags         recovery
// @Accept       json
// @Produce      json
// @Param        plan  body      recovery.Plan  true  "Recovery plan"
// @Success      201   {object}  recovery.Plan
// @Failure      400   {object}  map[string]interface{}
// @Failure      422   {object}  map[string]interface{}
// @Router       /recovery/plans [post]
func (h *RecoveryHandler) CreatePlan(c *gin.Context) {
	var p recovery.Plan
	if !h.bindJSON(c, &p) {
		return
	}

	saved, err := h.Executor.RegisterPlan(c.Request.Context(), p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// GetPlan godoc
// @Summary      Get a recovery plan
// @Tags         recovery
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  recovery.Plan
// @Failure      404  {object}  map[string]interface{}
// @Router       /recovery/plans/{id} [get]
func (h *RecoveryHandler) GetPlan(c *gin.Context) {
	p, err := h.Executor.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePlan godoc
// @Summary      Replace a recovery plan
// @Tags         recovery
// @Accept       json
// @Produce      json
// @Param        id    path      string         true  "Plan ID"
// @Param        plan  body      recovery.Plan  true  "Recovery plan"
// @Success      200   {object}  recovery.Plan
// @Failure      400   {object}  map[string]interface{}
// @Failure      422   {object}  map[string]interface{}
// @Router       /recovery/plans/{id} [put]
func (h *RecoveryHandler) UpdatePlan(c *gin.Context) {
	var p recovery.Plan
	if !h.bindJSON(c, &p) {
		return
	}
	p.ID = c.Param("id")

	saved, err := h.Executor.RegisterPlan(c.Request.Context(), p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeletePlan godoc
// @Summary      Delete a recovery plan
// @Tags         recovery
// @Param        id   path  string  true  "Plan ID"
// @Success      204  "No Content"
// @Failure      404  {object}  map[string]interface{}
// @Router       /recovery/plans/{id} [delete]
func (h *RecoveryHandler) DeletePlan(c *gin.Context) {
	if err := h.Executor.RemovePlan(c.Request.Context(), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExecutePlan godoc
// @Summary      Execute a recovery plan
// @Description  Runs the plan to completion. A disconnecting client does not cancel the run.
// @Tags         recovery
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  recovery.Execution
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Failure      422  {object}  map[string]interface{}
// @Failure      500  {object}  ExecutionFailure
// @Router       /recovery/plans/{id}/execute [post]
func (h *RecoveryHandler) ExecutePlan(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())

	exec, err := h.Executor.ExecuteRecoveryPlan(ctx, c.Param("id"))
	if err != nil {
		if exec == nil {
			h.HandleError(c, err)
			return
		}
		resp := errors.ToErrorResponse(err)
		h.Logger.WarnwCtx(ctx, "Recovery plan execution failed", "execution_id", exec.ID, "error", err)
		c.JSON(errors.ToHTTPStatus(err), ExecutionFailure{
			Error:     resp["error"].(string),
			ErrorCode: resp["error_code"].(string),
			Execution: exec,
		})
		return
	}
	c.JSON(http.StatusOK, exec)
}

// ListExecutions godoc
// @Summary      List recovery executions, newest first
// @Tags         recovery
// @Produce      json
// @Param        plan_id  query     string  false  "Only executions of this plan"
// @Param        limit    query     int     false  "Maximum number of records"
// @Success      200      {array}   recovery.Execution
// @Router       /recovery/executions [get]
func (h *RecoveryHandler) ListExecutions(c *gin.Context) {
	limit := queryInt(c, "limit", constants.DefaultLimit)
	execs, err := h.Executor.ListExecutions(c.Request.Context(), c.Query("plan_id"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if execs == nil {
		execs = []recovery.Execution{}
	}
	c.JSON(http.StatusOK, execs)
}

// GetExecution godoc
// @Summary      Get a recovery execution
// @Tags         recovery
// @Produce      json
// @Param        id   path      string  true  "Execution ID"
// @Success      200  {object}  recovery.Execution
// @Failure      404  {object}  map[string]interface{}
// @Router       /recovery/executions/{id} [get]
func (h *RecoveryHandler) GetExecution(c *gin.Context) {
	exec, err := h.Executor.GetExecution(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}
