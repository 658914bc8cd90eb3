package rules

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trustcore/internal/api"
	"trustcore/internal/constants"
	"trustcore/internal/logger"
	"trustcore/pkg/metrics"
)

type Handler struct {
	api.BaseHandler
	service *Service
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: api.BaseHandler{Logger: log},
		service:     service,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	rules := router.Group("/api/v1/rules")
	{
		rules.GET("", h.ListRules)
		rules.POST("", h.CreateRule)
		rules.POST("/evaluate", h.Evaluate)
		rules.POST("/validate", h.ValidateCondition)
		rules.GET("/:id", h.GetRule)
		rules.PUT("/:id/status", h.SetStatus)
		rules.POST("/:id/evaluate", h.EvaluateRule)
	}
}

// ListRules godoc
// @Summary      List trust rules
// @Tags         rules
// @Produce      json
// @Param        status  query     string  false  "active or inactive"
// @Success      200     {array}   Rule
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.service.ListRules(c.Request.Context(), Filter{Status: Status(c.Query("status"))})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// CreateRule godoc
// @Summary      Create a trust rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        rule  body      CreateRuleRequest  true  "Rule definition"
// @Success      201   {object}  Rule
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      409   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// GetRule godoc
// @Summary      Get a trust rule
// @Tags         rules
// @Produce      json
// @Param        id   path      string  true  "Rule ID"
// @Success      200  {object}  Rule
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.service.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// SetStatus godoc
// @Summary      Activate or deactivate a trust rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        id      path      string            true  "Rule ID"
// @Param        status  body      SetStatusRequest  true  "New status"
// @Success      200     {object}  Rule
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      404     {object}  errors.ErrorResponse
// @Router       /rules/{id}/status [put]
func (h *Handler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	rule, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req.Status, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Evaluate godoc
// @Summary      Evaluate an event against all rules
// @Description  With dry_run inactive rules are included and actions are simulated.
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        request  body      EvaluateRequest  true  "Event"
// @Success      200      {array}   EvaluationResult
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /rules/evaluate [post]
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	metrics.IncEventsEvaluated("http")
	results, err := h.service.Evaluate(c.Request.Context(), req.Event, req.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// EvaluateRule godoc
// @Summary      Evaluate an event against one rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        id       path      string           true  "Rule ID"
// @Param        request  body      EvaluateRequest  true  "Event"
// @Success      200      {object}  EvaluationResult
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Router       /rules/{id}/evaluate [post]
func (h *Handler) EvaluateRule(c *gin.Context) {
	var req EvaluateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	metrics.IncEventsEvaluated("http")
	result, err := h.service.EvaluateByID(c.Request.Context(), c.Param("id"), req.Event, req.DryRun)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ValidateCondition godoc
// @Summary      Validate a condition tree
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        request  body      ValidateRequest  true  "Condition"
// @Success      200      {object}  ValidateResponse
// @Failure      400      {object}  errors.ErrorResponse
// @Router       /rules/validate [post]
func (h *Handler) ValidateCondition(c *gin.Context) {
	var req ValidateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	errs := h.service.ValidateCondition(req.Condition)
	if errs == nil {
		errs = []string{}
	}
	c.JSON(http.StatusOK, ValidateResponse{Valid: len(errs) == 0, Errors: errs})
}

func actor(c *gin.Context) string {
	if v := c.GetHeader(constants.ActorHeader); v != "" {
		return v
	}
	return constants.DefaultAuditActor
}
