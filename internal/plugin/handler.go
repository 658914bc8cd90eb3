package plugin

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"trustcore/internal/api"
	"trustcore/internal/logger"
	"trustcore/pkg/errors"
)

type Handler struct {
	api.BaseHandler
	registry Registry
}

func NewHandler(registry Registry, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: api.BaseHandler{Logger: log},
		registry:    registry,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	plugins := router.Group("/api/v1/plugins")
	{
		plugins.GET("", h.ListPlugins)
		plugins.POST("", h.RegisterPlugin)
		plugins.GET("/:id", h.GetPlugin)
		plugins.PUT("/:id/enabled", h.SetEnabled)
	}
}

// ListPlugins godoc
// @Summary      List registered plugins
// @Tags         plugins
// @Produce      json
// @Success      200  {array}   Plugin
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /plugins [get]
func (h *Handler) ListPlugins(c *gin.Context) {
	plugins, err := h.registry.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, plugins)
}

// RegisterPlugin godoc
// @Summary      Register a plugin
// @Tags         plugins
// @Accept       json
// @Produce      json
// @Param        plugin  body      RegisterRequest  true  "Plugin"
// @Success      201     {object}  Plugin
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      409     {object}  errors.ErrorResponse
// @Router       /plugins [post]
func (h *Handler) RegisterPlugin(c *gin.Context) {
	var req RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := &Plugin{
		ID:      req.ID,
		Name:    req.Name,
		Enabled: req.Enabled == nil || *req.Enabled,
		Topic:   req.Topic,
		Config:  req.Config,
	}
	if err := h.registry.Register(c.Request.Context(), p); err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, p)
}

// GetPlugin godoc
// @Summary      Get a plugin
// @Tags         plugins
// @Produce      json
// @Param        id   path      string  true  "Plugin ID"
// @Success      200  {object}  Plugin
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /plugins/{id} [get]
func (h *Handler) GetPlugin(c *gin.Context) {
	id := c.Param("id")
	p, err := h.registry.GetPlugin(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if p == nil {
		h.HandleError(c, errors.ErrNotFound.WithDetail("message", fmt.Sprintf("plugin '%s' not found", id)))
		return
	}
	c.JSON(http.StatusOK, p)
}

// SetEnabled godoc
// @Summary      Enable or disable a plugin
// @Tags         plugins
// @Accept       json
// @Param        id       path  string             true  "Plugin ID"
// @Param        request  body  SetEnabledRequest  true  "Enabled flag"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /plugins/{id}/enabled [put]
func (h *Handler) SetEnabled(c *gin.Context) {
	var req SetEnabledRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.registry.SetEnabled(c.Request.Context(), c.Param("id"), req.Enabled); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
