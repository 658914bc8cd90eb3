package audit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trustcore/internal/api"
	"trustcore/internal/logger"
	"trustcore/pkg/errors"
)

type Handler struct {
	api.BaseHandler
	recorder *Recorder
}

func NewHandler(recorder *Recorder, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: api.BaseHandler{Logger: log},
		recorder:    recorder,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	logs := router.Group("/api/v1/audit/logs")
	{
		logs.POST("", h.AppendLog)
		logs.GET("", h.ListLogs)
		logs.GET("/:id", h.GetLog)
	}
}

// AppendLog godoc
// @Summary      Append an audit log entry
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        entry  body      AppendRequest  true  "Audit entry"
// @Success      201    {object}  Entry
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      500    {object}  errors.ErrorResponse
// @Router       /audit/logs [post]
func (h *Handler) AppendLog(c *gin.Context) {
	var req AppendRequest
	if !h.BindJSON(c, &req) {
		return
	}

	entry, err := h.recorder.Append(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// GetLog godoc
// @Summary      Get an audit log entry
// @Tags         audit
// @Produce      json
// @Param        id   path      string  true  "Audit log ID"
// @Success      200  {object}  Entry
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /audit/logs/{id} [get]
func (h *Handler) GetLog(c *gin.Context) {
	entry, err := h.recorder.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// ListLogs godoc
// @Summary      List audit log entries in a time window
// @Tags         audit
// @Produce      json
// @Param        start  query     string  true  "Window start (RFC3339, inclusive)"
// @Param        end    query     string  true  "Window end (RFC3339, exclusive)"
// @Success      200    {array}   Entry
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) ListLogs(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		h.HandleError(c, errors.Validationf("invalid start: %v", err))
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		h.HandleError(c, errors.Validationf("invalid end: %v", err))
		return
	}

	entries, err := h.recorder.ListWindow(c.Request.Context(), start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
