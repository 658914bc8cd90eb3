package ledger

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trustcore/internal/api"
	"trustcore/internal/logger"
)

type Handler struct {
	api.BaseHandler
	repo Repository
}

func NewHandler(repo Repository, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: api.BaseHandler{Logger: log},
		repo:        repo,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	events := router.Group("/api/v1/ledger/events")
	{
		events.POST("", h.CreateEvent)
		events.GET("/:id", h.GetEvent)
		events.GET("/:id/allocations", h.ListAllocations)
	}
}

// CreateEvent godoc
// @Summary      Record a ledger event
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        event  body      CreateEventRequest  true  "Ledger event"
// @Success      201    {object}  Event
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /ledger/events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if !h.BindJSON(c, &req) {
		return
	}

	event := &Event{Amount: req.Amount, Currency: req.Currency, Description: req.Description}
	if err := h.repo.CreateEvent(c.Request.Context(), event); err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// GetEvent godoc
// @Summary      Get a ledger event
// @Tags         ledger
// @Produce      json
// @Param        id   path      string  true  "Ledger event ID"
// @Success      200  {object}  Event
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /ledger/events/{id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	event, err := h.repo.GetLedgerEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// ListAllocations godoc
// @Summary      List allocations of a ledger event
// @Tags         ledger
// @Produce      json
// @Param        id   path      string  true  "Ledger event ID"
// @Success      200  {array}   Allocation
// @Router       /ledger/events/{id}/allocations [get]
func (h *Handler) ListAllocations(c *gin.Context) {
	allocations, err := h.repo.ListAllocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, allocations)
}
