package anchoring

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"trustcore/internal/api"
	"trustcore/internal/logger"
	"trustcore/internal/merkle"
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
	batches := router.Group("/api/v1/anchoring/batches")
	{
		batches.GET("", h.ListBatches)
		batches.POST("", h.BuildBatch)
		batches.GET("/:id", h.GetBatch)
		batches.POST("/:id/retry", h.RetryBatch)
	}

	proofs := router.Group("/api/v1/proofs")
	{
		proofs.POST("/verify", h.VerifyProof)
		proofs.GET("/:logId", h.GetProof)
	}
}

// ListBatches godoc
// @Summary      List anchor batches
// @Tags         anchoring
// @Produce      json
// @Success      200  {array}   Batch
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /anchoring/batches [get]
func (h *Handler) ListBatches(c *gin.Context) {
	batches, err := h.service.ListBatches(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

// BuildBatch godoc
// @Summary      Build and anchor a batch for a closed window
// @Tags         anchoring
// @Accept       json
// @Produce      json
// @Param        window  body      BuildRequest  true  "Window"
// @Success      201     {object}  Batch
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      409     {object}  errors.ErrorResponse
// @Router       /anchoring/batches [post]
func (h *Handler) BuildBatch(c *gin.Context) {
	var req BuildRequest
	if !h.BindJSON(c, &req) {
		return
	}

	batch, err := h.service.BuildAndAnchorBatch(c.Request.Context(), req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

// GetBatch godoc
// @Summary      Get an anchor batch
// @Tags         anchoring
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  Batch
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /anchoring/batches/{id} [get]
func (h *Handler) GetBatch(c *gin.Context) {
	batch, err := h.service.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// RetryBatch godoc
// @Summary      Resubmit a pending or failed batch root
// @Tags         anchoring
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  Batch
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /anchoring/batches/{id}/retry [post]
func (h *Handler) RetryBatch(c *gin.Context) {
	batch, err := h.service.RetryBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// GetProof godoc
// @Summary      Inclusion proof for an audit log
// @Tags         proofs
// @Produce      json
// @Param        logId  path      string  true  "Audit log ID"
// @Success      200    {object}  LogProof
// @Failure      404    {object}  errors.ErrorResponse
// @Router       /proofs/{logId} [get]
func (h *Handler) GetProof(c *gin.Context) {
	proof, err := h.service.ProofForLog(c.Request.Context(), c.Param("logId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, proof)
}

// VerifyProof godoc
// @Summary      Verify an inclusion proof
// @Tags         proofs
// @Accept       json
// @Produce      json
// @Param        proof  body      merkle.Proof  true  "Proof"
// @Success      200    {object}  VerifyResult
// @Failure      400    {object}  errors.ErrorResponse
// @Router       /proofs/verify [post]
func (h *Handler) VerifyProof(c *gin.Context) {
	var proof merkle.Proof
	if !h.BindJSON(c, &proof) {
		return
	}

	result, err := h.service.VerifyProof(c.Request.Context(), proof)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
