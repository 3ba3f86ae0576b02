package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zwlabs/examtrack-backend/internal/response"
	"github.com/zwlabs/examtrack-backend/internal/service"
)

// PaperHandler exposes read-only paper views for exam takers.
type PaperHandler struct {
	paperService *service.PaperService
}

// NewPaperHandler creates a new PaperHandler.
func NewPaperHandler(paperService *service.PaperService) *PaperHandler {
	return &PaperHandler{paperService: paperService}
}

// GetPaper godoc
// GET /api/v1/papers/:paper_id
// Returns the taker-facing payload of a published paper, answer keys stripped.
func (h *PaperHandler) GetPaper(c *gin.Context) {
	paperID, err := strconv.ParseInt(c.Param("paper_id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	payload, err := h.paperService.GetPayload(c.Request.Context(), paperID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, payload)
}
