package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zwlabs/examtrack-backend/internal/model"
	"github.com/zwlabs/examtrack-backend/internal/response"
	"github.com/zwlabs/examtrack-backend/internal/service"
)

// WrongBookHandler exposes per-user wrong-answer history.
type WrongBookHandler struct {
	wrongBookService *service.WrongBookService
}

// NewWrongBookHandler creates a new WrongBookHandler.
func NewWrongBookHandler(wrongBookService *service.WrongBookService) *WrongBookHandler {
	return &WrongBookHandler{wrongBookService: wrongBookService}
}

// GetUserWrongBook godoc
// GET /api/v1/wrong-book/user/:user_id
// A user's missed questions, most recent miss first.
func (h *WrongBookHandler) GetUserWrongBook(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	entries, err := h.wrongBookService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if entries == nil {
		entries = []model.WrongBookEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}
