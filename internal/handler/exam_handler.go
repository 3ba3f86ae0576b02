package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zwlabs/examtrack-backend/internal/model"
	"github.com/zwlabs/examtrack-backend/internal/response"
	"github.com/zwlabs/examtrack-backend/internal/service"
	"github.com/zwlabs/examtrack-backend/internal/validator"
)

// ExamHandler exposes the exam session lifecycle and its read side.
type ExamHandler struct {
	sessionService *service.SessionService
	userService    *service.UserService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(sessionService *service.SessionService, userService *service.UserService) *ExamHandler {
	return &ExamHandler{
		sessionService: sessionService,
		userService:    userService,
	}
}

// StartExam godoc
// POST /api/v1/exams/start
// Creates a new attempt. At most one session per (user, paper), ever.
func (h *ExamHandler) StartExam(c *gin.Context) {
	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exists, err := h.userService.Exists(c.Request.Context(), req.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if !exists {
		response.Fail(c, http.StatusNotFound, response.ErrUserNotFound)
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), req.UserID, req.PaperID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// SubmitExam godoc
// POST /api/v1/exams/sessions/:session_id/submit
// Records the answer snapshot and computes the automated score.
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Submit(c.Request.Context(), sessionID, req.Answers)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// AutoSubmitExam godoc
// POST /api/v1/exams/sessions/:session_id/auto-submit
// Idempotent force-termination hook for schedulers and proctoring tools.
func (h *ExamHandler) AutoSubmitExam(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	if err := h.sessionService.AutoSubmit(c.Request.Context(), sessionID); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// ManualScoreExam godoc
// POST /api/v1/exams/sessions/:session_id/score
// Records the reviewer's score and closes the session.
func (h *ExamHandler) ManualScoreExam(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	var req model.ManualScoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.ManualScore(c.Request.Context(), sessionID, req.Score); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// GetSession godoc
// GET /api/v1/exams/sessions/:session_id
func (h *ExamHandler) GetSession(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// GetUserRecords godoc
// GET /api/v1/exams/records/user/:user_id
// All of a user's attempts, newest first.
func (h *ExamHandler) GetUserRecords(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sessions, err := h.sessionService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}

	response.Success(c, http.StatusOK, gin.H{"records": sessions})
}

// GetRecords godoc
// GET /api/v1/exams/records?user_id=&paper_id=&status=&page=&per_page=
// Paginated session listing with optional filters, for review tooling.
func (h *ExamHandler) GetRecords(c *gin.Context) {
	filter := model.SessionFilter{
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 10),
	}

	if raw := c.Query("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		filter.UserID = &id
	}
	if raw := c.Query("paper_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		filter.PaperID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := model.SessionStatus(raw)
		filter.Status = &status
	}

	sessions, total, err := h.sessionService.ListRecords(c.Request.Context(), filter)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if sessions == nil {
		sessions = []model.ExamSession{}
	}

	totalPages := int(total) / filter.PerPage
	if int(total)%filter.PerPage > 0 {
		totalPages++
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"records": sessions}, &response.Pagination{
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalItems: int(total),
		TotalPages: totalPages,
	})
}

// GetStatistics godoc
// GET /api/v1/exams/statistics/:paper_id
// Count/average/max/min of final scores over a paper's finished sessions.
func (h *ExamHandler) GetStatistics(c *gin.Context) {
	paperID, err := strconv.ParseInt(c.Param("paper_id"), 10, 64)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	stats, err := h.sessionService.GetStatistics(c.Request.Context(), paperID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// failSessionError maps session core sentinels to API error codes.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAlreadyAttempted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadyAttempted)
	case errors.Is(err, service.ErrExamNotOpen):
		response.Fail(c, http.StatusBadRequest, response.ErrExamNotOpen)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrInvalidState):
		response.Fail(c, http.StatusConflict, response.ErrInvalidState)
	case errors.Is(err, service.ErrInvalidScore):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidScore)
	case errors.Is(err, service.ErrPaperNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrPaperNotFound)
	case errors.Is(err, service.ErrCatalogUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrCatalogUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
