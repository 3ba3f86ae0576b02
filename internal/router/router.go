package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/zwlabs/examtrack-backend/internal/config"
	"github.com/zwlabs/examtrack-backend/internal/handler"
	"github.com/zwlabs/examtrack-backend/internal/middleware"
	"github.com/zwlabs/examtrack-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Exam      *handler.ExamHandler
	Paper     *handler.PaperHandler
	WrongBook *handler.WrongBookHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for mutation routes (60 requests per minute per IP).
	mutateLimiter := middleware.NewRateLimiter(60, time.Minute)

	// ─── Exams ─────────────────────────────────────────────────────────
	exams := router.Group("/api/v1/exams")
	{
		exams.POST("/start", mutateLimiter.Middleware(), handlers.Exam.StartExam)
		exams.POST("/sessions/:session_id/submit", mutateLimiter.Middleware(), handlers.Exam.SubmitExam)
		exams.POST("/sessions/:session_id/auto-submit", mutateLimiter.Middleware(), handlers.Exam.AutoSubmitExam)
		exams.POST("/sessions/:session_id/score", mutateLimiter.Middleware(), handlers.Exam.ManualScoreExam)

		exams.GET("/sessions/:session_id", handlers.Exam.GetSession)
		exams.GET("/records", handlers.Exam.GetRecords)
		exams.GET("/records/user/:user_id", handlers.Exam.GetUserRecords)
		exams.GET("/statistics/:paper_id", handlers.Exam.GetStatistics)
	}

	// ─── Papers ────────────────────────────────────────────────────────
	papers := router.Group("/api/v1/papers")
	{
		papers.GET("/:paper_id", handlers.Paper.GetPaper)
	}

	// ─── Wrong Book ────────────────────────────────────────────────────
	wrongBook := router.Group("/api/v1/wrong-book")
	{
		wrongBook.GET("/user/:user_id", handlers.WrongBook.GetUserWrongBook)
	}

	return router
}
