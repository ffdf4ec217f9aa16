package http

import (
	"dailyquiz-service/internal/logger"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	QuizHandler    *QuizHandler
	WSHandler      *WSHandler
	Verifier       TokenVerifier
	Log            *logger.Logger
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(cfg.Log))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(CORS(cfg.AllowedOrigins))
	}
	r.Use(Authenticate(cfg.Verifier))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})
	if cfg.WSHandler != nil {
		r.GET("/ws/leaderboard", cfg.WSHandler.ServeWS)
	}

	quiz := r.Group("/api/daily-quiz")
	if cfg.QuizHandler != nil {
		quiz.GET("", cfg.QuizHandler.Today)
		quiz.GET("/leaderboard", cfg.QuizHandler.Leaderboard)

		protected := quiz.Group("/", RequireUser())
		protected.POST("/:quizId/submit", cfg.QuizHandler.Submit)
		protected.GET("/:quizId/result", cfg.QuizHandler.Result)
	}
	return r
}
