package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/logger"
	"github.com/gin-gonic/gin"
)

type QuizHandler struct {
	service *app.QuizService
	log     *logger.Logger
}

func NewQuizHandler(service *app.QuizService, log *logger.Logger) *QuizHandler {
	return &QuizHandler{service: service, log: log.With("handler", "QuizHandler")}
}

// GET /api/daily-quiz
func (h *QuizHandler) Today(c *gin.Context) {
	view, err := h.service.Today(c.Request.Context(), UserID(c))
	if err != nil {
		h.respondUseCaseError(c, err)
		return
	}
	RespondOK(c, view)
}

type submitRequest struct {
	Answers map[string]answerBody `json:"answers"`
}

// answerBody accepts the answer as any JSON scalar; booleans and numbers are
// compared by their literal text, null means unanswered.
type answerBody struct {
	Answer    json.RawMessage `json:"answer"`
	TimeSpent int             `json:"timeSpent"`
}

func (b answerBody) text() string {
	raw := bytes.TrimSpace(b.Answer)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// POST /api/daily-quiz/:quizId/submit
func (h *QuizHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	answers := make(map[string]domain.SubmittedAnswer, len(req.Answers))
	for questionID, body := range req.Answers {
		answers[questionID] = domain.SubmittedAnswer{Answer: body.text(), SecondsSpent: body.TimeSpent}
	}

	result, err := h.service.Submit(c.Request.Context(), UserID(c), c.Param("quizId"), answers)
	if err != nil {
		h.respondUseCaseError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/daily-quiz/:quizId/result
func (h *QuizHandler) Result(c *gin.Context) {
	result, err := h.service.Result(c.Request.Context(), UserID(c), c.Param("quizId"))
	if err != nil {
		h.respondUseCaseError(c, err)
		return
	}
	RespondOK(c, result)
}

// GET /api/daily-quiz/leaderboard?scope=global|friends|city&limit=N
func (h *QuizHandler) Leaderboard(c *gin.Context) {
	scope, err := domain.ParseScope(c.Query("scope"))
	if err != nil {
		h.respondUseCaseError(c, err)
		return
	}
	// a malformed limit falls back to the default
	limit, _ := strconv.Atoi(c.Query("limit"))

	lb, err := h.service.Leaderboard(c.Request.Context(), scope, UserID(c), limit)
	if err != nil {
		h.respondUseCaseError(c, err)
		return
	}
	if lb.Entries == nil {
		lb.Entries = []domain.RankEntry{}
	}
	RespondOK(c, lb)
}
