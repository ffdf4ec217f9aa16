package http

import (
	"errors"
	"net/http"

	"dailyquiz-service/internal/domain"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{domain.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{domain.ErrQuizNotFound, http.StatusNotFound, "quiz_not_found"},
	{domain.ErrAttemptNotFound, http.StatusNotFound, "attempt_not_found"},
	{domain.ErrQuizExpired, http.StatusGone, "quiz_expired"},
	{domain.ErrInvalidScope, http.StatusBadRequest, "invalid_scope"},
	{domain.ErrInsufficientContent, http.StatusServiceUnavailable, "insufficient_content"},
}

// statusFor maps a use-case error to its HTTP status and error code.
// Anything unrecognised is an internal error.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// respondUseCaseError writes the mapped error. Internal failures are logged
// and answered with a generic message so storage details never leak.
func (h *QuizHandler) respondUseCaseError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		RespondError(c, status, code, errors.New("server error"))
		return
	}
	RespondError(c, status, code, err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
