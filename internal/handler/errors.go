package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shorturl-service/internal/apperr"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error string `json:"error"`
}

// errorWriter 把业务错误映射为 HTTP 状态码，响应体为 {"error": "..."}
type errorWriter struct {
	// rateLimitedStatus 登录尝试超限时的状态码
	rateLimitedStatus int
}

func newErrorWriter(rateLimitedStatus int) errorWriter {
	if rateLimitedStatus == 0 {
		rateLimitedStatus = http.StatusTooManyRequests
	}
	return errorWriter{rateLimitedStatus: rateLimitedStatus}
}

func (w errorWriter) status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation), errors.Is(err, apperr.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrRateLimited):
		return w.rateLimitedStatus
	default:
		return http.StatusInternalServerError
	}
}

func (w errorWriter) writeError(c *gin.Context, err error) {
	status := w.status(err)
	if status != http.StatusInternalServerError {
		c.JSON(status, ErrorResponse{Error: apperr.Message(err)})
		return
	}

	_ = c.Error(err)
	zap.S().Errorf("%s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
	msg := "服务器内部错误"
	if errors.Is(err, apperr.ErrGenerationExhausted) {
		msg = apperr.Message(err)
	}
	c.JSON(status, ErrorResponse{Error: msg})
}
