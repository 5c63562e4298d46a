package http

import (
	"context"
	"errors"
	"net/http"

	"dot-pattern-editor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HandleServiceError 把服务层错误映射为 HTTP 状态码。
// 面向用户的错误只返回哨兵错误的消息，不暴露内部细节。
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		ErrorResponse(c, http.StatusNotFound, service.ErrSessionNotFound.Error())
	case errors.Is(err, service.ErrExportNotFound):
		ErrorResponse(c, http.StatusNotFound, service.ErrExportNotFound.Error())
	case errors.Is(err, service.ErrInvalidSize):
		ErrorResponse(c, http.StatusBadRequest, service.ErrInvalidSize.Error())
	case errors.Is(err, service.ErrMazeTooSmall):
		ErrorResponse(c, http.StatusBadRequest, service.ErrMazeTooSmall.Error())
	case errors.Is(err, service.ErrUnknownColor):
		ErrorResponse(c, http.StatusBadRequest, service.ErrUnknownColor.Error())
	case errors.Is(err, service.ErrInvalidEvent):
		ErrorResponse(c, http.StatusBadRequest, service.ErrInvalidEvent.Error())
	case errors.Is(err, service.ErrInvalidScale):
		ErrorResponse(c, http.StatusBadRequest, service.ErrInvalidScale.Error())
	case errors.Is(err, service.ErrNoGrid):
		ErrorResponse(c, http.StatusConflict, service.ErrNoGrid.Error())
	case errors.Is(err, service.ErrExportUnavailable):
		ErrorResponse(c, http.StatusServiceUnavailable, service.ErrExportUnavailable.Error())
	case errors.Is(err, service.ErrExportFailed):
		logrus.WithError(err).Error("Image export failed")
		ErrorResponse(c, http.StatusInternalServerError, service.ErrExportFailed.Error())
	case errors.Is(err, context.DeadlineExceeded):
		ErrorResponse(c, http.StatusServiceUnavailable, "session is busy, try again")
	case errors.Is(err, context.Canceled):
		// 客户端已断开，不再写响应体
		c.Status(499)
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
