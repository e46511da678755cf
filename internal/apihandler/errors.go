package apihandler

import (
	"net/http"
	"time"

	"github.com/hewenyu/avatar-gateway/internal/resolver"
	"github.com/hewenyu/avatar-gateway/internal/upstream"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func newErrorBody(message string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     message,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// errorResponse 把解析错误映射为HTTP响应，上游细节不返回给客户端
func (h *EchoHandler) errorResponse(c echo.Context, err error) error {
	switch resolver.CodeOf(err) {
	case resolver.ErrClientInput:
		return c.JSON(http.StatusBadRequest, newErrorBody(err.Error()))
	case resolver.ErrResourceAbsent:
		return c.JSON(http.StatusNotFound, newErrorBody(err.Error()))
	case resolver.ErrUpstream:
		if upstream.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, newErrorBody("user not found"))
		}
		h.logger.Error("上游服务错误",
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, newErrorBody("upstream service error"))
	default:
		h.logger.Error("处理请求失败",
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, newErrorBody("internal server error"))
	}
}
