// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"textbook-ai-api/internal/interfaces/http/dto"
	"textbook-ai-api/pkg/errors"
	"textbook-ai-api/pkg/logger"
)

// respondError 将应用错误映射为 HTTP 响应。
// 非 AppError 的错误统一按 500 返回，避免泄露内部细节。
func respondError(c *gin.Context, err error, fallbackMsg string) {
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		})
		return
	}

	logger.Error(c.Request.Context(), fallbackMsg, err,
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	dto.InternalError(c, fallbackMsg)
}
