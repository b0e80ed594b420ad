package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"novel-series-rag/internal/interfaces/http/dto"
	"novel-series-rag/pkg/errors"
	"novel-series-rag/pkg/logger"
	"novel-series-rag/pkg/metrics"
)

// Recovery Panic 恢复中间件
// 生成接口沿用统一的失败文案，其余接口返回内部错误码
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := routeLabel(c)
			metrics.HTTPPanicsTotal.WithLabelValues(route).Inc()
			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"route", route,
				"method", c.Request.Method,
			)

			if strings.HasSuffix(route, "/generate") {
				dto.Error(c, http.StatusInternalServerError, dto.GenerateFailedMessage)
			} else {
				dto.ErrorWithDetail(c, http.StatusInternalServerError, "internal server error", &dto.ErrorDetail{
					ErrorCode: string(errors.CodeInternalError),
				})
			}
			c.Abort()
		}()

		c.Next()
	}
}
