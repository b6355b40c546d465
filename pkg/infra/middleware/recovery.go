package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/pkg/errors"
	mwopts "github.com/kart-io/docuverse/pkg/options/middleware"
	"github.com/kart-io/docuverse/pkg/utils/response"
)

// PanicHandler panic 发生后的额外处理，例如告警。
type PanicHandler func(c *gin.Context, err interface{}, stack []byte)

// Recovery 捕获 handler 中的 panic，记录堆栈并返回统一的内部错误响应。
// 默认堆栈只写日志；opts.EnableStackTrace 为 true 时同时写入响应信息。
func Recovery(opts *mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewRecoveryOptions()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Errorw("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(response.RequestIDKey),
					"panic", fmt.Sprintf("%v", r),
					"stack", string(stack),
				)
				if onPanic != nil {
					onPanic(c, r, stack)
				}
				e := errors.ErrInternal.WithCause(fmt.Errorf("panic: %v", r))
				if opts.EnableStackTrace {
					e = e.WithMessage(fmt.Sprintf("panic: %v\n%s", r, stack))
				}
				response.Abort(c, e)
			}
		}()
		c.Next()
	}
}
