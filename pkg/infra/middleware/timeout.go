package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/kart-io/docuverse/pkg/errors"
	mwopts "github.com/kart-io/docuverse/pkg/options/middleware"
	"github.com/kart-io/docuverse/pkg/utils/response"
)

// Timeout 给请求 context 设置期限。handler 在同一 goroutine 中执行，
// 期限到达且尚未写出响应时返回 ErrTimeout。
func Timeout(opts *mwopts.TimeoutOptions) gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewTimeoutOptions()
	}
	skip := skipMatcher(opts.SkipPaths, nil)

	return func(c *gin.Context) {
		if opts.Timeout <= 0 || skip(c.Request.URL.Path) {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			response.Abort(c, pkgerrors.ErrTimeout)
		}
	}
}
