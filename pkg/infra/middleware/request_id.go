// Package middleware 提供 docuverse HTTP 服务使用的 gin 中间件与运维端点。
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docuverse/pkg/id"
	ctxlog "github.com/kart-io/docuverse/pkg/infra/logger"
	mwopts "github.com/kart-io/docuverse/pkg/options/middleware"
	"github.com/kart-io/docuverse/pkg/utils/response"
)

// HeaderXRequestID 默认的请求 ID 头。
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID 把请求 ID 存入 context。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID 从 context 取请求 ID，不存在时返回空串。
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestID 为每个请求分配 ID。opts 为 nil 时使用默认配置。
// 客户端已带请求 ID 头时沿用，否则按配置生成 UUID 或 ULID；ID 写回响应头、gin 上下文与请求 context。
func RequestID(opts *mwopts.RequestIDOptions) gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewRequestIDOptions()
	}
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}
	generate := id.NewRequestID
	if opts.Generator == mwopts.GeneratorULID {
		generate = id.NewULID
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(header)
		if requestID == "" {
			requestID = generate()
		}

		c.Header(header, requestID)
		c.Set(response.RequestIDKey, requestID)
		ctx := WithRequestID(c.Request.Context(), requestID)
		ctx = ctxlog.WithTraceFields(ctxlog.WithRequestID(ctx, requestID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
