package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	ctxlog "github.com/kart-io/docuverse/pkg/infra/logger"
)

// DefaultLogSkipPaths 默认不记录访问日志的路径。
var DefaultLogSkipPaths = []string{"/healthz", "/metrics"}

// fieldsPool 复用日志字段切片，减少每个请求的分配。
var fieldsPool = sync.Pool{
	New: func() interface{} {
		s := make([]interface{}, 0, 16)
		return &s
	},
}

func acquireFields() *[]interface{} {
	return fieldsPool.Get().(*[]interface{})
}

func releaseFields(fields *[]interface{}) {
	*fields = (*fields)[:0]
	fieldsPool.Put(fields)
}

// Logger 记录每个请求的方法、路径、状态码与耗时。
// 5xx 用 Error 级别，4xx 用 Warn 级别，其余用 Info 级别。
func Logger(skipPaths ...string) gin.HandlerFunc {
	if len(skipPaths) == 0 {
		skipPaths = DefaultLogSkipPaths
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skip[path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := acquireFields()
		defer releaseFields(fields)

		status := c.Writer.Status()
		*fields = append(*fields,
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"remote_addr", c.ClientIP(),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
		)
		if len(c.Errors) > 0 {
			*fields = append(*fields, "error", c.Errors.String())
		}

		log := ctxlog.FromContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Errorw("HTTP Request", (*fields)...)
		case status >= 400:
			log.Warnw("HTTP Request", (*fields)...)
		default:
			log.Infow("HTTP Request", (*fields)...)
		}
	}
}
