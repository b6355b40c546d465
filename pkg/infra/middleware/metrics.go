package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// UnmatchedRoute 未命中任何路由时的 route 标签，避免把任意路径写入标签。
const UnmatchedRoute = "unmatched"

// HTTPRecorder 接收每个请求的指标。
type HTTPRecorder interface {
	RecordHTTPRequest(method, route, status string, duration time.Duration)
}

// Metrics 按路由模板记录请求数与耗时。
func Metrics(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rec == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		rec.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// RegisterMetricsRoutes 在 path 上暴露 Prometheus 指标。
func RegisterMetricsRoutes(r gin.IRoutes, path string, handler http.Handler) {
	if handler == nil {
		return
	}
	if path == "" {
		path = "/metrics"
	}
	r.GET(path, gin.WrapH(handler))
}
