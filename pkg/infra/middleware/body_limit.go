package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/pkg/errors"
	mwopts "github.com/kart-io/docuverse/pkg/options/middleware"
	"github.com/kart-io/docuverse/pkg/utils/response"
)

func skipMatcher(paths, prefixes []string) func(string) bool {
	exact := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		exact[p] = struct{}{}
	}
	return func(path string) bool {
		if _, ok := exact[path]; ok {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}
}

// BodyLimit 限制请求体大小。multipart/form-data 请求按 UploadMaxSize 限制，其余按 MaxSize。
// Content-Length 超限时直接拒绝；其余情况用 MaxBytesReader 限制实际读取量，
// 超限的读取由 handler 映射为 ErrRequestTooLarge。
func BodyLimit(opts *mwopts.BodyLimitOptions) gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewBodyLimitOptions()
	}
	skip := skipMatcher(opts.SkipPaths, opts.SkipPathPrefixes)

	return func(c *gin.Context) {
		req := c.Request
		if skip(req.URL.Path) {
			c.Next()
			return
		}

		limit := opts.MaxSize
		if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data") {
			limit = opts.UploadMaxSize
		}
		if req.ContentLength > limit {
			logger.Warnw("request body too large",
				"path", req.URL.Path, "content_length", req.ContentLength, "max_size", limit)
			response.Abort(c, errors.ErrRequestTooLarge)
			return
		}
		req.Body = http.MaxBytesReader(c.Writer, req.Body, limit)
		c.Next()
	}
}
