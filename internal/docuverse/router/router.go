// Package router registers the docuverse HTTP routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/kart-io/logger"

	"github.com/kart-io/docuverse/internal/docuverse/handler"
	"github.com/kart-io/docuverse/pkg/infra/middleware"
	"github.com/kart-io/docuverse/pkg/validator"
)

// Options 运维端点依赖，nil 的项不注册。
type Options struct {
	Health  *middleware.HealthManager
	Metrics http.Handler
	// HideVersionDetails 为 true 时 /version 只返回版本号。
	HideVersionDetails bool
}

// Register 注册 /v1 业务路由与 /healthz、/version、/metrics 运维端点。
func Register(engine *gin.Engine, h *handler.Handler, opts Options) {
	logger.Info("Registering docuverse routes...")
	binding.Validator = validator.Global()

	if opts.Health != nil {
		middleware.RegisterHealthRoutes(engine, "/healthz", opts.Health)
	}
	middleware.RegisterVersionRoutes(engine, "/version", opts.HideVersionDetails)
	middleware.RegisterMetricsRoutes(engine, "/metrics", opts.Metrics)

	v1 := engine.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("", h.ListSessions)
			sessions.GET("/:id", h.GetSession)
			sessions.PATCH("/:id", h.RenameSession)
			sessions.POST("/:id/suggest-name", h.SuggestSessionName)
			sessions.DELETE("/:id", h.DeleteSession)

			// Files
			sessions.GET("/:id/files", h.ListFiles)
			sessions.POST("/:id/files", h.UploadFiles)
			sessions.DELETE("/:id/files/:name", h.DeleteFile)

			// Messages and queries
			sessions.GET("/:id/messages", h.ListMessages)
			sessions.POST("/:id/query", h.Query)
			sessions.POST("/:id/messages/:mid/rerun", h.RerunMessage)
			sessions.DELETE("/:id/messages/:mid", h.DeleteMessage)

			// Index
			sessions.GET("/:id/index", h.IndexStatus)
			sessions.POST("/:id/index/rebuild", h.RebuildIndex)

			// Notes
			sessions.GET("/:id/notes", h.ListNotes)
			sessions.POST("/:id/notes", h.AddNote)
			sessions.DELETE("/:id/notes/:nid", h.DeleteNote)
		}
	}

	logger.Info("HTTP routes registered")
}
