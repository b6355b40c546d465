// Package http 提供基于 gin 的 HTTP 服务。
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	pkgerrors "github.com/kart-io/docuverse/pkg/errors"
	"github.com/kart-io/docuverse/pkg/infra/server"
	httpopts "github.com/kart-io/docuverse/pkg/options/http"
	"github.com/kart-io/docuverse/pkg/utils/response"
)

var _ server.Runnable = (*Server)(nil)

// Server gin HTTP 服务。
type Server struct {
	opts     *httpopts.Options
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
}

// NewServer 创建 HTTP 服务。中间件在创建时注册，使之后的路由组都能继承。
func NewServer(opts *httpopts.Options, middlewares ...gin.HandlerFunc) *Server {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	gin.SetMode(opts.Mode)

	engine := gin.New()
	engine.MaxMultipartMemory = 32 << 20
	engine.Use(middlewares...)
	engine.NoRoute(func(c *gin.Context) {
		response.WriteResponse(c, pkgerrors.ErrNotFound, nil)
	})
	engine.NoMethod(func(c *gin.Context) {
		response.WriteResponse(c, pkgerrors.ErrNotFound, nil)
	})

	return &Server{opts: opts, engine: engine}
}

// Name 返回服务名称。
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine 返回 gin 引擎，用于注册路由。
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr 返回实际监听地址；未启动时返回配置地址。
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start 监听端口并在后台提供服务。端口不可用时直接返回错误。
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("http server stopped unexpectedly", "addr", s.Addr(), "error", err.Error())
		}
	}()
	logger.Infow("HTTP server listening", "addr", s.Addr())
	return nil
}

// Stop 优雅关闭，等待进行中的请求结束或 ctx 超时。
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
