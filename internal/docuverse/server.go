// Package docuverse wires the document chat service: storage, embedders,
// the language model client, per-session query engines and the HTTP API.
package docuverse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docuverse/internal/docuverse/biz"
	"github.com/kart-io/docuverse/internal/docuverse/handler"
	"github.com/kart-io/docuverse/internal/docuverse/metrics"
	"github.com/kart-io/docuverse/internal/docuverse/router"
	"github.com/kart-io/docuverse/internal/docuverse/store"
	"github.com/kart-io/docuverse/pkg/component/database"
	"github.com/kart-io/docuverse/pkg/component/redis"
	"github.com/kart-io/docuverse/pkg/infra/app"
	"github.com/kart-io/docuverse/pkg/infra/middleware"
	"github.com/kart-io/docuverse/pkg/infra/pool"
	"github.com/kart-io/docuverse/pkg/infra/server"
	httpserver "github.com/kart-io/docuverse/pkg/infra/server/http"
	"github.com/kart-io/docuverse/pkg/infra/tracing"
	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/llm/hashembed"
	"github.com/kart-io/docuverse/pkg/llm/resilience"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docuverse/pkg/llm/huggingface"
	_ "github.com/kart-io/docuverse/pkg/llm/ollama"
	_ "github.com/kart-io/docuverse/pkg/llm/openai"
	cacheopts "github.com/kart-io/docuverse/pkg/options/cache"
	dbopts "github.com/kart-io/docuverse/pkg/options/database"
	httpopts "github.com/kart-io/docuverse/pkg/options/http"
	llmopts "github.com/kart-io/docuverse/pkg/options/llm"
	logopts "github.com/kart-io/docuverse/pkg/options/logger"
	mwopts "github.com/kart-io/docuverse/pkg/options/middleware"
	ragopts "github.com/kart-io/docuverse/pkg/options/rag"
	tracingopts "github.com/kart-io/docuverse/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "docuverse"

// DatabaseFile 未配置 sqlite 路径时使用的文件名，位于数据目录下。
const DatabaseFile = "conversations.db"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	RAGOptions        *ragopts.Options
	DatabaseOptions   *dbopts.Options
	CacheOptions      *cacheopts.Options
	TracingOptions    *tracingopts.Options
	MiddlewareOptions *mwopts.Options
	ShutdownTimeout   time.Duration
}

// Server represents the docuverse server.
type Server struct {
	srv             *server.Manager
	service         *biz.SessionService
	pools           *pool.Manager
	tracer          *tracing.Provider
	shutdownTimeout time.Duration
	closers         []func() error
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting docuverse service...")

	s := &Server{shutdownTimeout: cfg.ShutdownTimeout}
	ok := false
	defer func() {
		if !ok {
			s.cleanup(context.Background())
		}
	}()

	// 2. 初始化链路追踪
	if cfg.TracingOptions.ServiceName == "" {
		cfg.TracingOptions.ServiceName = Name
	}
	if cfg.TracingOptions.ServiceVersion == "" {
		cfg.TracingOptions.ServiceVersion = app.GetVersion()
	}
	tp, err := tracing.NewProvider(cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.tracer = tp

	m := metrics.New()

	// 3. 初始化会话存储
	if cfg.DatabaseOptions.Driver == dbopts.DriverSQLite && cfg.DatabaseOptions.Path == "" {
		cfg.DatabaseOptions.Path = filepath.Join(cfg.RAGOptions.DataDir, DatabaseFile)
	}
	db, err := database.New(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.closers = append(s.closers, db.Close)
	ds := store.New(db.DB())
	if err := ds.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Infow("Conversation store initialized", "driver", cfg.DatabaseOptions.Driver)

	health := middleware.NewHealthManager(app.GetVersion())
	health.RegisterChecker("database", func() error { return pingWithTimeout(db.Ping) })

	// 4. 初始化 Redis（可选，连接失败时只用进程内缓存）
	var redisClient goredis.UniversalClient
	if cfg.CacheOptions.Enabled && cfg.CacheOptions.Redis != nil {
		rc, err := redis.New(ctx, cfg.CacheOptions.Redis)
		if err != nil {
			logger.Warnw("failed to connect to redis, using in-process cache only", "error", err.Error())
		} else {
			redisClient = rc.Client()
			s.closers = append(s.closers, rc.Close)
			health.RegisterChecker("redis", func() error { return pingWithTimeout(rc.Ping) })
			logger.Infow("Redis cache initialized", "addr", cfg.CacheOptions.Redis.Addr())
		}
	}

	// 5. 初始化 worker 池
	s.pools = pool.NewManager()
	loaderCfg := pool.LoaderPoolConfig()
	if cfg.RAGOptions.LoaderWorkers > 0 {
		loaderCfg.Capacity = cfg.RAGOptions.LoaderWorkers
	}
	loaderPool, err := s.pools.Register(string(pool.LoaderPool), pool.LoaderPool, loaderCfg)
	if err != nil {
		return nil, err
	}
	backgroundPool, err := s.pools.Register(string(pool.BackgroundPool), pool.BackgroundPool, pool.BackgroundPoolConfig())
	if err != nil {
		return nil, err
	}
	queryPool, err := s.pools.Register(string(pool.QueryPool), pool.QueryPool, pool.QueryPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := m.RegisterPools(s.pools); err != nil {
		logger.Warnw("failed to register pool metrics", "error", err.Error())
	}

	// 6. 初始化嵌入服务：主服务失败时各会话在探测后退回哈希嵌入
	primary, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		logger.Warnw("failed to create embedding provider, sessions will use the fallback embedder",
			"provider", cfg.EmbeddingOptions.Provider, "error", err.Error())
		primary = nil
	} else {
		primary = resilience.NewResilientEmbeddingProvider(primary, nil,
			resilience.DefaultBreakerConfig(primary.Name()+"-embed"))
	}
	if primary != nil && redisClient != nil {
		primary = llm.NewCachedEmbeddingProvider(primary, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       cfg.CacheOptions.EmbeddingTTL,
			KeyPrefix: cfg.CacheOptions.EmbeddingKeyPrefix,
		})
	}
	fallback := hashembed.New(cfg.RAGOptions.FallbackDimension)
	logger.Infow("Embedding providers initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
		"fallback", fallback.Name(),
	)

	// 7. 初始化模型客户端
	llmClient, err := biz.NewLLMClient(ctx, func() (llm.ChatProvider, error) {
		return llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	}, biz.LLMClientConfig{
		RateLimit: cfg.ChatOptions.RateLimit,
		Timeout:   cfg.ChatOptions.Timeout,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 8. 初始化业务层
	svc, err := biz.NewSessionService(biz.SessionServiceConfig{
		DataDir:          cfg.RAGOptions.DataDir,
		Store:            ds,
		Primary:          primary,
		Fallback:         fallback,
		ProbeTimeout:     cfg.RAGOptions.ProbeTimeout,
		LLM:              llmClient,
		Cache:            biz.NewResponseCache(redisClient, biz.ResponseCacheConfig{KeyPrefix: cfg.CacheOptions.KeyPrefix}),
		LoaderPool:       loaderPool,
		BackgroundPool:   backgroundPool,
		QueryPool:        queryPool,
		ChunkSize:        cfg.RAGOptions.ChunkSize,
		ChunkOverlap:     cfg.RAGOptions.ChunkOverlap,
		BatchSize:        cfg.EmbeddingOptions.BatchSize,
		TopK:             cfg.RAGOptions.TopK,
		MaxContextChars:  cfg.RAGOptions.MaxContextChars,
		RebuildInterval:  cfg.RAGOptions.RebuildInterval,
		QueryTimeout:     cfg.RAGOptions.QueryTimeout,
		SimilarityCutoff: cfg.RAGOptions.SimilarityCutoff,
		Metrics:          m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session service: %w", err)
	}
	s.service = svc
	logger.Infow("Session service initialized", "data_dir", cfg.RAGOptions.DataDir)

	// 9. 初始化 HTTP 服务与路由
	httpSrv := httpserver.NewServer(cfg.HTTPOptions,
		middleware.Recovery(cfg.MiddlewareOptions.Recovery, nil),
		middleware.RequestID(cfg.MiddlewareOptions.RequestID),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.BodyLimit(cfg.MiddlewareOptions.BodyLimit),
		middleware.Timeout(cfg.MiddlewareOptions.Timeout),
	)
	router.Register(httpSrv.Engine(), handler.NewHandler(svc), router.Options{
		Health:  health,
		Metrics: m.Handler(),
	})
	s.srv = server.NewManager(httpSrv)

	// 10. 上传目录监听
	if cfg.RAGOptions.WatchUploads {
		w, err := biz.NewUploadWatcher(svc.UploadRoot(), cfg.RAGOptions.WatchDebounce, svc.TriggerBuild)
		if err != nil {
			logger.Warnw("failed to watch upload directory, rebuilds only follow API uploads", "error", err.Error())
		} else {
			s.srv.Add(&watcherRunner{watcher: w})
		}
	}

	logger.Info("docuverse service is ready")
	ok = true
	return s, nil
}

// Run 启动服务并阻塞到 ctx 取消，然后在 ShutdownTimeout 内优雅退出。
func (s *Server) Run(ctx context.Context) error {
	if err := s.srv.Start(ctx); err != nil {
		s.cleanup(context.Background())
		return err
	}

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.srv.Stop(shutdownCtx)
	s.cleanup(shutdownCtx)
	return err
}

// cleanup 依次关闭会话引擎、worker 池、外部连接与 tracing。
func (s *Server) cleanup(ctx context.Context) {
	if s.service != nil {
		s.service.Close()
	}
	if s.pools != nil {
		if err := s.pools.ReleaseAllTimeout(5 * time.Second); err != nil {
			logger.Warnw("failed to release worker pools", "error", err.Error())
		}
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warnw("failed to close resource", "error", err.Error())
		}
	}
	s.closers = nil
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			logger.Warnw("failed to shutdown tracing", "error", err.Error())
		}
	}
	_ = logger.Flush()
}

func pingWithTimeout(ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return ping(ctx)
}

// watcherRunner 把上传目录监听适配为可启停组件。
type watcherRunner struct {
	watcher *biz.UploadWatcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (r *watcherRunner) Name() string { return "upload-watcher" }

func (r *watcherRunner) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.watcher.Run(ctx)
	}()
	return nil
}

func (r *watcherRunner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("upload watcher did not stop in time")
	}
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  HTTP: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Data dir: %s\n", cfg.RAGOptions.DataDir)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Database: %s\n", cfg.DatabaseOptions.Driver)
}
