package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/time/rate"

	"github.com/kart-io/docuverse/internal/docuverse/metrics"
	"github.com/kart-io/docuverse/pkg/infra/pool"
	"github.com/kart-io/docuverse/pkg/llm"
	"github.com/kart-io/docuverse/pkg/llm/resilience"
)

// ErrLLMInit 模型客户端初始化重试耗尽。
var ErrLLMInit = errors.New("failed to initialize language model client")

// DefaultLLMTimeout 单次模型调用（含排队、限流与重试）的上限。
const DefaultLLMTimeout = 45 * time.Second

// ChatFactory 创建对话供应商。
type ChatFactory func() (llm.ChatProvider, error)

// LLMClientConfig 模型客户端配置。
type LLMClientConfig struct {
	Init    resilience.InitConfig
	Retry   *resilience.RetryConfig
	Breaker resilience.BreakerConfig
	// RateLimit 每分钟调用数，<= 0 不限流。
	RateLimit int
	Timeout   time.Duration
	Metrics   *metrics.Metrics
}

// LLMClient 带限流、熔断、重试与超时的模型客户端。
// 限流器与熔断器在所有会话之间共享，worker 池由每个问答引擎各自提供。
type LLMClient struct {
	provider *resilience.ResilientChatProvider
	limiter  *rate.Limiter
	timeout  time.Duration
	pool     *pool.Pool
	metrics  *metrics.Metrics
}

// NewLLMClient 通过 factory 创建供应商，失败时按 cfg.Init 重试。
func NewLLMClient(ctx context.Context, factory ChatFactory, cfg LLMClientConfig) (*LLMClient, error) {
	if cfg.Init.MaxAttempts == 0 {
		cfg.Init = resilience.DefaultInitConfig()
	}
	if cfg.Retry == nil {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	provider, err := resilience.InitWithRetry(ctx, cfg.Init, func() (llm.ChatProvider, error) {
		return factory()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLMInit, err)
	}

	if cfg.Breaker.Name == "" {
		cfg.Breaker = resilience.DefaultBreakerConfig(provider.Name() + "-chat")
	}
	logger.Infow("language model client initialized", "provider", provider.Name(), "rate_limit", cfg.RateLimit)

	return &LLMClient{
		provider: resilience.NewResilientChatProvider(provider, cfg.Retry, cfg.Breaker),
		limiter:  resilience.NewRateLimiter(cfg.RateLimit),
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
	}, nil
}

// WithPool 返回在 p 上执行调用的副本，共享限流器与熔断器。
func (c *LLMClient) WithPool(p *pool.Pool) *LLMClient {
	cp := *c
	cp.pool = p
	return &cp
}

// Name 返回底层供应商名称。
func (c *LLMClient) Name() string {
	return c.provider.Name()
}

// Complete 生成回答。失败时返回 *resilience.ClassifiedError。
func (c *LLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	text, err := pool.Run(ctx, c.pool, c.timeout, func(ctx context.Context) (string, error) {
		// 等待令牌会超过调用期限时 Wait 立即失败，按超时处理。
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &resilience.ClassifiedError{Class: resilience.ClassTimedOut, Err: err}
		}
		return c.provider.Generate(ctx, prompt, "")
	})

	if err != nil {
		ce := classifyLLMError(err)
		c.metrics.RecordLLMCall(ce.Class.String(), time.Since(start))
		logger.Warnw("language model call failed", "provider", c.provider.Name(), "class", ce.Class.String(), "error", err.Error())
		return "", ce
	}

	c.metrics.RecordLLMCall("success", time.Since(start))
	return text, nil
}

func classifyLLMError(err error) *resilience.ClassifiedError {
	if errors.Is(err, pool.ErrPoolOverload) || errors.Is(err, pool.ErrPoolClosed) {
		return &resilience.ClassifiedError{Class: resilience.ClassUnavailable, Err: err}
	}
	return resilience.Classified(err)
}
