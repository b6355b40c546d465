package resilience

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/kart-io/docuverse/pkg/llm"
)

// ResilientEmbeddingProvider 带重试与熔断的 Embedding Provider 包装器。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *gobreaker.CircuitBreaker
}

// NewResilientEmbeddingProvider 创建带韧性功能的 Embedding Provider。
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, retry *RetryConfig, cb BreakerConfig) *ResilientEmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if cb.Name == "" {
		cb.Name = provider.Name() + "-embed"
	}
	return &ResilientEmbeddingProvider{provider: provider, retry: retry, cb: NewCircuitBreaker(cb)}
}

// Embed 为多个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := RetryWithBackoff(ctx, r.retry, func() error {
		v, err := r.cb.Execute(func() (interface{}, error) {
			return r.provider.Embed(ctx, texts)
		})
		if err != nil {
			return err
		}
		result = v.([][]float32)
		return nil
	})
	return result, err
}

// EmbedSingle 为单个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := r.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Name 返回底层供应商名称。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name()
}

// State 返回熔断器状态。
func (r *ResilientEmbeddingProvider) State() gobreaker.State {
	return r.cb.State()
}

// ResilientChatProvider 带重试与熔断的 Chat Provider 包装器。
// 每次尝试都经过熔断器，失败按 IsRetryableError 决定是否重试。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	cb       *gobreaker.CircuitBreaker
}

// NewResilientChatProvider 创建带韧性功能的 Chat Provider。
func NewResilientChatProvider(provider llm.ChatProvider, retry *RetryConfig, cb BreakerConfig) *ResilientChatProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if cb.Name == "" {
		cb.Name = provider.Name() + "-chat"
	}
	return &ResilientChatProvider{provider: provider, retry: retry, cb: NewCircuitBreaker(cb)}
}

func (r *ResilientChatProvider) call(ctx context.Context, fn func() (string, error)) (string, error) {
	var result string
	err := RetryWithBackoff(ctx, r.retry, func() error {
		v, err := r.cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			return err
		}
		result = v.(string)
		return nil
	})
	return result, err
}

// Chat 进行多轮对话（带重试和熔断）。
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return r.call(ctx, func() (string, error) { return r.provider.Chat(ctx, messages) })
}

// Generate 根据提示生成文本（带重试和熔断）。
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	return r.call(ctx, func() (string, error) { return r.provider.Generate(ctx, prompt, systemPrompt) })
}

// Name 返回底层供应商名称。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name()
}

// State 返回熔断器状态。
func (r *ResilientChatProvider) State() gobreaker.State {
	return r.cb.State()
}

var (
	_ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ResilientChatProvider)(nil)
)
