// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docuverse/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// GroqAPIKeyEnv 对话供应商未配置 api-key 时读取的环境变量。
const GroqAPIKeyEnv = "GROQ_API_KEY"

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, openai, groq, huggingface, hashembed）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Temperature 采样温度，仅对话使用。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，仅对话使用。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// RateLimit 每分钟允许的调用次数，仅对话使用，<=0 表示不限。
	RateLimit int `json:"rate-limit" mapstructure:"rate-limit"`

	// BatchSize 单次嵌入请求的文本数，仅嵌入使用。
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:  "ollama",
		BaseURL:   "http://localhost:11434",
		Model:     "nomic-embed-text",
		Timeout:   60 * time.Second,
		BatchSize: 32,
	}
}

// NewChatOptions 创建默认 Chat 供应商配置，默认走 Groq 的 OpenAI 兼容接口。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:    "groq",
		BaseURL:     "https://api.groq.com/openai/v1",
		Model:       "deepseek-r1-distill-llama-70b",
		Timeout:     45 * time.Second,
		Temperature: 0.3,
		MaxTokens:   2000,
		RateLimit:   30,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"temperature": o.Temperature,
		"max_tokens":  o.MaxTokens,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (ollama, openai, groq, huggingface, hashembed).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens to generate.")
	fs.IntVar(&o.RateLimit, p+"rate-limit", o.RateLimit, "Calls allowed per minute (<=0 disables limiting).")
	fs.IntVar(&o.BatchSize, p+"batch-size", o.BatchSize, "Texts per embedding request.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be in [0, 2], got %v", o.Temperature))
	}
	if o.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch-size must not be negative"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.APIKey == "" && o.Provider == "groq" {
		o.APIKey = os.Getenv(GroqAPIKeyEnv)
	}
	if o.BatchSize == 0 {
		o.BatchSize = 32
	}
	return nil
}
